// Package web implements the admin web interface for module records:
// list, filter, paginate and archive. The collection is fetched from the
// store once at startup, held in memory and projected per request.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/modarc/modarc/app/store"
	"github.com/modarc/modarc/app/web/enums"
)

//go:embed templates/*.html templates/partials/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// session represents an active user session
type session struct {
	token     string
	createdAt time.Time
}

// Storage defines the operations the server needs from a module store
type Storage interface {
	ListModules(ctx context.Context) ([]store.Module, error)
	ArchiveModule(ctx context.Context, id string) error
	Close() error
}

// Notifier delivers archive outcome notifications, optional
type Notifier interface {
	Archived(m store.Module)
	ArchiveFailed(m store.Module, err error)
}

// Server represents the web server
type Server struct {
	store     Storage
	templates map[string]*template.Template
	notifier  Notifier // nil when notifications are disabled

	mu        sync.RWMutex
	modules   []store.Module  // full loaded collection, creation time descending
	index     map[string]int  // module id -> position in modules
	archiving map[string]bool // per-record in-flight archive markers
	loaded    bool
	loadErr   error

	baseURL      string // base URL path for reverse proxy, empty for root
	hostname     string // hostname to display in UI
	version      string
	passwordHash string // bcrypt hash for auth, empty to disable
	loginTTL     time.Duration
	archiveTO    time.Duration // timeout for the archive mutation

	csrfProtection *http.CrossOriginProtection
	sessions       map[string]session
	sessionsMu     sync.Mutex

	settingsInfo SettingsInfo
}

// Config holds server configuration
type Config struct {
	Store          Storage
	Notifier       Notifier
	BaseURL        string // base URL path for reverse proxy, empty for root
	Hostname       string
	Version        string
	PasswordHash   string        // bcrypt hash for auth, empty to disable
	LoginTTL       time.Duration // session TTL, defaults to 24h if not set
	ArchiveTimeout time.Duration // defaults to 10s if not set
	Settings       SettingsInfo
}

// TemplateData holds data for templates
type TemplateData struct {
	Modules       []store.Module
	Archiving     map[string]bool
	LoadError     string
	FilterMode    enums.FilterMode
	PageSize      enums.PageSize
	Page          int
	TotalPages    int
	HasPrev       bool
	HasNext       bool
	TotalCount    int // all loaded records
	ActiveCount   int
	ArchivedCount int
	FilteredCount int // records matching the filter, before pagination
	Theme         enums.Theme
	BaseURL       string
	Hostname      string
	Version       string
	FullVersion   string
	CurrentYear   int
	AuthEnabled   bool
	IsOOB         bool // for OOB template rendering
	Notice        string
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("web server initialization failed: Store is required")
	}

	loginTTL := cfg.LoginTTL
	if loginTTL == 0 {
		loginTTL = 24 * time.Hour
	}
	archiveTO := cfg.ArchiveTimeout
	if archiveTO == 0 {
		archiveTO = 10 * time.Second
	}

	s := &Server{
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		index:          make(map[string]int),
		archiving:      make(map[string]bool),
		baseURL:        cfg.BaseURL,
		hostname:       cfg.Hostname,
		version:        cfg.Version,
		passwordHash:   cfg.PasswordHash,
		loginTTL:       loginTTL,
		archiveTO:      archiveTO,
		csrfProtection: http.NewCrossOriginProtection(),
		sessions:       make(map[string]session),
		settingsInfo:   cfg.Settings,
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates

	return s, nil
}

// Run loads the collection and starts the web server, blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	// initial load, once; a failure is surfaced on the dashboard and not retried
	s.loadModules(ctx)

	server := &http.Server{
		Addr:              address,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

// handler returns the http.Handler with base URL wrapping applied
func (s *Server) handler() http.Handler {
	routes := s.routes()
	if s.baseURL == "" {
		return routes
	}

	mux := http.NewServeMux()
	// handle base URL without trailing slash - redirect to with trailing slash
	mux.HandleFunc(s.baseURL, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.baseURL+"/", http.StatusMovedPermanently)
	})
	mux.Handle(s.baseURL+"/", http.StripPrefix(s.baseURL, routes))
	return mux
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("modarc", "modarc", s.version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// add auth middleware if password hash is configured
	if s.passwordHash != "" {
		log.Printf("[INFO] authentication enabled for web UI")
		router.Use(s.authMiddleware)
	}

	// login routes - not protected by auth (middleware skips /login)
	if s.passwordHash != "" {
		router.HandleFunc("GET /login", s.handleLoginForm)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("GET /logout", s.handleLogout)
	}

	// dashboard route
	router.HandleFunc("GET /", s.handleDashboard)

	// api routes with grouping (HTMX endpoints)
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)             // prevent caching of API responses
		api.Use(s.csrfProtection.Handler) // CSRF protection for POST endpoints

		api.HandleFunc("GET /modules", s.handleModulesPartial)
		api.HandleFunc("POST /filter-toggle", s.handleFilterToggle)
		api.HandleFunc("POST /filter", s.handleFilterChange)
		api.HandleFunc("POST /page-size", s.handlePageSizeChange)
		api.HandleFunc("POST /page", s.handlePageChange)
		api.HandleFunc("POST /theme", s.handleThemeToggle)
		api.HandleFunc("GET /modules/{id}/archive-modal", s.handleArchiveModal)
		api.HandleFunc("POST /modules/{id}/archive", s.handleArchive)
		api.HandleFunc("GET /notice/dismiss", s.handleNoticeDismiss)
		api.HandleFunc("GET /settings/modal", s.handleSettingsModal)
	})

	// JSON API for CLI/programmatic access
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /modules", s.handleAPIModules)
		api.With(s.csrfProtection.Handler).HandleFunc("POST /modules/{id}/archive", s.handleAPIArchive)
	})

	// static files with proper error handling
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	return router
}

// render renders a template
func (s *Server) render(w http.ResponseWriter, page, tmplName string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, tmplName, data); err != nil {
		log.Printf("[WARN] failed to execute template: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// parseTemplates parses all templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template)

	funcMap := template.FuncMap{
		"humanTime": s.humanTime,
		"truncate":  s.truncate,
		"url":       s.url,
	}

	// parse base template with all partials
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/base.html", "templates/dashboard.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}
	templates["base.html"] = base

	// parse partials separately for HTMX requests
	partials, err := template.New("modules.html").Funcs(funcMap).ParseFS(templatesFS,
		"templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse partials: %w", err)
	}
	templates["partials/modules.html"] = partials

	// parse login template (standalone, doesn't use base)
	login, err := template.New("login.html").Funcs(funcMap).ParseFS(templatesFS, "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}
	templates["login"] = login

	return templates, nil
}

// newTemplateData creates a TemplateData with common fields populated from request
func (s *Server) newTemplateData(r *http.Request) TemplateData {
	return TemplateData{
		BaseURL:     s.baseURL,
		Hostname:    s.hostname,
		FilterMode:  s.getFilterMode(r),
		PageSize:    s.getPageSize(r),
		Page:        s.getPage(r),
		AuthEnabled: s.passwordHash != "",
	}
}

// cookie accessors, all fall back to defaults on missing or invalid values

func (s *Server) getFilterMode(r *http.Request) enums.FilterMode {
	cookie, err := r.Cookie("filter-mode")
	if err != nil {
		return enums.FilterModeAll // default to all
	}
	mode, err := enums.ParseFilterMode(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid filter mode %q: %v", cookie.Value, err)
		return enums.FilterModeAll
	}
	return mode
}

func (s *Server) getPageSize(r *http.Request) enums.PageSize {
	cookie, err := r.Cookie("page-size")
	if err != nil {
		return enums.PageSize25 // default
	}
	size, err := enums.ParsePageSize(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid page size %q: %v", cookie.Value, err)
		return enums.PageSize25
	}
	return size
}

func (s *Server) getPage(r *http.Request) int {
	cookie, err := r.Cookie("page")
	if err != nil {
		return 1
	}
	page, err := strconv.Atoi(cookie.Value)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func (s *Server) getTheme(r *http.Request) enums.Theme {
	cookie, err := r.Cookie("theme")
	if err != nil {
		return enums.ThemeDark // default to dark when no cookie
	}
	theme, err := enums.ParseTheme(cookie.Value)
	if err != nil {
		log.Printf("[WARN] invalid theme %q: %v", cookie.Value, err)
		return enums.ThemeDark
	}
	return theme
}

// setModeCookie sets a long-lived view preference cookie
func (s *Server) setModeCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// setPageCookie stores the current page, session-scoped
func (s *Server) setPageCookie(w http.ResponseWriter, page int) {
	http.SetCookie(w, &http.Cookie{
		Name:     "page",
		Value:    strconv.Itoa(page),
		Path:     s.cookiePath(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// template helper functions

func (s *Server) humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2 2006, 15:04")
}

func (s *Server) truncate(str string, n int) string {
	if len(str) <= n {
		return str
	}
	return str[:n] + "..."
}

// url prepends the base URL to a path for reverse proxy support
func (s *Server) url(path string) string {
	return s.baseURL + path
}

// cookiePath returns the cookie path with base URL support
func (s *Server) cookiePath() string {
	if s.baseURL == "" {
		return "/"
	}
	return s.baseURL + "/"
}
