package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/modarc/modarc/app/store"
	"github.com/modarc/modarc/app/web/enums"
)

// handleDashboard renders the main dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := s.viewData(r, s.getFilterMode(r), s.getPageSize(r), s.getPage(r))
	data.Theme = s.getTheme(r)
	data.CurrentYear = time.Now().Year()
	data.Version = shortVersion(s.version)
	data.FullVersion = s.version

	s.render(w, "base.html", "base", data)
}

// viewData builds template data for the current projection
func (s *Server) viewData(r *http.Request, filter enums.FilterMode, size enums.PageSize, page int) TemplateData {
	data := s.newTemplateData(r)
	data.FilterMode = filter
	data.PageSize = size

	modules, archiving, err := s.snapshot()
	if err != nil {
		data.LoadError = "failed to load modules" // generic, details stay in the log
		data.Page = 1
		data.TotalPages = 1
		return data
	}

	p := projectModules(modules, filter, size, page)
	data.Modules = p.records
	data.Archiving = archiving
	data.Page = p.page
	data.TotalPages = p.totalPages
	data.HasPrev = p.page > 1
	data.HasNext = p.page < p.totalPages
	data.TotalCount = p.totalCount
	data.ActiveCount = p.activeCount
	data.ArchivedCount = p.archivedCount
	data.FilteredCount = p.filteredCount
	return data
}

// handleModulesPartial returns the modules list partial for HTMX requests
func (s *Server) handleModulesPartial(w http.ResponseWriter, r *http.Request) {
	data := s.viewData(r, s.getFilterMode(r), s.getPageSize(r), s.getPage(r))
	data.IsOOB = true // enable OOB for stats updates

	if err := s.renderModulesWithStats(w, data); err != nil {
		log.Printf("[ERROR] failed to render modules partial: %v", err)
		http.Error(w, "Failed to render modules", http.StatusInternalServerError)
	}
}

// renderModulesWithStats renders the modules table with OOB stats and pager updates
func (s *Server) renderModulesWithStats(w http.ResponseWriter, data TemplateData) error {
	tmpl, ok := s.templates["partials/modules.html"]
	if !ok {
		return errors.New("partials template not found")
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "modules-list", data); err != nil {
		return err
	}

	oobData := data
	oobData.IsOOB = true
	for _, name := range []string{"stats-updates", "pager", "filter-button"} {
		if err := tmpl.ExecuteTemplate(&buf, name, oobData); err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		log.Printf("[ERROR] failed to write modules HTML: %v", err)
	}
	return nil
}

// handleFilterToggle cycles through filter modes and resets to page 1
func (s *Server) handleFilterToggle(w http.ResponseWriter, r *http.Request) {
	nextMode := s.getFilterMode(r).Next()
	s.applyFilter(w, r, nextMode)
}

// handleFilterChange sets the filter mode directly and resets to page 1
func (s *Server) handleFilterChange(w http.ResponseWriter, r *http.Request) {
	mode, err := enums.ParseFilterMode(r.FormValue("filter"))
	if err != nil {
		log.Printf("[WARN] invalid filter mode %q: %v", r.FormValue("filter"), err)
		mode = enums.FilterModeAll
	}
	s.applyFilter(w, r, mode)
}

// applyFilter persists the new filter mode, resets pagination to page 1
// and renders the projection
func (s *Server) applyFilter(w http.ResponseWriter, r *http.Request, mode enums.FilterMode) {
	s.setModeCookie(w, "filter-mode", mode.String())
	s.setPageCookie(w, 1) // filter change always resets pagination

	data := s.viewData(r, mode, s.getPageSize(r), 1)
	data.IsOOB = true
	if err := s.renderModulesWithStats(w, data); err != nil {
		log.Printf("[ERROR] failed to render filtered modules: %v", err)
		http.Error(w, "Failed to render modules", http.StatusInternalServerError)
	}
}

// handlePageSizeChange sets the page size and resets to page 1
func (s *Server) handlePageSizeChange(w http.ResponseWriter, r *http.Request) {
	size, err := enums.ParsePageSize(r.FormValue("size"))
	if err != nil {
		log.Printf("[WARN] invalid page size %q: %v", r.FormValue("size"), err)
		size = enums.PageSize25
	}

	s.setModeCookie(w, "page-size", size.String())
	s.setPageCookie(w, 1) // page size change always resets pagination

	data := s.viewData(r, s.getFilterMode(r), size, 1)
	data.IsOOB = true
	if err := s.renderModulesWithStats(w, data); err != nil {
		log.Printf("[ERROR] failed to render modules after page size change: %v", err)
		http.Error(w, "Failed to render modules", http.StatusInternalServerError)
	}
}

// handlePageChange advances or retreats the current page, clamped to the
// valid range for the current projection
func (s *Server) handlePageChange(w http.ResponseWriter, r *http.Request) {
	page := s.getPage(r)
	switch r.FormValue("dir") {
	case "next":
		page++
	case "prev":
		page--
	default:
		http.Error(w, "Invalid page direction", http.StatusBadRequest)
		return
	}

	filter, size := s.getFilterMode(r), s.getPageSize(r)
	data := s.viewData(r, filter, size, page)
	s.setPageCookie(w, data.Page) // store the clamped value

	data.IsOOB = true
	if err := s.renderModulesWithStats(w, data); err != nil {
		log.Printf("[ERROR] failed to render page change: %v", err)
		http.Error(w, "Failed to render modules", http.StatusInternalServerError)
	}
}

// handleThemeToggle toggles the theme
func (s *Server) handleThemeToggle(w http.ResponseWriter, r *http.Request) {
	nextTheme := enums.ThemeLight
	if s.getTheme(r) == enums.ThemeLight {
		nextTheme = enums.ThemeDark
	}
	s.setModeCookie(w, "theme", nextTheme.String())

	// trigger full page refresh for theme change
	w.Header().Set("HX-Refresh", "true")
	w.WriteHeader(http.StatusOK)
}

// handleArchiveModal renders the confirmation dialog naming the record
func (s *Server) handleArchiveModal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Module ID required", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	idx, ok := s.index[id]
	var m store.Module
	if ok {
		m = s.modules[idx]
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "Module not found", http.StatusNotFound)
		return
	}

	s.render(w, "partials/modules.html", "archive-modal", m)
}

// handleArchive performs the archive mutation for a single record.
// Declining the confirmation never reaches this handler, the modal just
// closes client-side.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Module ID required", http.StatusBadRequest)
		return
	}

	m, err := s.beginArchive(id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "Module not found", http.StatusNotFound)
		case errors.Is(err, errArchiveInProgress):
			http.Error(w, "Archive already in progress", http.StatusConflict)
		case errors.Is(err, errAlreadyArchived):
			http.Error(w, "Module already archived", http.StatusConflict)
		default:
			http.Error(w, "Modules not loaded", http.StatusServiceUnavailable)
		}
		return
	}

	// detached context: an in-flight archive is not canceled by navigation
	ctx, cancel := context.WithTimeout(context.Background(), s.archiveTO)
	defer cancel()

	if err := s.store.ArchiveModule(ctx, id); err != nil {
		s.finishArchive(id, false)
		log.Printf("[ERROR] failed to archive module %s (%s): %v", id, m.Name, err)
		if s.notifier != nil {
			s.notifier.ArchiveFailed(m, err)
		}
		// non-2xx triggers the client-side blocking alert
		http.Error(w, "Failed to archive "+m.Name, http.StatusBadGateway)
		return
	}

	s.finishArchive(id, true)
	log.Printf("[INFO] archived module %s (%s)", id, m.Name)
	if s.notifier != nil {
		s.notifier.Archived(m)
	}

	data := s.viewData(r, s.getFilterMode(r), s.getPageSize(r), s.getPage(r))
	data.IsOOB = true
	data.Notice = m.Name + " archived"

	tmpl, ok := s.templates["partials/modules.html"]
	if !ok {
		log.Printf("[WARN] partials template not found")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, name := range []string{"modules-list", "stats-updates", "pager", "filter-button", "notice"} {
		if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
			log.Printf("[WARN] failed to render %s: %v", name, err)
			return
		}
	}
}

// handleNoticeDismiss clears the transient success notice, requested by
// the notice itself after its display delay
func (s *Server) handleNoticeDismiss(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
}

// handleSettingsModal handles settings/about modal requests
func (s *Server) handleSettingsModal(w http.ResponseWriter, _ *http.Request) {
	info := s.settingsInfo
	info.Runtime = collectRuntimeInfo()
	if !info.StartTime.IsZero() {
		info.Runtime.Uptime = time.Since(info.StartTime).Round(time.Second)
	}
	s.render(w, "partials/modules.html", "settings-modal", info)
}

// shortVersion extracts a short version string from full version
// for version like "v1.7.0-abc1234-20241225", returns "v1.7.0"
func shortVersion(fullVer string) string {
	if fullVer == "" || fullVer == "unknown" {
		return fullVer
	}
	if idx := strings.Index(fullVer, "-"); idx > 0 {
		return fullVer[:idx]
	}
	return fullVer
}
