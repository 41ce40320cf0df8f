package web

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"golang.org/x/crypto/bcrypt"

	"github.com/modarc/modarc/app/web/enums"
)

const authCookieName = "modarc-auth"

// loginLimiter caps login attempts to slow down password guessing
var loginLimiter = tollbooth.NewLimiter(5, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Minute})

// handleLoginForm displays the login form
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.renderLogin(w, r, "", http.StatusOK)
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if password == "" {
		s.renderLogin(w, r, "Password is required", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		s.renderLogin(w, r, "Invalid password", http.StatusUnauthorized)
		return
	}

	token, err := s.createSession()
	if err != nil {
		log.Printf("[ERROR] failed to create session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     s.cookiePath(),
		MaxAge:   int(s.loginTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	http.Redirect(w, r, s.url("/"), http.StatusSeeOther)
}

// handleLogout logs the user out by dropping the session and clearing the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authCookieName); err == nil {
		s.sessionsMu.Lock()
		delete(s.sessions, cookie.Value)
		s.sessionsMu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1, // delete cookie
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})

	// tell HTMX to perform a full page refresh instead of swapping content
	w.Header().Set("HX-Refresh", "true")
	http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
}

// renderLogin renders the login form, optionally with an error message
func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, errorMsg string, status int) {
	tmpl := s.templates["login"]
	if tmpl == nil {
		log.Printf("[ERROR] login template not found in templates map")
		http.Error(w, "Login template not found", http.StatusInternalServerError)
		return
	}

	data := struct {
		Error   string
		Theme   enums.Theme
		BaseURL string
	}{
		Error:   errorMsg,
		Theme:   s.getTheme(r),
		BaseURL: s.baseURL,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("[ERROR] failed to render login template: %v", err)
	}
}

// authMiddleware checks for a valid session cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// skip auth for login page and static resources
		if r.URL.Path == "/login" || strings.HasPrefix(r.URL.Path, "/static/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(authCookieName)
		if err == nil && s.validateSession(cookie.Value) {
			next.ServeHTTP(w, r)
			return
		}

		// fallback to basic auth for API clients
		username, password, ok := r.BasicAuth()
		if ok && username == "modarc" {
			if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		if r.Header.Get("Accept") == "" || strings.Contains(r.Header.Get("Accept"), "text/html") {
			// browser request, redirect to login
			http.Redirect(w, r, s.url("/login"), http.StatusSeeOther)
		} else {
			// API request, return 401
			w.Header().Set("WWW-Authenticate", `Basic realm="Modarc Admin"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	})
}

// createSession registers a new random session token
func (s *Server) createSession() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[token] = session{token: token, createdAt: time.Now()}
	return token, nil
}

// validateSession checks the token exists and has not expired,
// expired sessions are dropped on the way
func (s *Server) validateSession(token string) bool {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	if time.Since(sess.createdAt) > s.loginTTL {
		delete(s.sessions, token)
		return false
	}
	return true
}
