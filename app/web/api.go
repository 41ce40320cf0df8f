package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/modarc/modarc/app/store"
)

// APIModulesResponse is the JSON response for /api/v1/modules
type APIModulesResponse struct {
	Modules   []APIModule `json:"modules"`
	Stats     APIStats    `json:"stats"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIModule represents a module record in JSON API responses
type APIModule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// APIStats represents aggregated statistics in JSON API responses
type APIStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Archived int `json:"archived"`
}

func toAPIModule(m store.Module) APIModule {
	return APIModule{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Archived:    m.Archived,
		CreatedAt:   m.CreatedAt,
	}
}

// handleAPIModules returns the full collection with stats - designed for CLI/jq consumption
func (s *Server) handleAPIModules(w http.ResponseWriter, _ *http.Request) {
	modules, _, err := s.snapshot()
	if err != nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "failed to load modules")
		return
	}

	apiModules := make([]APIModule, 0, len(modules))
	stats := APIStats{Total: len(modules)}
	for _, m := range modules {
		apiModules = append(apiModules, toAPIModule(m))
		if m.Archived {
			stats.Archived++
		} else {
			stats.Active++
		}
	}

	resp := APIModulesResponse{
		Modules:   apiModules,
		Stats:     stats,
		Timestamp: time.Now(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleAPIArchive archives a single record through the JSON API,
// same in-flight guard and failure semantics as the HTML flow
func (s *Server) handleAPIArchive(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "module ID required")
		return
	}

	m, err := s.beginArchive(id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.writeJSONError(w, http.StatusNotFound, "module not found")
		case errors.Is(err, errArchiveInProgress):
			s.writeJSONError(w, http.StatusConflict, "archive already in progress")
		case errors.Is(err, errAlreadyArchived):
			s.writeJSONError(w, http.StatusConflict, "module already archived")
		default:
			s.writeJSONError(w, http.StatusServiceUnavailable, "modules not loaded")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.archiveTO)
	defer cancel()

	if err := s.store.ArchiveModule(ctx, id); err != nil {
		s.finishArchive(id, false)
		log.Printf("[ERROR] failed to archive module %s via API: %v", id, err)
		if s.notifier != nil {
			s.notifier.ArchiveFailed(m, err)
		}
		s.writeJSONError(w, http.StatusBadGateway, "failed to archive module")
		return
	}

	s.finishArchive(id, true)
	log.Printf("[INFO] archived module %s via API", id)
	if s.notifier != nil {
		s.notifier.Archived(m)
	}

	m.Archived = true
	s.writeJSON(w, http.StatusOK, toAPIModule(m))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[WARN] failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("[WARN] failed to encode JSON error response: %v", err)
	}
}
