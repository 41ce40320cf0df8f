package web

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/go-pkgz/lgr"

	"github.com/modarc/modarc/app/store"
	"github.com/modarc/modarc/app/web/enums"
)

// archive guard errors
var (
	errArchiveInProgress = errors.New("archive already in progress")
	errAlreadyArchived   = errors.New("module already archived")
)

// loadModules fetches the full collection from the store, once.
// A failure is recorded and surfaced on the dashboard; there is no retry.
func (s *Server) loadModules(ctx context.Context) {
	modules, err := s.store.ListModules(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		log.Printf("[ERROR] failed to load modules: %v", err)
		s.loadErr = fmt.Errorf("failed to load modules: %w", err)
		s.loaded = false
		return
	}

	s.modules = modules
	s.index = make(map[string]int, len(modules))
	for i, m := range modules {
		s.index[m.ID] = i
	}
	s.loaded = true
	s.loadErr = nil
	log.Printf("[INFO] loaded %d modules", len(modules))
}

// Reload refreshes the collection from the store, used by the optional
// scheduled refresh. The interactive workflow never calls it.
func (s *Server) Reload(ctx context.Context) {
	s.loadModules(ctx)
}

// snapshot returns a copy of the loaded collection and in-flight markers
func (s *Server) snapshot() (modules []store.Module, archiving map[string]bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	modules = make([]store.Module, len(s.modules))
	copy(modules, s.modules)
	archiving = make(map[string]bool, len(s.archiving))
	for id := range s.archiving {
		archiving[id] = true
	}
	return modules, archiving, nil
}

// projection is the filtered, sorted, paginated subset of the collection
type projection struct {
	records       []store.Module
	page          int // clamped to [1, totalPages]
	totalPages    int
	totalCount    int
	activeCount   int
	archivedCount int
	filteredCount int
}

// projectModules derives the view: keep records matching the filter, then
// stable-sort archived after active (ties keep prior relative order, which
// is creation time descending), then clamp the page and slice it out.
func projectModules(modules []store.Module, filter enums.FilterMode, size enums.PageSize, page int) projection {
	p := projection{totalCount: len(modules)}
	for _, m := range modules {
		if m.Archived {
			p.archivedCount++
		} else {
			p.activeCount++
		}
	}

	filtered := filterModules(modules, filter)
	sortArchivedLast(filtered)
	p.filteredCount = len(filtered)

	if size.Unbounded() {
		p.page = 1
		p.totalPages = 1
		p.records = filtered
		return p
	}

	p.totalPages = (len(filtered) + int(size) - 1) / int(size)
	if p.totalPages < 1 {
		p.totalPages = 1
	}
	p.page = clampPage(page, p.totalPages)

	start := (p.page - 1) * int(size)
	end := start + int(size)
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}
	p.records = filtered[start:end]
	return p
}

// filterModules keeps records matching the filter mode
func filterModules(modules []store.Module, filter enums.FilterMode) []store.Module {
	filtered := make([]store.Module, 0, len(modules))
	for _, m := range modules {
		switch filter {
		case enums.FilterModeAll:
			filtered = append(filtered, m)
		case enums.FilterModeActive:
			if !m.Archived {
				filtered = append(filtered, m)
			}
		case enums.FilterModeArchived:
			if m.Archived {
				filtered = append(filtered, m)
			}
		}
	}
	return filtered
}

// sortArchivedLast stable-sorts archived records after active ones
func sortArchivedLast(modules []store.Module) {
	sort.SliceStable(modules, func(i, j int) bool {
		return !modules[i].Archived && modules[j].Archived
	})
}

func clampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// beginArchive checks the record exists and is not already being archived,
// then marks it in flight. A second request on the same record is rejected
// until the first one finishes.
func (s *Server) beginArchive(id string) (store.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return store.Module{}, fmt.Errorf("collection not loaded: %w", s.loadErr)
	}
	idx, ok := s.index[id]
	if !ok {
		return store.Module{}, store.ErrNotFound
	}
	m := s.modules[idx]
	if m.Archived {
		return store.Module{}, fmt.Errorf("module %s: %w", id, errAlreadyArchived)
	}
	if s.archiving[id] {
		return store.Module{}, fmt.Errorf("module %s: %w", id, errArchiveInProgress)
	}
	s.archiving[id] = true
	return m, nil
}

// finishArchive clears the in-flight marker and, on success, flips the
// archived flag on the local record in place. No re-fetch happens, the
// local collection stays the source of truth for the view.
func (s *Server) finishArchive(id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.archiving, id)
	if !ok {
		return
	}
	if idx, found := s.index[id]; found {
		s.modules[idx].Archived = true
	}
}
