// Package store provides access to the collection of module records.
// Two implementations exist: Remote talks to the managed backend service
// owning the records, Local keeps them in an embedded sqlite database for
// self-hosted deployments. Both return the collection ordered by creation
// time descending and support the single mutation this application makes,
// flipping the archived flag to true.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound returned when a requested module record does not exist
var ErrNotFound = errors.New("module not found")

// Module represents a managed content record. Records are created and
// versioned by the backend owner; this application only reads them and
// archives them.
type Module struct {
	ID          string    `json:"id" db:"id" yaml:"id"`
	Name        string    `json:"name" db:"name" yaml:"name"`
	Description string    `json:"description,omitempty" db:"description" yaml:"description,omitempty"`
	Version     int       `json:"version" db:"version" yaml:"version,omitempty"`
	Archived    bool      `json:"archived" db:"archived" yaml:"archived,omitempty"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" yaml:"created_at,omitempty"`
}

// Interface defines storage operations for module management
type Interface interface {
	// ListModules returns all module records ordered by creation time descending.
	ListModules(ctx context.Context) ([]Module, error)
	// ArchiveModule sets archived=true for a single record by id.
	// Returns ErrNotFound if no record matches. There is no un-archive
	// operation, archiving is one-way by policy.
	ArchiveModule(ctx context.Context, id string) error
	Close() error
}
