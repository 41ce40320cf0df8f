package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// Local implements Interface on an embedded sqlite database, used for
// self-hosted deployments where no managed backend is available. It also
// backs the optional seed loading.
type Local struct {
	db *sqlx.DB
}

// moduleRow is the database representation, timestamps kept as unix seconds
type moduleRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Version     int    `db:"version"`
	Archived    bool   `db:"archived"`
	CreatedAt   int64  `db:"created_at"`
}

// NewLocal opens (or creates) the sqlite database and bootstraps the schema
func NewLocal(dbPath string) (*Local, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		archived BOOLEAN NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to create schema: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_modules_created_at ON modules(created_at)"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to create index: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &Local{db: db}, nil
}

// ListModules returns all records ordered by creation time descending,
// id as a tiebreak for records created in the same second
func (s *Local) ListModules(ctx context.Context) ([]Module, error) {
	var rows []moduleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, version, archived, created_at
		FROM modules ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}

	modules := make([]Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, Module{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			Version:     row.Version,
			Archived:    row.Archived,
			CreatedAt:   time.Unix(row.CreatedAt, 0),
		})
	}
	return modules, nil
}

// ArchiveModule sets archived=true for a single record
func (s *Local) ArchiveModule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE modules SET archived=1 WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("failed to archive module %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetModule retrieves a single record by id
func (s *Local) GetModule(ctx context.Context, id string) (Module, error) {
	var row moduleRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, description, version, archived, created_at
		FROM modules WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Module{}, ErrNotFound
	}
	if err != nil {
		return Module{}, fmt.Errorf("failed to get module %s: %w", id, err)
	}
	return Module{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Version:     row.Version,
		Archived:    row.Archived,
		CreatedAt:   time.Unix(row.CreatedAt, 0),
	}, nil
}

// SaveModules upserts multiple records in a single transaction,
// used by seeding and the scheduled refresh cache
func (s *Local) SaveModules(ctx context.Context, modules []Module) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range modules {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO modules (id, name, description, version, archived, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, m.Description, m.Version, m.Archived, m.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to save module %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Local) Close() error {
	return s.db.Close()
}
