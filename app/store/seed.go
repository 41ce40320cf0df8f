package store

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document used to preload a local store with module
// records, mostly for demos and development environments.
type SeedFile struct {
	Modules []Module `yaml:"modules" json:"modules" jsonschema:"required,description=module records to preload"`
}

// LoadSeed reads and validates a YAML seed file
func LoadSeed(path string) (SeedFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from trusted config
	if err != nil {
		return SeedFile{}, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return SeedFile{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if err := VerifySeed(&sf); err != nil {
		return SeedFile{}, fmt.Errorf("seed file %s is invalid: %w", path, err)
	}
	return sf, nil
}

// Seed loads records from a seed file into the local store. Missing
// creation timestamps default to now and versions default to 1, so seed
// files can stay minimal.
func (s *Local) Seed(ctx context.Context, sf SeedFile) error {
	modules := make([]Module, 0, len(sf.Modules))
	for _, m := range sf.Modules {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		if m.Version == 0 {
			m.Version = 1
		}
		modules = append(modules, m)
	}

	if err := s.SaveModules(ctx, modules); err != nil {
		return fmt.Errorf("failed to seed modules: %w", err)
	}
	log.Printf("[INFO] seeded %d modules", len(modules))
	return nil
}
