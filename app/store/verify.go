package store

import (
	"fmt"

	"github.com/invopop/jsonschema"
)

const maxNameLen = 200

// VerifySeed performs structural validation of a seed file before it
// touches the database
func VerifySeed(sf *SeedFile) error {
	if len(sf.Modules) == 0 {
		return fmt.Errorf("at least one module is required")
	}

	seen := make(map[string]int, len(sf.Modules))
	for i, m := range sf.Modules {
		num := i + 1
		if m.ID == "" {
			return fmt.Errorf("module %d: id is required", num)
		}
		if prev, ok := seen[m.ID]; ok {
			return fmt.Errorf("module %d: duplicate id %q (first used by module %d)", num, m.ID, prev)
		}
		seen[m.ID] = num

		if m.Name == "" {
			return fmt.Errorf("module %d: name is required", num)
		}
		if len(m.Name) > maxNameLen {
			return fmt.Errorf("module %d: name exceeds %d characters", num, maxNameLen)
		}
		if m.Version < 0 {
			return fmt.Errorf("module %d: version must not be negative", num)
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the seed file format
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&SeedFile{}), nil
}
