package database

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed seed/roles.yaml
var defaultRoles []byte

type roleFile struct {
	Roles []roleEntry `yaml:"roles"`
}

type roleEntry struct {
	Name        string                    `yaml:"name"`
	Permissions map[string]map[string]any `yaml:"permissions"`
}

// ParseRoles decodes a role seed document. Unknown top-level keys are rejected.
func ParseRoles(data []byte) ([]models.Role, error) {
	var file roleFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse roles YAML: %w", err)
	}

	roles := make([]models.Role, 0, len(file.Roles))
	seen := make(map[string]bool, len(file.Roles))
	for _, entry := range file.Roles {
		if entry.Name == "" {
			return nil, fmt.Errorf("role without a name")
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("duplicate role %q", entry.Name)
		}
		seen[entry.Name] = true

		// Round-trip through JSON so the stored shape is validated by the
		// same decoder that reads it back from JSONB.
		raw, err := json.Marshal(entry.Permissions)
		if err != nil {
			return nil, fmt.Errorf("role %q: %w", entry.Name, err)
		}
		perms := models.RolePermissionSet{}
		if err := json.Unmarshal(raw, &perms); err != nil {
			return nil, fmt.Errorf("role %q: %w", entry.Name, err)
		}

		roles = append(roles, models.Role{Name: entry.Name, Permissions: perms})
	}

	return roles, nil
}

// LoadRoles reads the role seed from path, or the embedded defaults when path is empty.
func LoadRoles(path string) ([]models.Role, error) {
	data := defaultRoles
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read roles file: %w", err)
		}
	}
	return ParseRoles(data)
}

// SeedRoles upserts the roles, replacing the permissions of existing ones.
func SeedRoles(ctx context.Context, db PGXDB, roles []models.Role) error {
	for _, role := range roles {
		perms, err := json.Marshal(role.Permissions)
		if err != nil {
			return fmt.Errorf("failed to encode permissions for %q: %w", role.Name, err)
		}

		_, err = db.Exec(ctx, `
			INSERT INTO roles (name, permissions) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions
		`, role.Name, perms)
		if err != nil {
			return fmt.Errorf("failed to seed role %q: %w", role.Name, err)
		}
	}

	return nil
}
