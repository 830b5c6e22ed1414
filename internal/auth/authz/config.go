package authz

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var defaultRoles []byte

type roleFile struct {
	Roles []domain.RoleDefinition `yaml:"roles"`
}

// Parse decodes a YAML role file. It does not validate the hierarchy; New does.
func Parse(data []byte) ([]domain.RoleDefinition, error) {
	var f roleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoleConfig, err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("%w: no roles defined", ErrInvalidRoleConfig)
	}
	return f.Roles, nil
}

// LoadFile reads role definitions from path, or the built-in hierarchy when
// path is empty.
func LoadFile(path string) ([]domain.RoleDefinition, error) {
	if path == "" {
		return DefaultDefinitions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role config: %w", err)
	}
	return Parse(data)
}

// DefaultDefinitions returns the built-in owner/co_owner/admin/moderator
// hierarchy.
func DefaultDefinitions() []domain.RoleDefinition {
	defs, err := Parse(defaultRoles)
	if err != nil {
		panic("authz: embedded roles.yaml: " + err.Error())
	}
	return defs
}

// Load is LoadFile followed by New.
func Load(path string) (*Authorizer, error) {
	defs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(defs)
}
