// Package authz evaluates role-based permissions over a static role
// hierarchy. An Authorizer is immutable after New and safe for concurrent use
// without locking.
package authz

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

// ErrInvalidRoleConfig is returned when a hierarchy has duplicate or empty
// role names, dangling inherits, or an inheritance cycle.
var ErrInvalidRoleConfig = errors.New("invalid role config")

// Wildcard grants every non-empty permission when used as a whole entry.
const Wildcard = "*"

type Authorizer struct {
	defs  map[string]domain.RoleDefinition
	order []string

	// grants holds each role's own permissions followed by everything it
	// inherits, flattened once at load.
	grants map[string][]string
}

// New validates defs and builds an Authorizer. The definitions are copied.
func New(defs []domain.RoleDefinition) (*Authorizer, error) {
	a := &Authorizer{
		defs:   make(map[string]domain.RoleDefinition, len(defs)),
		grants: make(map[string][]string, len(defs)),
	}

	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" || name != d.Name {
			return nil, fmt.Errorf("%w: invalid role name %q", ErrInvalidRoleConfig, d.Name)
		}
		if _, dup := a.defs[name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidRoleConfig, name)
		}
		for _, p := range d.Permissions {
			if strings.TrimSpace(p) == "" {
				return nil, fmt.Errorf("%w: role %q has an empty permission", ErrInvalidRoleConfig, name)
			}
		}
		a.defs[name] = domain.RoleDefinition{
			Name:        name,
			Level:       d.Level,
			Permissions: slices.Clone(d.Permissions),
			Inherits:    slices.Clone(d.Inherits),
		}
	}

	for _, d := range a.defs {
		for _, parent := range d.Inherits {
			if _, ok := a.defs[parent]; !ok {
				return nil, fmt.Errorf("%w: role %q inherits unknown role %q", ErrInvalidRoleConfig, d.Name, parent)
			}
		}
	}

	if err := a.flatten(); err != nil {
		return nil, err
	}

	a.order = make([]string, 0, len(a.defs))
	for name := range a.defs {
		a.order = append(a.order, name)
	}
	slices.SortFunc(a.order, func(x, y string) int {
		if lx, ly := a.defs[x].Level, a.defs[y].Level; lx != ly {
			return ly - lx
		}
		return strings.Compare(x, y)
	})

	return a, nil
}

// flatten resolves inherited permissions with a depth-first walk, failing on
// the first back edge.
func (a *Authorizer) flatten() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(a.defs))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			cycle := append(path[slices.Index(path, name):], name)
			return fmt.Errorf("%w: inheritance cycle %s", ErrInvalidRoleConfig, strings.Join(cycle, " -> "))
		}
		state[name] = visiting
		path = append(path, name)

		d := a.defs[name]
		grants := slices.Clone(d.Permissions)
		for _, parent := range d.Inherits {
			if err := visit(parent, path); err != nil {
				return err
			}
			grants = append(grants, a.grants[parent]...)
		}
		slices.Sort(grants)
		a.grants[name] = slices.Compact(grants)
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(a.defs))
	for name := range a.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

// Can reports whether identity's role grants permission, directly or through
// inheritance. A nil identity, an unknown role or an empty permission is
// never granted.
func (a *Authorizer) Can(identity *domain.Identity, permission string) bool {
	if identity == nil {
		return false
	}
	return a.RoleCan(identity.Role, permission)
}

// RoleCan is Can for a bare role name.
func (a *Authorizer) RoleCan(role, permission string) bool {
	if permission == "" {
		return false
	}
	grants, ok := a.grants[role]
	if !ok {
		return false
	}
	for _, g := range grants {
		if Match(g, permission) {
			return true
		}
	}
	return false
}

// Match reports whether a single permission entry grants permission. An
// entry "content.*" grants "content.edit" but neither "content" nor
// "contentx.edit".
func Match(entry, permission string) bool {
	if permission == "" {
		return false
	}
	if entry == Wildcard || entry == permission {
		return true
	}
	prefix, ok := strings.CutSuffix(entry, "*")
	if !ok || !strings.HasSuffix(prefix, ".") {
		return false
	}
	return len(permission) > len(prefix) && strings.HasPrefix(permission, prefix)
}

// HierarchyOrder returns role names by descending level, ties broken by
// name. The result is a fresh slice.
func (a *Authorizer) HierarchyOrder() []string {
	return slices.Clone(a.order)
}

// Roles returns every definition in hierarchy order.
func (a *Authorizer) Roles() []domain.RoleDefinition {
	out := make([]domain.RoleDefinition, 0, len(a.order))
	for _, name := range a.order {
		d, _ := a.Definition(name)
		out = append(out, d)
	}
	return out
}

// Has reports whether role is defined.
func (a *Authorizer) Has(role string) bool {
	_, ok := a.defs[role]
	return ok
}

// Definition returns a copy of the named role definition.
func (a *Authorizer) Definition(role string) (domain.RoleDefinition, bool) {
	d, ok := a.defs[role]
	if !ok {
		return domain.RoleDefinition{}, false
	}
	d.Permissions = slices.Clone(d.Permissions)
	d.Inherits = slices.Clone(d.Inherits)
	return d, true
}
