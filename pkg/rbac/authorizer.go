package rbac

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxInheritanceDepth bounds role inheritance chains.
const MaxInheritanceDepth = 10

// Authorizer checks role permissions. It is immutable and safe for
// concurrent use.
type Authorizer struct {
	perms map[string][]string
	ranks map[string]int
	order []string
}

// NewAuthorizer loads roles from source and resolves inheritance.
func NewAuthorizer(ctx context.Context, source RoleSource) (*Authorizer, error) {
	roles, err := source.Load(ctx)
	if err != nil {
		return nil, err
	}

	a := &Authorizer{
		perms: make(map[string][]string, len(roles)),
		ranks: make(map[string]int, len(roles)),
		order: make([]string, 0, len(roles)),
	}
	for name, role := range roles {
		for _, parent := range role.Inherits {
			if _, ok := roles[parent]; !ok {
				return nil, fmt.Errorf("%w: role %q inherits unknown role %q", ErrInvalidDefinition, name, parent)
			}
		}
		perms, err := resolve(name, roles, nil)
		if err != nil {
			return nil, err
		}
		slices.Sort(perms)
		a.perms[name] = slices.Compact(perms)
		a.ranks[name] = role.Rank
		a.order = append(a.order, name)
	}
	slices.SortFunc(a.order, func(x, y string) int {
		if c := a.ranks[x] - a.ranks[y]; c != 0 {
			return c
		}
		return strings.Compare(x, y)
	})

	return a, nil
}

func resolve(name string, roles map[string]Role, path []string) ([]string, error) {
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrCircularInheritance, strings.Join(path, " -> "), name)
	}
	if len(path) > MaxInheritanceDepth {
		return nil, fmt.Errorf("%w: depth exceeds %d", ErrCircularInheritance, MaxInheritanceDepth)
	}
	role := roles[name]
	out := slices.Clone(role.Permissions)
	for _, parent := range role.Inherits {
		inherited, err := resolve(parent, roles, append(path, name))
		if err != nil {
			return nil, err
		}
		out = append(out, inherited...)
	}
	return out, nil
}

// Can returns nil when role grants permission.
func (a *Authorizer) Can(role, permission string) error {
	perms, ok := a.perms[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if slices.ContainsFunc(perms, func(p string) bool { return matches(p, permission) }) {
		return nil
	}
	return ErrInsufficientPermissions
}

// CanAny returns nil when role grants at least one of permissions.
func (a *Authorizer) CanAny(role string, permissions ...string) error {
	if len(permissions) == 0 {
		return nil
	}
	var err error
	for _, p := range permissions {
		if err = a.Can(role, p); err == nil || errors.Is(err, ErrInvalidRole) {
			return err
		}
	}
	return err
}

// CanFromContext checks the role stored by WithRole.
func (a *Authorizer) CanFromContext(ctx context.Context, permission string) error {
	role, ok := RoleFromContext(ctx)
	if !ok {
		return errors.Join(ErrRoleNotInContext, ErrInsufficientPermissions)
	}
	return a.Can(role, permission)
}

// VerifyRole returns ErrInvalidRole for unknown roles.
func (a *Authorizer) VerifyRole(role string) error {
	if _, ok := a.perms[role]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}

// CanGrant reports whether a member holding role may assign target.
func (a *Authorizer) CanGrant(role, target string) error {
	if err := a.VerifyRole(target); err != nil {
		return err
	}
	if err := a.VerifyRole(role); err != nil {
		return err
	}
	if a.ranks[target] > a.ranks[role] {
		return ErrInsufficientPermissions
	}
	return nil
}

// Roles lists role names from least to most privileged.
func (a *Authorizer) Roles() []string {
	return slices.Clone(a.order)
}

func matches(granted, permission string) bool {
	switch {
	case granted == "*" || granted == permission:
		return true
	case strings.HasSuffix(granted, ".*"):
		return strings.HasPrefix(permission, strings.TrimSuffix(granted, "*"))
	}
	return false
}
