package rbac

import "context"

type roleCtxKey struct{}

// WithRole stores the member role of the current request.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleCtxKey{}, role)
}

// RoleFromContext returns the role stored by WithRole.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleCtxKey{}).(string)
	return role, ok
}
