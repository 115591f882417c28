package jwt

import "context"

type contextKey struct{ name string }

var (
	tokenKey  = &contextKey{name: "jwt"}
	claimsKey = &contextKey{name: "jwt_claims"}
)

// WithClaims stores the raw token and its verified claims in ctx.
func WithClaims(ctx context.Context, token string, claims Claims) context.Context {
	ctx = context.WithValue(ctx, tokenKey, token)
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the verified claims of the current request.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey).(Claims)
	return c, ok
}

// TokenFromContext returns the raw bearer token of the current request.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok
}

// UserIDFromContext returns the authenticated user id, or an empty string.
func UserIDFromContext(ctx context.Context) string {
	c, _ := ClaimsFromContext(ctx)
	return c.Subject
}
