package jwt

import (
	"context"
	"net/http"
	"strings"
)

// Verifier validates a raw token, including any revocation state.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// ErrorResponder writes the response for a rejected request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

func defaultResponder(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}

// Middleware requires a valid bearer token on every request.
func Middleware(v Verifier, onError ErrorResponder) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultResponder
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), raw, claims)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(tok), nil
}
