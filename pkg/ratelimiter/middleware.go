package ratelimiter

import (
	"net/http"
	"strconv"
)

// KeyFunc derives the bucket key of a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// DeniedFunc writes the response for a limited request.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, res Result)

// SetHeaders writes the X-RateLimit-* headers, plus Retry-After when denied.
func SetHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed() {
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(res.RetryAfter().Seconds()))))
	}
}

// Middleware limits requests per key. Store failures let the request through.
func Middleware(b *Bucket, keyFunc KeyFunc, denied DeniedFunc) func(http.Handler) http.Handler {
	if denied == nil {
		denied = func(w http.ResponseWriter, _ *http.Request, _ Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := b.Allow(r.Context(), key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w, res)
			if !res.Allowed() {
				denied(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
