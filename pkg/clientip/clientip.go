// Package clientip resolves the originating client address of a request.
//
// Proxy headers are consulted in order: CF-Connecting-IP, X-Forwarded-For
// (first valid entry), X-Real-IP, then RemoteAddr. Only deploy behind a proxy
// that overwrites these headers, otherwise clients can spoof them.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// GetIP returns the normalized client IP, or an empty string.
func GetIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for part := range strings.SplitSeq(forwarded, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}

type contextKey struct{}

// SetIPToContext stores client IP in context
func SetIPToContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// GetIPFromContext retrieves client IP from context
func GetIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}

// Middleware stores the client IP in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(SetIPToContext(r.Context(), GetIP(r))))
	})
}
