package binder

import "net/http"

// Query creates a query string binder using `query:"name"` tags.
// Slices accept both repeated (?tag=a&tag=b) and comma separated values.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if r.URL.RawQuery == "" {
			return ErrBinderNotApplicable
		}
		return bindToStruct(v, "query", r.URL.Query(), ErrInvalidQuery)
	}
}
