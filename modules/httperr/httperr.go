// Package httperr translates service errors into handler errors.
//
// Services return sentinel errors and validator.ValidationErrors. Modules
// describe how each sentinel maps to an HTTP error with a list of rules:
//
//	var rules = []httperr.Rule{
//		httperr.On(user.ErrEmailTaken, handler.ErrConflict),
//		httperr.On(auth.ErrInvalidCredentials, httperr.BadRequest("invalid_credentials")),
//	}
//
//	return httperr.Fail(err, rules...)
//
// Unmatched errors are returned unchanged and render as 500 without leaking
// their text.
package httperr

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/taskflow/handler"
	"github.com/dmitrymomot/taskflow/pkg/ratelimiter"
	"github.com/dmitrymomot/taskflow/pkg/validator"
)

// Rule maps a sentinel matched with errors.Is to an HTTP error.
type Rule struct {
	Target error
	HTTP   handler.HTTPError
}

// On builds a Rule. The client message is the sentinel text.
func On(target error, httpErr handler.HTTPError) Rule {
	return Rule{Target: target, HTTP: httpErr}
}

// BadRequest is a 400 with a specific key.
func BadRequest(key string) handler.HTTPError {
	return handler.NewHTTPError(http.StatusBadRequest, key, "")
}

type failure struct{ err error }

// Render writes nothing and hands the error back to the wrapper, so the
// module error handler logs and renders it.
func (f failure) Render(http.ResponseWriter, *http.Request) error { return f.err }

// Fail is a handler.Response that fails with the mapped err.
func Fail(err error, rules ...Rule) handler.Response {
	if err == nil {
		err = handler.ErrInternalServerError
	}
	return failure{err: Map(err, rules...)}
}

// Map returns err joined with the first matching HTTP error. Validation
// errors become handler.ValidationError.
func Map(err error, rules ...Rule) error {
	if err == nil {
		return nil
	}
	if ve, ok := validator.Extract(err); ok {
		return handler.ValidationError(ve.Values())
	}
	for _, r := range rules {
		if errors.Is(err, r.Target) {
			httpErr := r.HTTP
			if httpErr.Message == "" {
				httpErr = httpErr.WithMessage(r.Target.Error())
			}
			return errors.Join(httpErr, err)
		}
	}
	return err
}

// Unauthorized is a jwt.ErrorResponder writing the JSON error envelope.
func Unauthorized(w http.ResponseWriter, r *http.Request, _ error) {
	_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
}

// TooManyRequests is a ratelimiter.DeniedFunc writing the JSON error envelope.
func TooManyRequests(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result) {
	_ = handler.JSONError(handler.ErrTooManyRequests).Render(w, r)
}
