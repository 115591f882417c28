// Package validator implements small composable input rules.
//
//	err := validator.Apply(
//		validator.Required("email", req.Email),
//		validator.ValidEmail("email", req.Email),
//		validator.MaxLen("name", req.Name, 120),
//	)
//
// Apply returns ValidationErrors, which carries every failed field.
package validator

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"
)

// FieldError is a single failed rule.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors represents a collection of validation errors.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed any rule.
func (ve ValidationErrors) Has(field string) bool {
	return slices.ContainsFunc(ve, func(e FieldError) bool { return e.Field == field })
}

// Values groups the messages by field.
func (ve ValidationErrors) Values() url.Values {
	v := make(url.Values, len(ve))
	for _, e := range ve {
		v.Add(e.Field, e.Message)
	}
	return v
}

// Rule represents a single validation rule.
type Rule struct {
	Check func() bool
	Error FieldError
}

// Apply runs every rule and collects the failures. Only the first failure
// per field is kept.
func Apply(rules ...Rule) error {
	var errs ValidationErrors
	for _, rule := range rules {
		if errs.Has(rule.Error.Field) {
			continue
		}
		if !rule.Check() {
			errs = append(errs, rule.Error)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Extract returns the ValidationErrors inside err, if any.
func Extract(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	ok := errors.As(err, &ve)
	return ve, ok
}

func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: FieldError{Field: field, Message: "is required"},
	}
}

func MaxLen(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= n },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", n)},
	}
}

// MaxBytes limits the encoded length of value, unlike MaxLen which counts
// runes.
func MaxBytes(field, value string, n int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= n },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be at most %d bytes", n)},
	}
}

// ValidEmail accepts a bare address with a dotted domain. Empty values pass,
// combine with Required when the field is mandatory.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if value == "" {
				return true
			}
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != value {
				return false
			}
			_, domain, _ := strings.Cut(value, "@")
			return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
		},
		Error: FieldError{Field: field, Message: "must be a valid email address"},
	}
}

// Digits requires exactly n ASCII digits.
func Digits(field, value string, n int) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != n {
				return false
			}
			for _, r := range value {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		},
		Error: FieldError{Field: field, Message: fmt.Sprintf("must be %d digits", n)},
	}
}

// InList requires value to be one of allowed. Empty values pass.
func InList[T comparable](field string, value T, allowed []T) Rule {
	return Rule{
		Check: func() bool {
			var zero T
			return value == zero || slices.Contains(allowed, value)
		},
		Error: FieldError{Field: field, Message: "has an unsupported value"},
	}
}

// ValidURL requires an absolute http(s) URL. Empty values pass.
func ValidURL(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if value == "" {
				return true
			}
			u, err := url.Parse(value)
			return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		},
		Error: FieldError{Field: field, Message: "must be a valid URL"},
	}
}

// MaxItems limits the length of a slice.
func MaxItems[T any](field string, value []T, n int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= n },
		Error: FieldError{Field: field, Message: fmt.Sprintf("must contain at most %d items", n)},
	}
}
