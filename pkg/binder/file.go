package binder

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
)

// DefaultMaxMemory is the default maximum memory used for parsing multipart forms (10MB).
const DefaultMaxMemory = 10 << 20

var fileHeaderType = reflect.TypeOf((*multipart.FileHeader)(nil))

// File creates a multipart binder for `file:"name"` fields of type
// *multipart.FileHeader. Plain form values are bound through `form:"name"` tags.
func File() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			return ErrBinderNotApplicable
		}

		if err := r.ParseMultipartForm(DefaultMaxMemory); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseForm, err)
		}

		if err := bindToStruct(v, "form", r.MultipartForm.Value, ErrFailedToParseForm); err != nil {
			return err
		}

		rv, err := structValue(v, ErrFailedToParseForm)
		if err != nil {
			return err
		}
		rt := rv.Type()
		for i := range rv.NumField() {
			field := rv.Field(i)
			fieldType := rt.Field(i)
			name := fieldType.Tag.Get("file")
			if !field.CanSet() || name == "" || name == "-" || fieldType.Type != fileHeaderType {
				continue
			}
			headers := r.MultipartForm.File[name]
			if len(headers) == 0 {
				continue
			}
			headers[0].Filename = sanitizeFilename(headers[0].Filename)
			field.Set(reflect.ValueOf(headers[0]))
		}

		return nil
	}
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSpace(strings.ReplaceAll(name, "..", ""))
	if name == "" {
		return "upload"
	}
	return name
}
