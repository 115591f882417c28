package binder

import "errors"

var (
	ErrBinderNotApplicable  = errors.New("binder not applicable to request")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrFailedToParseForm    = errors.New("failed to parse form data")
	ErrInvalidQuery         = errors.New("invalid query parameters")
	ErrInvalidPath          = errors.New("invalid path parameters")
)
