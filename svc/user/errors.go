package user

import "errors"

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidImage = errors.New("avatar must be an image")
	ErrNoStorage    = errors.New("file storage is not configured")
)
