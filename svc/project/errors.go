package project

import "errors"

var (
	ErrNotFound       = errors.New("project not found")
	ErrNotMember      = errors.New("not a project member")
	ErrForbidden      = errors.New("insufficient project permissions")
	ErrAlreadyMember  = errors.New("user is already a project member")
	ErrOwnerImmutable = errors.New("project owner cannot be changed or removed")
)
