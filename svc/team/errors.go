package team

import "errors"

var (
	ErrNotFound      = errors.New("team not found")
	ErrNotMember     = errors.New("not a team member")
	ErrForbidden     = errors.New("insufficient team permissions")
	ErrAlreadyMember = errors.New("user is already a team member")
)
