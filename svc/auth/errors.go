package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrFederatedOnly      = errors.New("account uses Google sign in, password sign in is not available")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTokenRevoked       = errors.New("token revoked")
)

var (
	ErrFederatedDisabled = errors.New("google sign in is not configured")
	ErrInvalidState      = errors.New("invalid or expired OAuth state")
	ErrInvalidOAuthCode  = errors.New("invalid OAuth code")
	ErrUnverifiedEmail   = errors.New("email not verified by provider")
)

var (
	ErrInvalidTicket = errors.New("invalid or expired reset ticket")
	ErrTicketUsed    = errors.New("reset ticket already used")
)
