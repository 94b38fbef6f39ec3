package errors

import "errors"

// Recovery flow errors. Each one maps to a page state and a user-facing
// message at the HTTP boundary.
var (
	ErrInvalidLink      = errors.New("invalid or expired reset link")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = errors.New("password does not meet requirements")
	ErrUpdateFailed     = errors.New("password update failed")
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("recovery session not found")
	ErrSessionExpired  = errors.New("recovery session expired")
)

// Server/transport errors.
var (
	ErrAPIRequest  = errors.New("API request failed")
	ErrAPIResponse = errors.New("unexpected API response")
)
