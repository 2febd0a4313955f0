package session

import "errors"

// Errors surfaced by Session Operations. Callers match them with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrStorageUnavailable = errors.New("session storage unavailable")
	ErrTimeout            = errors.New("operation timed out")
	ErrUnavailable        = errors.New("auth service unavailable")
	ErrNotAuthenticated   = errors.New("not authenticated")
)

// Errors returned by mirrors.
var (
	ErrNoRecord        = errors.New("no session record")
	ErrMalformedRecord = errors.New("malformed session record")
)
