package service

import "errors"

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileExists        = errors.New("profile already exists")
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidField         = errors.New("invalid field value")
	ErrProtectedField       = errors.New("protected field")
	ErrNoValidFields        = errors.New("no valid fields")
	ErrStorageNotConfigured = errors.New("image storage is not configured")
)

// ValidationError is a business-rule rejection. Message is safe to show to
// the caller; Err, when set, is one of the sentinels above.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(message string, err error) *ValidationError {
	return &ValidationError{Message: message, Err: err}
}
