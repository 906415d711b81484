// Package apperr holds the sentinel errors shared across the service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")

	// ErrAuthRequired means the operation needs a signed-in user and none was given.
	ErrAuthRequired = errors.New("authentication required")
	// ErrUnauthorized means the remote store rejected the session (expired or invalid token).
	ErrUnauthorized = errors.New("unauthorized")
)
