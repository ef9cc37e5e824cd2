package litestore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node, link or task does not exist or is hidden by trash
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a path is already taken
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when the caller may not perform the operation
	ErrForbidden = errors.New("forbidden")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
)

// Reasons reported by DeniedError.
const (
	DenyExpired          = "expired"
	DenyLimitReached     = "limit_reached"
	DenyPasswordRequired = "password_required"
	DenyPasswordMismatch = "password_mismatch"
)

// DeniedError is returned when a share link exists but may not be redeemed.
// It matches ErrForbidden with errors.Is.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("link denied: %s", e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrForbidden
}
