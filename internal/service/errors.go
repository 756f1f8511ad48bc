// Package service provides business logic for capsules and accounts.
package service

import (
	"errors"
	"fmt"

	"github.com/timecapsule/timecapsule/internal/auth"
)

// Service errors.
var (
	// ErrNotAuthenticated is returned before any store access when the caller has no identity.
	ErrNotAuthenticated = auth.ErrNotAuthenticated
	// ErrCapsuleNotFound covers both absent capsules and capsules owned by someone else.
	ErrCapsuleNotFound = errors.New("capsule not found")
	// ErrValidation is the kind of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
