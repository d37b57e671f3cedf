package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIntent signals a query intent that violates its bound invariants.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrStoreUnavailable signals a transient measurement store failure.
	ErrStoreUnavailable = errors.New("measurement store unavailable")
	// ErrEmbeddingUnavailable signals an embedding backend failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrInvalidArgument signals a bad caller-supplied argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIncompatibleIndex signals an index built with a different embedding model version.
	ErrIncompatibleIndex = errors.New("incompatible embedding index")
	// ErrNotFound signals a missing profile.
	ErrNotFound = errors.New("not found")
)

// InvalidIntentError wraps ErrInvalidIntent with the offending category.
type InvalidIntentError struct {
	Category string
	Reason   string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidIntent.Error(), e.Category, e.Reason)
}

func (e *InvalidIntentError) Unwrap() error { return ErrInvalidIntent }

// NewInvalidIntent creates an invalid intent error.
func NewInvalidIntent(category, reason string) error {
	return &InvalidIntentError{Category: category, Reason: reason}
}

// ValidationError reports a malformed profile field on ingest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidArgument.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }
