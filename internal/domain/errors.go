package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrStateConflict rejects an operation that would overlap one already in
	// flight for the same hotel (a second sync or save).
	ErrStateConflict = errors.New("state conflict")
	ErrUnknownField  = errors.New("unknown field")
)

// FetchError wraps any collaborator failure: network, non-2xx, bad payload.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError rejects data that cannot be submitted as-is.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
