package utils

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the index engine.
var (
	// ErrCorrupt reports a structural invariant violated while loading or
	// walking the tree (bad depth, oversized cell count, missing or cyclic
	// parent entries, unindexed rowids).
	ErrCorrupt = errors.New("rtree: corrupt index")

	// ErrConstraint reports caller-supplied data that violates an input
	// invariant (inverted ranges, duplicate rowids, malformed match blobs).
	ErrConstraint = errors.New("rtree: constraint violation")
)

// RTError represents a structured rtree error.
type RTError struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *RTError) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Unwrap().
func (e *RTError) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &RTError{
		Context: context,
		Cause:   cause,
	}
}

// Corrupt returns an ErrCorrupt annotated with context.
func Corrupt(context string) error {
	return &RTError{Context: context, Cause: ErrCorrupt}
}

// Corruptf returns an ErrCorrupt annotated with a formatted context.
func Corruptf(format string, args ...interface{}) error {
	return Corrupt(fmt.Sprintf(format, args...))
}

// Constraint returns an ErrConstraint annotated with context.
func Constraint(context string) error {
	return &RTError{Context: context, Cause: ErrConstraint}
}
