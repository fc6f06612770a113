package domain

import "errors"

var (
	// ErrValidation marks malformed or incomplete input rejected before any
	// record is created.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an update rejected by the record's current state.
	ErrConflict = errors.New("conflict")
)
