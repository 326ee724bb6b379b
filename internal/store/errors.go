package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no mirrored project exists for an identifier.
var ErrNotFound = errors.New("project not found")

// ParseError reports a local document that could not be accepted. The files
// on disk are left untouched when a ParseError is returned.
type ParseError struct {
	// Reason describes the first violation encountered.
	Reason string

	// Err is the underlying decode error, when one exists.
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid project document: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid project document: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
