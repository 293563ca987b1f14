package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateID matches DuplicateIDError via errors.Is.
	ErrDuplicateID = errors.New("duplicate activity id")
	// ErrUnknownID matches UnknownIDError via errors.Is.
	ErrUnknownID = errors.New("unknown activity id")
	// ErrIntrospection matches IntrospectionError via errors.Is.
	ErrIntrospection = errors.New("callable not introspectable")
)

// DuplicateIDError is returned when the host emits a second creation for an
// id that is already present. The existing record is left untouched.
type DuplicateIDError struct {
	ID   ID
	Type string
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("activity %d (%s): %s", e.ID, e.Type, ErrDuplicateID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// UnknownIDError is returned for a before/after/destroy notification whose
// id was never created. This is expected when observation was enabled after
// the operation's creation. Event is empty when no notification was
// involved, as for an explicit cleanup request.
type UnknownIDError struct {
	ID    ID
	Event Event
}

// Error implements the error interface.
func (e *UnknownIDError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("activity %d: %s", e.ID, ErrUnknownID)
	}
	return fmt.Sprintf("%s for activity %d: %s", e.Event, e.ID, ErrUnknownID)
}

// Is reports whether target is ErrUnknownID.
func (e *UnknownIDError) Is(target error) bool { return target == ErrUnknownID }

// IntrospectionError describes a callable whose arguments could not be read.
// It never propagates out of processing; it is logged and replaced by the
// Inaccessible placeholder.
type IntrospectionError struct {
	Path []string
	Err  error
}

// Error implements the error interface.
func (e *IntrospectionError) Error() string {
	msg := fmt.Sprintf("%s at %q", ErrIntrospection, strings.Join(e.Path, "."))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is ErrIntrospection.
func (e *IntrospectionError) Is(target error) bool { return target == ErrIntrospection }

// Unwrap returns the underlying cause.
func (e *IntrospectionError) Unwrap() error { return e.Err }
