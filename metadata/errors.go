package metadata

import (
	"errors"
	"fmt"
)

// Errors returned by container operations.
var (
	// ErrModeViolation is matched by every error caused by using a container
	// against its construction mode.
	ErrModeViolation = errors.New("metadata: mode violation")
	// ErrIllegalState is returned when an operation is not valid for the
	// container's current mode, such as serializing a raw container.
	ErrIllegalState = errors.New("metadata: illegal state")
	// ErrInvalidArgument is returned when an argument cannot be accepted,
	// such as merging a raw container or an odd number of wire pairs.
	ErrInvalidArgument = errors.New("metadata: invalid argument")
)

// ModeError reports an operation rejected because of a container mode.
// It matches ErrModeViolation and Kind with errors.Is.
type ModeError struct {
	Op   string
	Mode Mode
	Kind error
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("metadata: %s on %s container: %v", e.Op, e.Mode, e.Kind)
}

func (e *ModeError) Unwrap() []error {
	return []error{ErrModeViolation, e.Kind}
}

// DecodeError is returned by Get and GetAll when a codec cannot parse a
// stored value.
type DecodeError struct {
	Name   string
	Binary bool
	Err    error
}

func (e *DecodeError) Error() string {
	form := "ascii"
	if e.Binary {
		form = "binary"
	}
	return fmt.Sprintf("metadata: decode %s value of %q: %v", form, e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
