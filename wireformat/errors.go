package wireformat

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a buffer ends before the structure it announces.
	ErrTruncated = errors.New("buffer truncated")

	// ErrBadHeader is returned when an envelope header is inconsistent.
	ErrBadHeader = errors.New("malformed envelope header")
)

// DecodeError reports a malformed buffer. It is a host-local fault: nothing
// decoded from the buffer is ever returned alongside it.
type DecodeError struct {
	Err    error
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wireformat: decode failed at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValueError reports a Go value that has no wire representation.
type ValueError struct {
	Value  any
	Path   string
	Reason string
}

func (e *ValueError) Error() string {
	msg := fmt.Sprintf("wireformat: cannot encode %T", e.Value)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// GuestError carries the free-form message of an error-branch envelope.
type GuestError struct {
	Message string
}

func (e *GuestError) Error() string {
	return e.Message
}
