package protocol

import (
	"fmt"

	"github.com/roadrunner-server/errors"
)

// ErrMalformed reports reply framing the decoder could not parse.
var ErrMalformed = errors.Str("unrecognised response")

// ErrClosed reports a peer that closed the connection mid-conversation
// (a zero-byte read).
var ErrClosed = errors.Str("connection closed by peer")

// ConnError is a transport failure: dial, write, read, or an unexpected
// close. The wrapped error carries the underlying cause.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// UnexpectedResponseError reports a status keyword outside the expected
// set for the command that was issued.
type UnexpectedResponseError struct {
	Status string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected server response %q", e.Status)
}
