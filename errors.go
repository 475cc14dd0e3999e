package stalk

import (
	"fmt"

	"github.com/roadrunner-server/errors"
	"github.com/stalk-mq/stalk/protocol"
)

// Transport and framing error types, shared with the protocol package so
// callers only need one import to match them.
type (
	ConnError               = protocol.ConnError
	UnexpectedResponseError = protocol.UnexpectedResponseError
)

// ErrMalformed reports reply framing the decoder could not parse.
var ErrMalformed = protocol.ErrMalformed

// Domain outcomes: the server processed the command but answered with a
// business-level refusal rather than a transport or framing failure.
var (
	// ErrBuried is returned when a job ended up buried: a put while the
	// server is low on memory, or a release the server turned into a bury.
	// The job is stored either way.
	ErrBuried = errors.Str("job buried")
	// ErrJobTooBig is returned when the payload exceeds max-job-size.
	ErrJobTooBig = errors.Str("job exceeds max-job-size")
	// ErrDraining is returned when the server is shutting down and no
	// longer accepts new jobs.
	ErrDraining = errors.Str("server is draining, not accepting jobs")
	// ErrExpectedCRLF is returned when the server saw a body without its
	// CRLF terminator.
	ErrExpectedCRLF = errors.Str("job body was not CRLF terminated")
	// ErrNotIgnored is returned on an attempt to ignore the only watched
	// tube; the watch set is left unchanged.
	ErrNotIgnored = errors.Str("cannot ignore the only watched tube")
	// ErrNotFound is returned when the job a command names does not exist
	// or is not in a state the command applies to.
	ErrNotFound = errors.Str("job not found")
	// ErrDeadlineSoon is returned from reserve when an already-held
	// reservation is about to expire.
	ErrDeadlineSoon = errors.Str("reservation deadline soon")
)

// ErrNotBound is returned when a job lifecycle operation is invoked on a
// job that was never submitted, reserved or peeked.
var ErrNotBound = errors.Str("job is not associated with a tube")

// NameError reports a tube name rejected before any I/O happened.
type NameError struct {
	Name   string
	Reason string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("bad tube name %q: %s", e.Name, e.Reason)
}
