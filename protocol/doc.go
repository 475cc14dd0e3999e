// Package protocol implements the wire codec for the queue server's
// line-oriented text protocol.
//
// Commands are space-joined parameter lists terminated by CRLF, optionally
// followed by a binary body with its own CRLF terminator. Replies are either
// a single status line or a status line followed by a length-prefixed binary
// body. The codec is stateless: callers hand it an io.Reader and get back a
// trimmed line or a fully reassembled Frame, including the supplemental read
// needed when the first network chunk does not hold the whole body.
package protocol
