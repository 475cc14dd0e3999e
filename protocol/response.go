package protocol

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// MinBufferSize is the smallest receive buffer the codec will work with.
// Every status line the server produces fits in it.
const MinBufferSize = 100

// Frame is one decoded job-bearing reply.
type Frame struct {
	// Status is the leading keyword of the header line.
	Status string
	// ID is the job id from the header, zero when the header carries none.
	ID uint32
	// Body holds exactly the declared number of payload bytes; nil for
	// status-only replies.
	Body []byte
}

// ReadLine performs a single bounded read and returns the reply with
// trailing line-ending whitespace stripped. The read failing, or returning
// zero bytes, is a transport failure.
func ReadLine(r io.Reader, bufSize int) (string, error) {
	chunk, err := read(r, bufSize)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(chunk), "\r\n"), nil
}

// ReadFrame decodes a reply of the shape
//
//	<STATUS> <id> <bytes>\r\n<bytes of body>\r\n
//
// along with the two degenerate shapes produced on the same server code
// path: a bare status line ("TIMED_OUT") and a body reply without an id
// ("OK <bytes>").
//
// One chunk of at most bufSize bytes is read first. When the chunk holds
// more than the declared body length, the excess belongs to the trailing
// CRLF and is discarded. When it holds less, the remainder plus the two
// terminator bytes is fetched with one exact supplemental read. Buffer
// boundaries never align with payload boundaries; no branch assumes one
// read equals one message.
func ReadFrame(r io.Reader, bufSize int) (*Frame, error) {
	chunk, err := read(r, bufSize)
	if err != nil {
		return nil, err
	}

	head := bytes.Index(chunk, []byte(crlf))
	if head < 0 {
		return nil, ErrMalformed
	}

	fields := strings.Fields(string(chunk[:head]))
	frame := &Frame{}
	var declared int

	switch len(fields) {
	case 1:
		frame.Status = fields[0]
		return frame, nil
	case 2:
		frame.Status = fields[0]
		declared, err = parseSize(fields[1])
	case 3:
		frame.Status = fields[0]
		frame.ID, err = parseID(fields[1])
		if err == nil {
			declared, err = parseSize(fields[2])
		}
	default:
		return nil, ErrMalformed
	}
	if err != nil {
		return nil, err
	}

	avail := chunk[head+len(crlf):]
	if missing := declared + len(crlf) - len(avail); missing > 0 {
		extra := make([]byte, missing)
		if _, err := io.ReadFull(r, extra); err != nil {
			return nil, &ConnError{Op: "read", Err: err}
		}
		avail = append(avail, extra...)
	}

	// anything past the declared length is the terminator, not payload
	frame.Body = avail[:declared]
	return frame, nil
}

// read issues exactly one Read of at most bufSize bytes.
func read(r io.Reader, bufSize int) ([]byte, error) {
	if bufSize < MinBufferSize {
		bufSize = MinBufferSize
	}

	buf := make([]byte, bufSize)
	n, err := r.Read(buf)
	if n == 0 {
		if err == nil || err == io.EOF {
			err = ErrClosed
		}
		return nil, &ConnError{Op: "read", Err: err}
	}

	return buf[:n], nil
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, ErrMalformed
	}
	return uint32(id), nil
}

func parseSize(s string) (int, error) {
	size, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, ErrMalformed
	}
	return int(size), nil
}
