package protocol

import "strings"

// crlf terminates every command line and trails every binary body.
const crlf = "\r\n"

// Encode renders one command as it goes out on the wire: the parameters
// space-joined and CRLF-terminated. A non-nil body follows the line
// immediately with its own CRLF terminator; the caller is responsible for
// including the body length among the parameters. A non-nil empty body
// still produces the terminator, which is what a zero-length job needs.
func Encode(params []string, body []byte) []byte {
	size := len(crlf)
	for i := range params {
		size += len(params[i]) + 1
	}
	if body != nil {
		size += len(body) + len(crlf)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, strings.Join(params, " ")...)
	buf = append(buf, crlf...)
	if body != nil {
		buf = append(buf, body...)
		buf = append(buf, crlf...)
	}

	return buf
}
