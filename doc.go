// Package stalk implements a client for work-queue servers speaking the
// line-oriented tube protocol (commands as CRLF-terminated text, job
// payloads as length-prefixed binary bodies embedded in the reply stream).
//
// The client is strictly synchronous: one socket, one outstanding command,
// request/response in lockstep. Connection pooling, pipelining, retries and
// TLS are out of scope by design.
//
// Key components:
//   - Endpoint: immutable (host, port) value, default port 11300
//   - Conn: owns the single socket, opens lazily on first use
//   - Tube: the command surface; tracks the tube in use and the watch set
//   - Job: payload buffer plus the id and owning tube once bound
//
// Example use:
//
//	conn, err := stalk.Dial("127.0.0.1:11300")
//	tube := stalk.NewTube(conn)
//	_, err = tube.Put(stalk.NewJobBytes([]byte("hello")), 1024, 0, time.Minute)
//	job, found, err := tube.Reserve(5 * time.Second)
//	if found {
//		err = job.Delete()
//	}
package stalk
