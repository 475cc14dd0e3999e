package stalk

import (
	"net"
	"strconv"
)

// DefaultPort is the port queue servers listen on unless told otherwise.
const DefaultPort uint16 = 11300

// Endpoint is an immutable (host, port) descriptor of a queue server. It
// is a plain value and safe to share; the live socket belongs to Conn.
type Endpoint struct {
	host string
	port uint16
}

// NewEndpoint builds an endpoint descriptor. An empty host means the local
// machine, a zero port selects DefaultPort.
func NewEndpoint(host string, port uint16) Endpoint {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = DefaultPort
	}
	return Endpoint{host: host, port: port}
}

func (e Endpoint) Host() string { return e.host }

func (e Endpoint) Port() uint16 { return e.port }

// Addr returns the host:port form used for dialing.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.host, strconv.Itoa(int(e.port)))
}
