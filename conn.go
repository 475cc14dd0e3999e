package stalk

import (
	"net"
	"strconv"

	"github.com/roadrunner-server/errors"
	"go.uber.org/zap"
)

// Conn owns exactly one socket to one Endpoint. The socket opens lazily on
// first use and is exclusively owned: a Conn must be driven by a single
// Tube, and neither may be used from more than one goroutine at a time.
type Conn struct {
	endpoint Endpoint
	cfg      *Config
	log      *zap.Logger
	sock     net.Conn
}

// NewConn wraps endpoint without touching the network. A nil cfg selects
// defaults, a nil log discards output.
func NewConn(endpoint Endpoint, cfg *Config, log *zap.Logger) *Conn {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.InitDefaults()

	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		endpoint: endpoint,
		cfg:      cfg,
		log:      log,
	}
}

// Dial connects to addr eagerly. Addr may be "host:port", a bare host, or
// empty for the default endpoint on the local machine.
func Dial(addr string) (*Conn, error) {
	const op = errors.Op("stalk_dial")

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// bare host without a port
		host, portStr = addr, ""
	}

	var port uint16
	if portStr != "" {
		p, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, errors.E(op, errors.Errorf("bad port in address %q", addr))
		}
		port = uint16(p)
	}

	conn := NewConn(NewEndpoint(host, port), nil, nil)
	if err := conn.Open(); err != nil {
		return nil, errors.E(op, err)
	}

	return conn, nil
}

// Open dials the endpoint. It is a no-op when the socket is already live;
// an open Conn is never silently replaced.
func (c *Conn) Open() error {
	const op = errors.Op("stalk_conn_open")

	if c.sock != nil {
		return nil
	}

	sock, err := net.DialTimeout("tcp", c.endpoint.Addr(), c.cfg.DialTimeout)
	if err != nil {
		return errors.E(op, &ConnError{Op: "dial", Err: err})
	}

	c.sock = sock
	c.log.Debug("connection opened", zap.String("addr", c.endpoint.Addr()))

	return nil
}

// Close closes and clears the socket; without one it is a no-op.
func (c *Conn) Close() error {
	const op = errors.Op("stalk_conn_close")

	if c.sock == nil {
		return nil
	}

	err := c.sock.Close()
	c.sock = nil
	if err != nil {
		return errors.E(op, &ConnError{Op: "close", Err: err})
	}

	c.log.Debug("connection closed", zap.String("addr", c.endpoint.Addr()))

	return nil
}

// IsOpen reports whether a live socket exists.
func (c *Conn) IsOpen() bool {
	return c.sock != nil
}

// Endpoint returns the descriptor this Conn dials.
func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

// socket hands the live socket to the Tube, opening it on first use.
func (c *Conn) socket() (net.Conn, error) {
	if c.sock == nil {
		if err := c.Open(); err != nil {
			return nil, err
		}
	}
	return c.sock, nil
}

// write transmits one encoded command, opening the socket if needed.
func (c *Conn) write(p []byte) error {
	sock, err := c.socket()
	if err != nil {
		return err
	}

	if _, err := sock.Write(p); err != nil {
		return &ConnError{Op: "write", Err: err}
	}

	return nil
}
