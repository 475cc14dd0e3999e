package stalk

import (
	"time"

	"github.com/stalk-mq/stalk/protocol"
)

// Config tunes a single client connection.
type Config struct {
	// DialTimeout bounds the TCP connect attempt.
	// Default - 10 seconds
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// ReadBufferSize is the size of the chunk used for the initial read of
	// every reply. Replies larger than it are completed with a supplemental
	// read, so this only trades allocations against extra socket reads.
	// Default - 256, minimum - 100
	ReadBufferSize int `mapstructure:"read_buffer_size"`
}

func (c *Config) InitDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = time.Second * 10
	}

	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = 256
	}

	if c.ReadBufferSize < protocol.MinBufferSize {
		c.ReadBufferSize = protocol.MinBufferSize
	}
}
