package recorder

import (
	"time"

	"github.com/yanun0323/errors"
)

// Config controls the trading log file.
type Config struct {
	Path string
	// QueueSize bounds the lines waiting for the writer goroutine.
	QueueSize  int
	BufferSize int
	// FlushInterval of zero flushes only on close.
	FlushInterval time.Duration
	// Location is the IANA zone line timestamps are rendered in.
	Location string
}

// DefaultConfig flushes every minute and stamps lines in US/Pacific time.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		QueueSize:     4096,
		BufferSize:    64 << 10,
		FlushInterval: time.Minute,
		Location:      "America/Los_Angeles",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig(c.Path)
	if c.QueueSize == 0 {
		c.QueueSize = def.QueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = def.BufferSize
	}
	if c.Location == "" {
		c.Location = def.Location
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.Path == "":
		return errors.New("recorder: empty log path")
	case c.QueueSize <= 0 || c.BufferSize <= 0:
		return errors.Errorf("recorder: queue size %d and buffer size %d must be positive", c.QueueSize, c.BufferSize)
	case c.FlushInterval < 0:
		return errors.Errorf("recorder: negative flush interval %s", c.FlushInterval)
	}
	return nil
}
