package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"futurebot/pkg/exception"

	"github.com/gorilla/websocket"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second

	closeNormal = websocket.CloseNormalClosure
)

// Conn is a text-frame websocket connection. Writes are serialized; reads
// must come from a single goroutine.
type Conn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	c, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", exception.ErrWebSocketDial, url, err)
	}
	return &Conn{conn: c, writeTimeout: DefaultWriteTimeout}, nil
}

// DialWithRetry dials until it succeeds, attempts are exhausted or ctx is
// done, waiting b between attempts. attempts <= 0 retries forever.
func DialWithRetry(ctx context.Context, url string, header http.Header, b Backoff, attempts int) (*Conn, error) {
	for i := 1; ; i++ {
		c, err := Dial(ctx, url, header)
		if err == nil {
			return c, nil
		}
		if attempts > 0 && i >= attempts {
			return nil, err
		}
		if werr := b.Wait(ctx, i); werr != nil {
			return nil, errors.Join(err, werr)
		}
	}
}

// WriteText sends one text frame.
func (c *Conn) WriteText(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("%w: %w", exception.ErrSendFailure, err)
	}
	return nil
}

// WriteClose sends a normal close control frame.
func (c *Conn) WriteClose() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(closeNormal, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", exception.ErrSendFailure, err)
	}
	return nil
}

// ReadFrame blocks for the next data frame. A close from either side is
// reported as exception.ErrWebSocketConnectionClose.
func (c *Conn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) || errors.Is(err, net.ErrClosed) {
			return nil, fmt.Errorf("%w: %w", exception.ErrWebSocketConnectionClose, err)
		}
		return nil, err
	}
	return data, nil
}

// Close closes the underlying connection. It unblocks a pending ReadFrame.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.conn.Close() })
	return err
}
