package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"futurebot/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return strings.Replace(srv.URL, "http://", "ws://", 1)
}

func TestEchoAndPeerClose(t *testing.T) {
	url := newServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("o"))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	})

	c, err := Dial(t.Context(), url, nil)
	require.NoError(t, err)
	defer c.Close()

	frame, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "o", string(frame))

	require.NoError(t, c.WriteText("authorize\n1\n\ntoken"))
	frame, err = c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "authorize\n1\n\ntoken", string(frame))

	_, err = c.ReadFrame()
	if !errors.Is(err, exception.ErrWebSocketConnectionClose) {
		t.Fatalf("read after peer close: got %v want %v", err, exception.ErrWebSocketConnectionClose)
	}
}

func TestWriteCloseReachesPeer(t *testing.T) {
	got := make(chan int, 1)
	url := newServer(t, func(conn *websocket.Conn) {
		_, _, err := conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			got <- ce.Code
		}
	})

	c, err := Dial(t.Context(), url, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.WriteClose())
	select {
	case code := <-got:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not observe the close frame")
	}
}

func TestDialWithRetryGivesUp(t *testing.T) {
	b := Backoff{Base: time.Millisecond, Cap: 2 * time.Millisecond}
	_, err := DialWithRetry(t.Context(), "ws://127.0.0.1:1/v1/websocket", nil, b, 2)
	assert.ErrorIs(t, err, exception.ErrWebSocketDial)
}

func TestBackoffDoublesToCap(t *testing.T) {
	b := Backoff{Base: 10 * time.Millisecond, Cap: 40 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.Next(1))
	assert.Equal(t, 20*time.Millisecond, b.Next(2))
	assert.Equal(t, 40*time.Millisecond, b.Next(3))
	assert.Equal(t, 40*time.Millisecond, b.Next(10))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Cap: 100 * time.Millisecond, Jitter: 0.5}
	for range 50 {
		d := b.Next(3)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay: got %s want within [50ms, 150ms]", d)
		}
	}
}
