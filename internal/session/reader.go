package session

import (
	"context"
	"errors"
	"fmt"

	"futurebot/pkg/exception"
)

// ReadLoop feeds frames from r to d until the connection ends. It always
// returns a non-nil error; ErrConnectionTerminated means the peer closed.
func ReadLoop(ctx context.Context, r Reader, d *Dispatcher) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := r.ReadFrame()
		if err != nil {
			if errors.Is(err, exception.ErrWebSocketConnectionClose) {
				d.HandlePeerClose(err.Error())
				return exception.ErrConnectionTerminated
			}
			return fmt.Errorf("read %s frame: %w", d.kind, err)
		}
		if err := d.HandleFrame(frame); err != nil {
			return err
		}
	}
}
