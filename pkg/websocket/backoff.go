package websocket

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff is a doubling delay between dial attempts.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 250 * time.Millisecond, Cap: 5 * time.Second, Jitter: 0.2}
}

// Next returns the delay after the given 1-based attempt.
func (b Backoff) Next(attempt int) time.Duration {
	base, ceiling := b.Base, b.Cap
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if ceiling < base {
		ceiling = base
	}

	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	d = min(d, ceiling)

	j := min(b.Jitter, 1)
	if j <= 0 {
		return d
	}
	spread := time.Duration(float64(d) * j)
	return d - spread + rand.N(2*spread+1)
}

// Wait sleeps for the delay of attempt. It returns ctx.Err() when ctx ends
// first.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(b.Next(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
