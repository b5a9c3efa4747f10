package risk

import (
	"fmt"
	"sync"
	"time"

	"futurebot/pkg/exception"
)

// Config defines the limits applied to entry orders.
type Config struct {
	KillSwitch      bool          `yaml:"killSwitch"`
	MaxOrderQty     int64         `yaml:"maxOrderQty"`
	OrderRateLimit  int           `yaml:"orderRateLimit"`
	OrderRateWindow time.Duration `yaml:"orderRateWindow"`
}

// Reason explains a denial.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxQty
	ReasonInvalidQty
)

func (r Reason) String() string {
	switch r {
	case ReasonKillSwitch:
		return "kill switch"
	case ReasonRateLimit:
		return "rate limit"
	case ReasonMaxQty:
		return "max order qty"
	case ReasonInvalidQty:
		return "invalid qty"
	default:
		return "none"
	}
}

// Gate decides whether a new position may be opened. Exits never pass
// through it.
type Gate struct {
	mu          sync.Mutex
	cfg         Config
	windowStart time.Time
	count       int
}

// NewGate creates a gate with static limits.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate applies the limits to an entry of qty at now. Only allowed
// entries count against the rate limit.
func (g *Gate) Evaluate(qty int64, now time.Time) Reason {
	if g == nil {
		return ReasonNone
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cfg.KillSwitch {
		return ReasonKillSwitch
	}
	if qty <= 0 {
		return ReasonInvalidQty
	}
	if g.cfg.MaxOrderQty > 0 && qty > g.cfg.MaxOrderQty {
		return ReasonMaxQty
	}
	if g.cfg.OrderRateLimit > 0 && g.cfg.OrderRateWindow > 0 {
		if g.windowStart.IsZero() || now.Sub(g.windowStart) >= g.cfg.OrderRateWindow {
			g.windowStart = now
			g.count = 0
		}
		if g.count >= g.cfg.OrderRateLimit {
			return ReasonRateLimit
		}
		g.count++
	}
	return ReasonNone
}

// Check is Evaluate returning ErrRiskRejected on denial.
func (g *Gate) Check(qty int64, now time.Time) error {
	if r := g.Evaluate(qty, now); r != ReasonNone {
		return fmt.Errorf("%w: %s", exception.ErrRiskRejected, r)
	}
	return nil
}

// Release returns the rate slot taken by an allowed entry that was never
// sent. A slot from a window that already rolled over is not returned.
func (g *Gate) Release(now time.Time) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count == 0 || now.Sub(g.windowStart) >= g.cfg.OrderRateWindow {
		return
	}
	g.count--
}
