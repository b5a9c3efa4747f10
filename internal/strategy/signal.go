package strategy

import (
	"fmt"
	"time"

	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
)

// Signal is a trading direction and what caused it.
type Signal struct {
	Action enum.Action
	Reason string
}

// IsNeutral reports whether the signal has no direction.
func (s Signal) IsNeutral() bool {
	return !s.Action.IsKnown()
}

// observation is the market input of one signal evaluation.
type observation struct {
	recent   []model.TradeTick
	depth    model.DepthSummary
	pressure market.Pressure
}

func observe(b *market.Book, now time.Time, window time.Duration) observation {
	return observation{
		recent:   b.RecentTicks(now, window),
		depth:    b.DepthSummary(now),
		pressure: b.Pressure(now, window),
	}
}

// evaluate derives the signal and updates the trackers of s.
func (e *Engine) evaluate(s *State, o observation) Signal {
	trigger := max(e.cfg.LargeTrade, s.LargestTrigger.Qty)
	for i := len(o.recent) - 1; i >= 0; i-- {
		t := o.recent[i]
		if t.Qty < trigger {
			continue
		}
		if t.Side.IsKnown() {
			s.LargestTrigger = t
			e.updateExtremes(s, o)
			return Signal{
				Action: t.Side,
				Reason: fmt.Sprintf("Large Trade %d @ %.2f", t.Qty, t.Price),
			}
		}
		break
	}

	threshold := max(e.cfg.PressureThreshold, abs(s.PressureExtreme.Net))
	buy := o.pressure.Net > threshold && o.depth.Net > e.cfg.DepthThreshold
	sell := o.pressure.Net < -threshold && o.depth.Net < -e.cfg.DepthThreshold
	e.updateExtremes(s, o)

	reason := fmt.Sprintf("pressure buy=%d sell=%d net=%d, depth bid=%d ask=%d net=%.2f",
		o.pressure.Buy, o.pressure.Sell, o.pressure.Net, o.depth.TotalBid, o.depth.TotalAsk, o.depth.Net)
	switch {
	case buy:
		return Signal{Action: enum.ActionBuy, Reason: reason}
	case sell:
		return Signal{Action: enum.ActionSell, Reason: reason}
	default:
		return Signal{}
	}
}

func (e *Engine) updateExtremes(s *State, o observation) {
	if abs(o.pressure.Net) > abs(s.PressureExtreme.Net) {
		s.PressureExtreme = o.pressure
	}
	if absFloat(o.depth.Net) > absFloat(s.DepthExtreme.Net) {
		s.DepthExtreme = o.depth
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
