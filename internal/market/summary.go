package market

import (
	"fmt"
	"time"

	"futurebot/internal/model"
	"futurebot/internal/model/enum"
)

// Pressure is the traded volume by side over a trailing window.
type Pressure struct {
	Buy       int64
	Sell      int64
	Net       int64
	LastPrice float64
	Count     int
}

// DepthSummary merges the summaries of every held book.
func (b *Book) DepthSummary(now time.Time) model.DepthSummary {
	var total model.DepthSummary
	for _, d := range b.DOMs {
		total = total.Merge(d.Summary(now))
	}
	return total
}

// Pressure sums the volume of ticks no older than window before now. Ticks
// with an unknown side are ignored.
func (b *Book) Pressure(now time.Time, window time.Duration) Pressure {
	var p Pressure
	from := now.Add(-window).UnixMilli()
	for i := len(b.Ticks) - 1; i >= 0; i-- {
		t := b.Ticks[i]
		if t.Timestamp < from {
			break
		}
		if p.Count == 0 {
			p.LastPrice = t.Price
		}
		p.Count++
		switch t.Side {
		case enum.ActionBuy:
			p.Buy += t.Qty
		case enum.ActionSell:
			p.Sell += t.Qty
		}
	}
	p.Net = p.Buy - p.Sell
	return p
}

// LatestTick returns the most recent tick no older than window before now.
func (b *Book) LatestTick(now time.Time, window time.Duration) (model.TradeTick, bool) {
	if len(b.Ticks) == 0 {
		return model.TradeTick{}, false
	}
	last := b.Ticks[len(b.Ticks)-1]
	if last.Timestamp < now.Add(-window).UnixMilli() {
		return model.TradeTick{}, false
	}
	return last, true
}

// RecentTicks copies the ticks no older than window before now, oldest first.
func (b *Book) RecentTicks(now time.Time, window time.Duration) []model.TradeTick {
	from := now.Add(-window).UnixMilli()
	i := len(b.Ticks)
	for i > 0 && b.Ticks[i-1].Timestamp >= from {
		i--
	}
	out := make([]model.TradeTick, len(b.Ticks)-i)
	copy(out, b.Ticks[i:])
	return out
}

// SyntheticQuote returns the bid and ask of the latest tick of a chart.
func (b *Book) SyntheticQuote(historicalID int64) (model.SyntheticQuote, bool) {
	for i := len(b.Ticks) - 1; i >= 0; i-- {
		if t := b.Ticks[i]; t.HistoricalID == historicalID {
			return model.SyntheticQuote{Bid: t.Bid, Ask: t.Ask}, true
		}
	}
	return model.SyntheticQuote{}, false
}

// LargestTrades returns the largest buy and largest sell of the history.
func (b *Book) LargestTrades() (buy, sell model.TradeTick) {
	for _, t := range b.Ticks {
		switch t.Side {
		case enum.ActionBuy:
			if t.Qty > buy.Qty {
				buy = t
			}
		case enum.ActionSell:
			if t.Qty > sell.Qty {
				sell = t
			}
		}
	}
	return buy, sell
}

// TickSummary describes the tick history for reports.
func (b *Book) TickSummary(loc *time.Location) string {
	buy, sell := b.LargestTrades()
	return fmt.Sprintf("ticks=%d largest buy: %s largest sell: %s",
		len(b.Ticks), describeTick(buy, loc), describeTick(sell, loc))
}

func describeTick(t model.TradeTick, loc *time.Location) string {
	if t.Qty == 0 {
		return "none"
	}
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%d @ %.2f at %s", t.Qty, t.Price, t.Time().In(loc).Format(time.DateTime))
}
