package market

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"futurebot/internal/model"
	"futurebot/pkg/guard"
)

// Book is the consolidated market state of one connection cycle.
type Book struct {
	Quote     *model.Quote
	DOMs      []model.DOM
	Ticks     []model.TradeTick
	Contracts []model.ContractDescriptor
}

// View guards a Book. Inbound updates block, observers choose.
type View struct {
	book      *guard.Guarded[Book]
	retention time.Duration
}

// NewView creates a view over the given contracts. A zero retention keeps
// every tick.
func NewView(contracts []model.ContractDescriptor, retention time.Duration) *View {
	cs := make([]model.ContractDescriptor, len(contracts))
	copy(cs, contracts)
	return &View{
		book:      guard.New(Book{Contracts: cs}),
		retention: retention,
	}
}

// Read runs fn under the read lock.
func (v *View) Read(fn func(b *Book)) {
	v.book.Read(fn)
}

// TryRead runs fn if the book is not being written.
func (v *View) TryRead(fn func(b *Book)) bool {
	return v.book.TryRead(fn)
}

// SetQuote replaces the latest quote with the first quote of the message.
func (v *View) SetQuote(msg model.QuoteMessage) {
	if len(msg.Data.Quotes) == 0 {
		return
	}
	q := msg.Data.Quotes[0]
	v.book.Write(func(b *Book) {
		b.Quote = &q
	})
}

// UpsertDOM replaces the snapshot of each contract in the message, or appends
// it when the contract has none yet.
func (v *View) UpsertDOM(msg model.DOMMessage) {
	v.book.Write(func(b *Book) {
		for _, d := range msg.Data.DOMs {
			replaced := false
			for i := range b.DOMs {
				if b.DOMs[i].ContractID == d.ContractID {
					b.DOMs[i] = d
					replaced = true
					break
				}
			}
			if !replaced {
				b.DOMs = append(b.DOMs, d)
			}
		}
	})
}

// AppendTicks merges a batch into the history, which stays ordered by
// timestamp even when a batch of older trades arrives late, and drops ticks
// older than the retention window.
func (v *View) AppendTicks(ticks []model.TradeTick, now time.Time) {
	if len(ticks) == 0 {
		return
	}
	batch := slices.Clone(ticks)
	slices.SortStableFunc(batch, func(a, b model.TradeTick) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	v.book.Write(func(b *Book) {
		b.Ticks = mergeTicks(b.Ticks, batch)
		if v.retention <= 0 {
			return
		}
		cutoff := now.Add(-v.retention).UnixMilli()
		drop := 0
		for drop < len(b.Ticks) && b.Ticks[drop].Timestamp < cutoff {
			drop++
		}
		if drop > 0 {
			b.Ticks = append(b.Ticks[:0], b.Ticks[drop:]...)
		}
	})
}

// mergeTicks merges the sorted batch into the sorted history. Ticks already
// held come first among equal timestamps.
func mergeTicks(history, batch []model.TradeTick) []model.TradeTick {
	if n := len(history); n == 0 || history[n-1].Timestamp <= batch[0].Timestamp {
		return append(history, batch...)
	}
	start := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp > batch[0].Timestamp
	})
	tail := slices.Clone(history[start:])
	out := history[:start]
	i, j := 0, 0
	for i < len(tail) && j < len(batch) {
		if batch[j].Timestamp < tail[i].Timestamp {
			out = append(out, batch[j])
			j++
		} else {
			out = append(out, tail[i])
			i++
		}
	}
	out = append(out, tail[i:]...)
	return append(out, batch[j:]...)
}

// BindHistoricalID records the chart id assigned to a symbol.
func (v *View) BindHistoricalID(symbol string, historicalID int64) {
	v.book.Write(func(b *Book) {
		for i := range b.Contracts {
			if b.Contracts[i].Symbol == symbol {
				b.Contracts[i].HistoricalID = historicalID
			}
		}
	})
}

// Contract returns the descriptor of symbol.
func (b *Book) Contract(symbol string) (model.ContractDescriptor, bool) {
	for _, c := range b.Contracts {
		if c.Symbol == symbol {
			return c, true
		}
	}
	return model.ContractDescriptor{}, false
}

// ContractByID returns the descriptor of a contract id.
func (b *Book) ContractByID(id int64) (model.ContractDescriptor, bool) {
	for _, c := range b.Contracts {
		if c.ID == id {
			return c, true
		}
	}
	return model.ContractDescriptor{}, false
}
