package model

import (
	"slices"
	"time"
)

// DepthSummary is the bid/ask size imbalance across one or more books.
type DepthSummary struct {
	TotalBid    int64   `json:"totalBid"`
	TotalAsk    int64   `json:"totalAsk"`
	Total       int64   `json:"total"`
	PercentBuy  float64 `json:"percentBuy"`
	PercentSell float64 `json:"percentSell"`
	Net         float64 `json:"net"`
	Timestamp   int64   `json:"timestamp"`
	ContractIDs []int64 `json:"contractIds"`
}

// NewDepthSummary builds a summary from totals and computes the percentages.
func NewDepthSummary(bid, ask, timestamp int64, contractIDs ...int64) DepthSummary {
	s := DepthSummary{
		TotalBid:    bid,
		TotalAsk:    ask,
		Total:       bid + ask,
		Timestamp:   timestamp,
		ContractIDs: contractIDs,
	}
	s.recompute()
	return s
}

func (s *DepthSummary) recompute() {
	if s.Total == 0 {
		s.PercentBuy, s.PercentSell, s.Net = 0, 0, 0
		return
	}
	s.PercentBuy = 100 * float64(s.TotalBid) / float64(s.Total)
	s.PercentSell = 100 * float64(s.TotalAsk) / float64(s.Total)
	s.Net = s.PercentSell - s.PercentBuy
}

// Contains reports whether every contract id of other is already in s.
func (s DepthSummary) Contains(other DepthSummary) bool {
	if len(other.ContractIDs) == 0 {
		return false
	}
	for _, id := range other.ContractIDs {
		if !slices.Contains(s.ContractIDs, id) {
			return false
		}
	}
	return true
}

// Merge combines two summaries. A summary whose contracts are already counted
// in s is ignored.
func (s DepthSummary) Merge(other DepthSummary) DepthSummary {
	if s.Contains(other) {
		return s
	}
	ids := make([]int64, 0, len(s.ContractIDs)+len(other.ContractIDs))
	ids = append(ids, s.ContractIDs...)
	for _, id := range other.ContractIDs {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}

	ts := max(s.Timestamp, other.Timestamp)
	if s.Timestamp != 0 && other.Timestamp != 0 {
		ts = min(s.Timestamp, other.Timestamp)
	}

	merged := DepthSummary{
		TotalBid:    s.TotalBid + other.TotalBid,
		TotalAsk:    s.TotalAsk + other.TotalAsk,
		Total:       s.Total + other.Total,
		Timestamp:   ts,
		ContractIDs: ids,
	}
	merged.recompute()
	return merged
}

// Summary sums the levels of one book. An unparsable timestamp falls back to now.
func (d DOM) Summary(now time.Time) DepthSummary {
	var bid, ask int64
	for _, l := range d.Bids {
		bid += l.Size
	}
	for _, l := range d.Offers {
		ask += l.Size
	}
	ts := now.UnixMilli()
	if t, err := time.Parse(time.RFC3339, d.Timestamp); err == nil {
		ts = t.UnixMilli()
	}
	return NewDepthSummary(bid, ask, ts, d.ContractID)
}

// Summary merges the summaries of every book in the message.
func (m DOMMessage) Summary(now time.Time) DepthSummary {
	var total DepthSummary
	for _, d := range m.Data.DOMs {
		total = total.Merge(d.Summary(now))
	}
	return total
}
