package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthSummaryMerge(t *testing.T) {
	a := NewDepthSummary(100, 50, 1_000, 1)
	b := NewDepthSummary(10, 10, 2_000, 2)

	got := a.Merge(b)

	assert.Equal(t, int64(110), got.TotalBid)
	assert.Equal(t, int64(60), got.TotalAsk)
	assert.Equal(t, int64(170), got.Total)
	assert.InDelta(t, 64.71, got.PercentBuy, 0.01)
	assert.InDelta(t, 35.29, got.PercentSell, 0.01)
	assert.InDelta(t, -29.41, got.Net, 0.01)
	assert.Equal(t, int64(1_000), got.Timestamp)
	assert.Equal(t, []int64{1, 2}, got.ContractIDs)
}

func TestDepthSummaryMergeSelfIsUnchanged(t *testing.T) {
	a := NewDepthSummary(100, 50, 1_000, 1)
	got := a.Merge(a)
	if got.Total != a.Total || got.Net != a.Net || len(got.ContractIDs) != 1 {
		t.Fatalf("self merge changed summary: got %+v want %+v", got, a)
	}
}

func TestDepthSummaryMergeZeroTimestamp(t *testing.T) {
	var empty DepthSummary
	a := NewDepthSummary(1, 1, 5_000, 7)

	got := empty.Merge(a)
	assert.Equal(t, int64(5_000), got.Timestamp)
	assert.Equal(t, a.Net, got.Net)

	zero := NewDepthSummary(0, 0, 0, 8)
	assert.Equal(t, float64(0), zero.PercentBuy)
	assert.Equal(t, float64(0), zero.Net)
}

func TestDOMSummary(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	dom := DOM{
		ContractID: 3,
		Timestamp:  "2023-11-14T22:13:20Z",
		Bids:       []DOMLevel{{Price: 10, Size: 4}, {Price: 9.75, Size: 6}},
		Offers:     []DOMLevel{{Price: 10.25, Size: 30}},
	}
	s := dom.Summary(now)
	assert.Equal(t, int64(10), s.TotalBid)
	assert.Equal(t, int64(30), s.TotalAsk)
	assert.Equal(t, int64(1_700_000_000_000), s.Timestamp)
	assert.InDelta(t, 50.0, s.Net, 1e-9)

	dom.Timestamp = "not a time"
	require.Equal(t, now.UnixMilli(), dom.Summary(now).Timestamp)
}

func TestChartTradeTicks(t *testing.T) {
	now := time.UnixMilli(10_500)
	msg := ChartMessage{Data: ChartData{Charts: []Chart{{
		HistoricalID:  9,
		BasePrice:     16000,
		BaseTimestamp: 10_000,
		TickSize:      0.25,
		Ticks: []Tick{
			{Price: 2, Bid: 1, Ask: 2, Volume: 3, Timestamp: 200},
			{Price: 0, Bid: 0, Ask: 1, Volume: 1, Timestamp: 100},
			{Price: 1, Bid: 0, Ask: 2, Volume: 5, Timestamp: 300},
		},
	}}}}

	ticks := msg.TradeTicks(now)
	require.Len(t, ticks, 3)

	first := ticks[0]
	assert.Equal(t, int64(10_100), first.Timestamp)
	assert.InDelta(t, 4000.0, first.Price, 1e-9)
	assert.Equal(t, "Sell", first.Side.String())
	assert.Equal(t, int64(400), first.ReceiptDelay)

	assert.Equal(t, "Buy", ticks[1].Side.String())
	assert.Equal(t, "Unknown", ticks[2].Side.String())
	assert.True(t, math.Abs(ticks[1].Ask-4000.5) < 1e-9)
}
