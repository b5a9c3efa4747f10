package obs

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IncFrame("MarketData", "data")
	m.IncFrame("MarketData", "data")
	m.IncDropped("Trading", "malformed")
	m.IncOrder("entry", "Buy")
	m.IncCycle()
	m.SetRealizedPnL(191.8)
	m.ObserveTickLatency(30 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.frames.WithLabelValues("MarketData", "data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("Trading", "malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("entry", "Buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 191.8, testutil.ToFloat64(m.realizedPnL))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tickLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncFrame("a", "b")
	m.IncLockSkip("strategy")
	m.SetStrategyPhase(2)
	m.ObserveTickLatency(time.Second)
}
