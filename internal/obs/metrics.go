package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	frames       *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	heartbeats   *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
	lockSkips    *prometheus.CounterVec
	signals      *prometheus.CounterVec
	orders       *prometheus.CounterVec
	queueDrops   *prometheus.CounterVec
	cycles       prometheus.Counter
	phase        prometheus.Gauge
	realizedPnL  prometheus.Gauge
	tickLatency  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_frames_total",
			Help: "Inbound frames by session and frame kind",
		}, []string{"session", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_dropped_messages_total",
			Help: "Inbound messages dropped by session and reason",
		}, []string{"session", "reason"}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_heartbeats_total",
			Help: "Heartbeat frames sent",
		}, []string{"session"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_send_failures_total",
			Help: "Outbound writes that failed",
		}, []string{"session"}),
		lockSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_lock_skips_total",
			Help: "Best-effort operations skipped because a lock was held",
		}, []string{"component"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Non-neutral signals by side",
		}, []string{"action"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Orders enqueued by leg and side",
		}, []string{"leg", "action"}),
		queueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_queue_drops_total",
			Help: "Items dropped by a full background queue",
		}, []string{"queue"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_connection_cycles_total",
			Help: "Connection cycles started",
		}),
		phase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_strategy_phase",
			Help: "Current strategy phase",
		}),
		realizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_realized_pnl_usd",
			Help: "Realized PnL of the process",
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_tick_receipt_latency_seconds",
			Help:    "Delay between a trade and its receipt",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.frames, m.dropped, m.heartbeats, m.sendFailures, m.lockSkips,
			m.signals, m.orders, m.queueDrops, m.cycles, m.phase, m.realizedPnL,
			m.tickLatency,
		)
	}
	return m
}

// IncFrame counts an inbound frame.
func (m *Metrics) IncFrame(session, kind string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(session, kind).Inc()
}

// IncDropped counts a dropped inbound message.
func (m *Metrics) IncDropped(session, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(session, reason).Inc()
}

func (m *Metrics) IncHeartbeat(session string) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(session).Inc()
}

func (m *Metrics) IncSendFailure(session string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(session).Inc()
}

// IncLockSkip counts a best-effort access that found its lock held.
func (m *Metrics) IncLockSkip(component string) {
	if m == nil {
		return
	}
	m.lockSkips.WithLabelValues(component).Inc()
}

func (m *Metrics) IncSignal(action string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(action).Inc()
}

// IncOrder counts an enqueued order. leg is entry or exit.
func (m *Metrics) IncOrder(leg, action string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(leg, action).Inc()
}

// IncQueueDrop records a drop on a full queue.
func (m *Metrics) IncQueueDrop(queue string) {
	if m == nil {
		return
	}
	m.queueDrops.WithLabelValues(queue).Inc()
}

func (m *Metrics) IncCycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) SetStrategyPhase(phase int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(phase))
}

func (m *Metrics) SetRealizedPnL(v float64) {
	if m == nil {
		return
	}
	m.realizedPnL.Set(v)
}

// ObserveTickLatency records the receipt delay of a trade tick.
func (m *Metrics) ObserveTickLatency(d time.Duration) {
	if m == nil || d < 0 {
		return
	}
	m.tickLatency.Observe(d.Seconds())
}
