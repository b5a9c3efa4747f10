package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"futurebot/internal/auth"
	"futurebot/internal/journal"
	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/internal/obs"
	"futurebot/internal/og"
	"futurebot/internal/ops"
	"futurebot/internal/recorder"
	"futurebot/internal/risk"
	"futurebot/internal/session"
	"futurebot/internal/status"
	"futurebot/internal/strategy"
	"futurebot/pkg/exception"
	"futurebot/pkg/guard"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
)

// Conn is one websocket connection of a cycle.
type Conn interface {
	session.Reader
	session.Writer
	Close() error
}

// Dialer opens a connection to url.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Credentials provides the access token.
type Credentials interface {
	Refresh(ctx context.Context, now time.Time) (auth.Token, error)
	RenewIfDue(ctx context.Context, now time.Time) (bool, error)
	Token() auth.Token
}

// Contracts resolves contract metadata.
type Contracts interface {
	Lookup(ctx context.Context, token, symbol string) (model.ContractDescriptor, error)
}

// Hours tells how long to wait for the market to open.
type Hours interface {
	UntilOpen(now time.Time) time.Duration
}

// Notifier sends operator notifications without blocking.
type Notifier interface {
	Email(subject, body string)
	SMS(body string)
	Alert(subject, body string)
}

// Deps are the collaborators of the runner. Credentials, Contracts and Dial
// are required.
type Deps struct {
	Credentials Credentials
	Contracts   Contracts
	Dial        Dialer
	Hours       Hours
	Notifier    Notifier
	Journal     journal.Journal
	Recorder    session.Recorder
	Metrics     *obs.Metrics
	// Interrupt is closed when the process should stop.
	Interrupt <-chan struct{}
	Location  *time.Location
	Now       func() time.Time
}

// Runner repeats connection cycles until it is interrupted or the breaker
// trips.
type Runner struct {
	cfg     ops.Loaded
	deps    Deps
	engine  *strategy.Engine
	breaker *Breaker

	current  atomic.Pointer[cycle]
	stopping atomic.Bool
}

// NewRunner wires the strategy engine and its persistence.
func NewRunner(cfg ops.Loaded, deps Deps) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Runner{
		cfg:     cfg,
		deps:    deps,
		breaker: NewBreaker(cfg.Breaker.Threshold, cfg.Breaker.MinCycle),
	}
	r.engine = strategy.NewEngine(cfg.Strategy, strategy.Deps{
		Ledger:   og.NewLedger(),
		Gate:     risk.NewGate(cfg.Risk),
		Metrics:  deps.Metrics,
		Recorder: deps.Recorder,
		OnClose:  r.onTradeClosed,
		Now:      deps.Now,
	})
	return r
}

// Engine returns the strategy engine shared by every cycle.
func (r *Runner) Engine() *strategy.Engine {
	return r.engine
}

func (r *Runner) record(category, item string) {
	r.deps.Recorder.Record(category, item)
}

// Run loops over connection cycles. It returns nil when interrupted and
// ErrReconnectStorm when the breaker trips.
func (r *Runner) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if r.interrupted(ctx) {
			r.record(recorder.CategoryAny, "User Aborted")
			return nil
		}

		now := r.deps.Now()
		tok, err := r.deps.Credentials.Refresh(ctx, now)
		if err != nil {
			r.record(recorder.CategoryAny, "Could not obtain auth")
			logs.Errorf("refresh credentials, err: %+v", err)
			if !r.sleep(ctx, r.cfg.Intervals.CredentialRetry) {
				r.record(recorder.CategoryAny, "User Aborted")
				return nil
			}
			continue
		}

		contract, err := r.deps.Contracts.Lookup(ctx, tok.AccessToken, r.cfg.Strategy.Symbol)
		if err != nil {
			r.record(recorder.CategoryAny, "Could not look up contract "+r.cfg.Strategy.Symbol)
			logs.Errorf("lookup contract %s, err: %+v", r.cfg.Strategy.Symbol, err)
			if !r.sleep(ctx, r.cfg.Intervals.CredentialRetry) {
				return nil
			}
			continue
		}

		if !r.waitForOpen(ctx) {
			r.record(recorder.CategoryAny, "User Aborted")
			return nil
		}

		start := r.deps.Now()
		err = r.cycle(ctx, tok, contract)
		if errors.Is(err, exception.ErrInterrupted) || r.interrupted(ctx) {
			r.record(recorder.CategoryAny, "User Aborted")
			return nil
		}
		logs.Errorf("cycle %d ended, err: %+v", attempt, err)

		if r.breaker.Observe(r.deps.Now().Sub(start)) {
			msg := fmt.Sprintf("Max connections have been attempted: %d cycles shorter than %s", r.breaker.Fast(), r.cfg.Breaker.MinCycle)
			r.record(recorder.CategoryAny, msg)
			r.deps.Notifier.Alert("Trader halted", msg)
			return exception.ErrReconnectStorm
		}
		r.record(recorder.CategoryMarketData, "Program finished and restarting")
	}
}

func (r *Runner) waitForOpen(ctx context.Context) bool {
	if r.deps.Hours == nil || r.cfg.Schedule.Disabled {
		return true
	}
	wait := r.deps.Hours.UntilOpen(r.deps.Now())
	if wait == 0 {
		r.record(recorder.CategoryAny, "Market is open connecting now...")
		return true
	}
	r.record(recorder.CategoryAny, fmt.Sprintf("Waiting %d seconds for market to open", int64(wait.Seconds())))
	return r.sleep(ctx, wait)
}

func (r *Runner) interrupted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-r.deps.Interrupt:
		return true
	default:
		return false
	}
}

// sleep waits d. It returns false when interrupted first.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.deps.Interrupt:
		return false
	case <-t.C:
		return true
	}
}

func (r *Runner) onTradeClosed(p strategy.Position) {
	rec := journal.TradeRecord{
		TradeID:      uuid.NewString(),
		Symbol:       r.cfg.Strategy.Symbol,
		AccountID:    p.AccountID,
		ContractID:   p.ContractID,
		Net:          p.Net,
		RealizedPnL:  p.RealizedPnL,
		EntryTrigger: p.EntryTrigger,
		ExitTrigger:  p.ExitTrigger,
		OpenedAt:     p.OpenedAt,
		ClosedAt:     p.ClosedAt,
	}
	if c := r.current.Load(); c != nil {
		rec.CycleID = c.id
	}
	if p.EntryFill != nil {
		rec.EntryPrice = p.EntryFill.AvgPx
	}
	if p.ExitFill != nil {
		rec.ExitPrice = p.ExitFill.AvgPx
	}
	if err := r.deps.Journal.RecordTrade(rec); err != nil {
		logs.Errorf("journal trade %s, err: %+v", rec.TradeID, err)
	}
}

// Report describes the current cycle for the status endpoint.
func (r *Runner) Report() status.Report {
	snap := r.engine.Snapshot()
	rep := status.Report{
		Sessions:      map[string]string{},
		StrategyPhase: snap.Phase.String(),
		RealizedPnL:   snap.TotalPnL().StringFixed(2),
	}
	if p, ok := snap.Open(); ok {
		rep.OpenPosition = p.String()
	}
	for _, o := range r.engine.Ledger().Orders() {
		rep.Orders = append(rep.Orders, status.Order{
			RequestID: o.RequestID,
			OrderID:   o.OrderID,
			Leg:       o.Leg.String(),
			Action:    o.Action.String(),
			Qty:       o.Qty,
			FilledQty: o.FilledQty,
			AvgPx:     o.AvgPx,
			State:     o.State.String(),
		})
	}
	c := r.current.Load()
	if c == nil {
		return rep
	}
	rep.CycleID = c.id
	rep.CycleStarted = c.started
	rep.Sessions["market"] = phaseOf(c.market, func(m *session.Market) enum.SessionPhase { return m.Phase() })
	rep.Sessions["account"] = phaseOf(c.account, func(a *session.Account) enum.SessionPhase { return a.Phase() })
	return rep
}

// phaseOf reads a session phase without waiting on the session lock.
func phaseOf[T any](g *guard.Guarded[T], phase func(*T) enum.SessionPhase) string {
	p, err := tryPhase(g, phase)
	if err != nil {
		return err.Error()
	}
	return p.String()
}

func tryPhase[T any](g *guard.Guarded[T], phase func(*T) enum.SessionPhase) (enum.SessionPhase, error) {
	var p enum.SessionPhase
	if !g.TryRead(func(v *T) { p = phase(v) }) {
		return p, exception.ErrLockUnavailable
	}
	return p, nil
}

// Summary is the strategy and trade summary written at shutdown and in
// periodic reports.
func (r *Runner) Summary(view *market.View) string {
	var ticks string
	view.Read(func(b *market.Book) { ticks = b.TickSummary(r.deps.Location) })
	return r.engine.Summary(view) + "\n" + ticks
}

type nopNotifier struct{}

func (nopNotifier) Email(string, string) {}
func (nopNotifier) SMS(string)           {}
func (nopNotifier) Alert(string, string) {}

type nopRecorder struct{}

func (nopRecorder) Record(string, string) {}
