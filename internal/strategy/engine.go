package strategy

import (
	"fmt"
	"time"

	"futurebot/internal/codec"
	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/obs"
	"futurebot/internal/og"
	"futurebot/internal/risk"
	"futurebot/internal/session"
	"futurebot/pkg/exception"
	"futurebot/pkg/guard"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// Phase is the order sequencing state of the strategy.
type Phase uint8

const (
	PhaseUnaware Phase = iota
	PhaseAwaitingTrades
	PhaseSentEntryOrders
	PhaseInATrade
	PhaseSentExitOrders
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingTrades:
		return "AwaitingTrades"
	case PhaseSentEntryOrders:
		return "SentEntryOrders"
	case PhaseInATrade:
		return "InATrade"
	case PhaseSentExitOrders:
		return "SentExitOrders"
	default:
		return "Unaware"
	}
}

// Config holds the strategy constants.
type Config struct {
	Symbol      string
	AccountName string
	AccountSpec string
	OrderQty    int64

	SignalWindow      time.Duration
	LargeTrade        int64
	PressureThreshold int64
	DepthThreshold    float64
	LossTrigger       float64
	Commission        float64
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		OrderQty:          1,
		SignalWindow:      time.Second,
		LargeTrade:        400,
		PressureThreshold: 150,
		DepthThreshold:    35,
		LossTrigger:       500,
		Commission:        2.05,
	}
}

// State is the strategy state. It outlives connection cycles.
type State struct {
	Phase           Phase
	Positions       []Position
	DepthExtreme    model.DepthSummary
	PressureExtreme market.Pressure
	LargestTrigger  model.TradeTick
	SentEntry       bool
	SentExit        bool
}

// Open returns the last position when it is still open.
func (s *State) Open() (*Position, bool) {
	if len(s.Positions) == 0 {
		return nil, false
	}
	p := &s.Positions[len(s.Positions)-1]
	return p, p.IsOpen()
}

// TotalPnL sums the realized PnL of every position.
func (s *State) TotalPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.RealizedPnL)
	}
	return total
}

// Deps are the collaborators of the engine. Every field is optional.
type Deps struct {
	Ledger   *og.Ledger
	Gate     *risk.Gate
	Metrics  *obs.Metrics
	Recorder session.Recorder
	// OnClose receives every closed position.
	OnClose func(Position)
	Now     func() time.Time
}

// Engine runs the strategy state machine.
type Engine struct {
	cfg   Config
	deps  Deps
	state *guard.Guarded[State]
}

// NewEngine creates an engine in the Unaware phase.
func NewEngine(cfg Config, deps Deps) *Engine {
	def := DefaultConfig()
	if cfg.OrderQty <= 0 {
		cfg.OrderQty = def.OrderQty
	}
	if cfg.SignalWindow <= 0 {
		cfg.SignalWindow = def.SignalWindow
	}
	if deps.Ledger == nil {
		deps.Ledger = og.NewLedger()
	}
	return &Engine{cfg: cfg, deps: deps, state: guard.New(State{})}
}

func (e *Engine) now() time.Time {
	if e.deps.Now != nil {
		return e.deps.Now()
	}
	return time.Now()
}

func (e *Engine) record(item string) {
	if e.deps.Recorder != nil {
		e.deps.Recorder.Record("Trading", item)
	}
}

func (e *Engine) setPhase(s *State, p Phase) {
	s.Phase = p
	e.deps.Metrics.SetStrategyPhase(int(p))
	e.record("Strategy Status -> " + p.String())
}

// Ledger returns the order ledger.
func (e *Engine) Ledger() *og.Ledger {
	return e.deps.Ledger
}

// Snapshot returns a copy of the state.
func (e *Engine) Snapshot() State {
	var out State
	e.state.Read(func(s *State) {
		out = *s
		out.Positions = append([]Position(nil), s.Positions...)
	})
	return out
}

// Resync returns the engine to Unaware so the next tick rebuilds it from a
// fresh account snapshot.
func (e *Engine) Resync() {
	e.state.Write(func(s *State) {
		s.SentEntry = false
		s.SentExit = false
		e.setPhase(s, PhaseUnaware)
	})
}

// Signal evaluates the market once and updates the trackers. It is neutral
// when the state lock is held.
func (e *Engine) Signal(view *market.View, now time.Time) Signal {
	var o observation
	view.Read(func(b *market.Book) { o = observe(b, now, e.cfg.SignalWindow) })

	var sig Signal
	if !e.state.TryWrite(func(s *State) { sig = e.evaluate(s, o) }) {
		e.deps.Metrics.IncLockSkip("signal")
		return Signal{}
	}
	if !sig.IsNeutral() {
		e.deps.Metrics.IncSignal(sig.Action.String())
	}
	return sig
}

// Tick runs one step of the state machine against the market view and the
// account session of the current cycle.
func (e *Engine) Tick(view *market.View, account *guard.Guarded[session.Account]) {
	now := e.now()
	sig := e.Signal(view, now)

	var phase Phase
	if !e.state.TryRead(func(s *State) { phase = s.Phase }) {
		e.deps.Metrics.IncLockSkip("strategy")
		return
	}

	switch phase {
	case PhaseUnaware:
		e.seed(account, now)
	case PhaseAwaitingTrades:
		e.enter(sig, account, now)
	case PhaseSentEntryOrders:
		e.confirmEntry(account)
	case PhaseInATrade:
		e.manage(sig, view, account, now)
	case PhaseSentExitOrders:
		e.confirmExit(view, account, now)
	}
}

func (e *Engine) seed(account *guard.Guarded[session.Account], now time.Time) {
	var data *model.UserData
	account.Read(func(a *session.Account) {
		if a.UserData != nil {
			cp := *a.UserData
			data = &cp
		}
	})
	if data == nil {
		return
	}

	row, hasPosition := data.OpenPosition()
	e.state.Write(func(s *State) {
		if s.Phase != PhaseUnaware {
			return
		}
		if open, ok := s.Open(); ok {
			if hasPosition && open.ContractID == row.ContractID && open.Net == row.NetPos {
				e.setPhase(s, PhaseInATrade)
				return
			}
			e.record("Dropping position no longer held by the account: " + open.String())
			s.Positions = s.Positions[:len(s.Positions)-1]
		}
		if !hasPosition {
			e.record("Account is flat")
			e.setPhase(s, PhaseAwaitingTrades)
			return
		}
		p := seedPosition(row, now)
		s.Positions = append(s.Positions, p)
		e.record("Account has position " + p.String())
		e.setPhase(s, PhaseInATrade)
	})
}

// placeOrder builds a ticket and appends it to the account queue.
func (e *Engine) placeOrder(a *session.Account, sig Signal, qty int64) (int64, error) {
	if a.UserData == nil {
		return 0, exception.ErrAccountNotFound
	}
	acct, ok := e.findAccount(a.UserData)
	if !ok {
		return 0, fmt.Errorf("%w: %s", exception.ErrAccountNotFound, e.cfg.AccountName)
	}
	ticket, err := NewMarketTicket(sig.Action, e.cfg.Symbol, qty, e.cfg.AccountSpec, acct.ID)
	if err != nil {
		return 0, err
	}
	body, err := ticket.Body()
	if err != nil {
		return 0, err
	}
	return a.Enqueue(codec.EndpointPlaceOrder, body), nil
}

func (e *Engine) findAccount(data *model.UserData) (model.Account, bool) {
	if e.cfg.AccountName == "" {
		return data.PrimaryAccount()
	}
	for _, a := range data.Accounts {
		if a.Name == e.cfg.AccountName {
			return a, true
		}
	}
	return model.Account{}, false
}

func (e *Engine) enter(sig Signal, account *guard.Guarded[session.Account], now time.Time) {
	if sig.IsNeutral() {
		return
	}
	var sent bool
	e.state.Read(func(s *State) { sent = s.SentEntry })
	if sent {
		return
	}
	if err := e.deps.Gate.Check(e.cfg.OrderQty, now); err != nil {
		e.record(fmt.Sprintf("Entry %s blocked: %v", sig.Action, err))
		return
	}

	var (
		reqID int64
		err   error
	)
	if !account.TryWrite(func(a *session.Account) { reqID, err = e.placeOrder(a, sig, e.cfg.OrderQty) }) {
		e.deps.Gate.Release(now)
		e.deps.Metrics.IncLockSkip("entry")
		return
	}
	if err != nil {
		e.deps.Gate.Release(now)
		logs.Errorf("place entry order, err: %+v", err)
		return
	}

	if _, err := e.deps.Ledger.ApplyIntent(reqID, og.LegEntry, sig.Action, e.cfg.OrderQty, now); err != nil {
		logs.Errorf("ledger entry intent %d, err: %+v", reqID, err)
	}
	e.deps.Metrics.IncOrder(og.LegEntry.String(), sig.Action.String())
	e.state.Write(func(s *State) {
		s.SentEntry = true
		s.Positions = append(s.Positions, Position{EntryTrigger: sig.Reason, OpenedAt: now})
		e.setPhase(s, PhaseSentEntryOrders)
	})
}

func (e *Engine) confirmEntry(account *guard.Guarded[session.Account]) {
	var (
		fill  model.OrderStatus
		ack   model.OrderIDAck
		found bool
	)
	if !account.TryRead(func(a *session.Account) {
		fill, found = a.FilledUpdate()
		ack, _ = a.LatestOrderIDAck()
	}) || !found {
		return
	}

	e.applyLedger(ack, fill)
	e.state.Write(func(s *State) {
		if len(s.Positions) == 0 {
			return
		}
		p := &s.Positions[len(s.Positions)-1]
		p.fillEntry(fill, e.cfg.OrderQty)
		e.record("Entry filled " + p.String())
		e.setPhase(s, PhaseInATrade)
	})
}

func (e *Engine) applyLedger(ack model.OrderIDAck, fill model.OrderStatus) {
	if _, err := e.deps.Ledger.ApplyAck(ack); err != nil {
		logs.Errorf("ledger ack %d, err: %+v", ack.RequestID, err)
		return
	}
	if _, err := e.deps.Ledger.ApplyFill(fill); err != nil {
		logs.Errorf("ledger fill %d, err: %+v", fill.OrderID, err)
	}
}

func (e *Engine) manage(sig Signal, view *market.View, account *guard.Guarded[session.Account], now time.Time) {
	var (
		pos     Position
		sent    bool
		hasOpen bool
	)
	e.state.Read(func(s *State) {
		var p *Position
		p, hasOpen = s.Open()
		if p != nil {
			pos = *p
		}
		sent = s.SentExit
	})
	if !hasOpen {
		return
	}

	if sig.Action.IsKnown() && sig.Action == pos.ExitAction() {
		e.exit(pos, sig.Reason, account, now)
		return
	}

	var (
		quote model.SyntheticQuote
		pv    float64
		ok    bool
	)
	view.Read(func(b *market.Book) {
		c, found := b.ContractByID(pos.ContractID)
		if !found {
			c, found = b.Contract(e.cfg.Symbol)
		}
		if !found {
			return
		}
		pv = c.PointValue
		quote, ok = b.SyntheticQuote(c.HistoricalID)
	})
	if !ok {
		return
	}

	pnl := pos.UnrealizedPnL(quote, decimal.NewFromFloat(pv))
	if pnl.LessThan(decimal.NewFromFloat(-e.cfg.LossTrigger)) && !sent {
		e.record("Unrealized Pnl " + pnl.StringFixed(2))
		e.exit(pos, "Unrealized Pnl = "+pnl.StringFixed(2), account, now)
	}
}

// exit enqueues the closing order. It waits for the account lock.
func (e *Engine) exit(pos Position, reason string, account *guard.Guarded[session.Account], now time.Time) {
	sig := Signal{Action: pos.ExitAction(), Reason: reason}
	var (
		reqID int64
		err   error
	)
	account.Write(func(a *session.Account) { reqID, err = e.placeOrder(a, sig, pos.Qty()) })
	if err != nil {
		logs.Errorf("place exit order, err: %+v", err)
		return
	}
	if _, err := e.deps.Ledger.ApplyIntent(reqID, og.LegExit, sig.Action, pos.Qty(), now); err != nil {
		logs.Errorf("ledger exit intent %d, err: %+v", reqID, err)
	}
	e.deps.Metrics.IncOrder(og.LegExit.String(), sig.Action.String())
	e.state.Write(func(s *State) {
		s.SentExit = true
		if p, ok := s.Open(); ok {
			p.ExitTrigger = reason
		}
		e.setPhase(s, PhaseSentExitOrders)
	})
}

func (e *Engine) confirmExit(view *market.View, account *guard.Guarded[session.Account], now time.Time) {
	var entry *model.OrderStatus
	e.state.Read(func(s *State) {
		if p, ok := s.Open(); ok {
			entry = p.EntryFill
		}
	})

	var (
		fill  model.OrderStatus
		ack   model.OrderIDAck
		found bool
	)
	if !account.TryWrite(func(a *session.Account) {
		fill, found = a.FilledUpdate()
		if !found || (entry != nil && fill == *entry) {
			found = false
			return
		}
		ack, _ = a.LatestOrderIDAck()
		a.OrderUpdate = nil
	}) || !found {
		return
	}
	e.applyLedger(ack, fill)

	var pv float64
	var contractID int64
	e.state.Read(func(s *State) {
		if p, ok := s.Open(); ok {
			contractID = p.ContractID
		}
	})
	view.Read(func(b *market.Book) {
		c, ok := b.ContractByID(contractID)
		if !ok {
			c, ok = b.Contract(e.cfg.Symbol)
		}
		if ok {
			pv = c.PointValue
		}
	})

	var closed Position
	var total decimal.Decimal
	e.state.Write(func(s *State) {
		p, ok := s.Open()
		if !ok {
			return
		}
		p.close(fill, decimal.NewFromFloat(pv), decimal.NewFromFloat(e.cfg.Commission), now)
		closed = *p
		s.SentEntry = false
		s.SentExit = false
		total = s.TotalPnL()
		e.record("Trade Realized Pnl " + p.RealizedPnL.StringFixed(2))
		e.setPhase(s, PhaseAwaitingTrades)
	})
	if closed.ExitFill == nil {
		return
	}
	e.deps.Metrics.SetRealizedPnL(total.InexactFloat64())
	if e.deps.OnClose != nil {
		e.deps.OnClose(closed)
	}
}

// Summary reports the session and open PnL.
func (e *Engine) Summary(view *market.View) string {
	snap := e.Snapshot()
	open := "none"
	if p, ok := snap.Open(); ok && p.EntryFill != nil {
		var (
			quote model.SyntheticQuote
			pv    float64
			found bool
		)
		view.Read(func(b *market.Book) {
			c, ok := b.ContractByID(p.ContractID)
			if !ok {
				return
			}
			pv = c.PointValue
			quote, found = b.SyntheticQuote(c.HistoricalID)
		})
		if found {
			open = p.UnrealizedPnL(quote, decimal.NewFromFloat(pv)).StringFixed(2)
		}
	}
	return fmt.Sprintf("Strategy %s, positions %d\nTotal Session Pnl %s\nOpen Pnl %s",
		snap.Phase, len(snap.Positions), snap.TotalPnL().StringFixed(2), open)
}
