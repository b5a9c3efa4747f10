package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"futurebot/internal/auth"
	"futurebot/internal/journal"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/internal/og"
	"futurebot/internal/ops"
	"futurebot/internal/strategy"
	"futurebot/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentials struct {
	refreshErr error
	refreshes  atomic.Int32
}

func (f *fakeCredentials) Refresh(context.Context, time.Time) (auth.Token, error) {
	f.refreshes.Add(1)
	if f.refreshErr != nil {
		return auth.Token{}, f.refreshErr
	}
	return auth.Token{AccessToken: "tok", UserID: 9, ExpirationTime: time.Now().Add(time.Hour)}, nil
}

func (f *fakeCredentials) RenewIfDue(context.Context, time.Time) (bool, error) { return false, nil }
func (f *fakeCredentials) Token() auth.Token                                   { return auth.Token{AccessToken: "tok"} }

type fakeContracts struct{}

func (fakeContracts) Lookup(_ context.Context, _ string, symbol string) (model.ContractDescriptor, error) {
	return model.ContractDescriptor{Symbol: symbol, ID: 11, PointValue: 50, TickSize: 0.25}, nil
}

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	sent   []string
	closes int
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)), done: make(chan struct{})}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, fmt.Errorf("read: %w", exception.ErrWebSocketConnectionClose)
	}
}

func (c *fakeConn) WriteText(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) WriteClose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...), c.closes
}

type fakeNotifier struct {
	mu     sync.Mutex
	sms    []string
	alerts []string
}

func (n *fakeNotifier) Email(string, string) {}

func (n *fakeNotifier) SMS(body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sms = append(n.sms, body)
}

func (n *fakeNotifier) Alert(subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, subject+": "+body)
}

type captureJournal struct {
	records []journal.TradeRecord
}

func (j *captureJournal) RecordTrade(r journal.TradeRecord) error {
	j.records = append(j.records, r)
	return nil
}

func (j *captureJournal) Close() error { return nil }

func testConfig() ops.Loaded {
	st := strategy.DefaultConfig()
	st.Symbol = "ESM4"
	st.AccountName = "DEMO1"
	return ops.Loaded{
		Server:   ops.ServerConfig{TradingHost: "trade.test", MarketDataHost: "md.test"},
		Strategy: st,
		Intervals: ops.IntervalsConfig{
			Drain:           time.Millisecond,
			Strategy:        time.Millisecond,
			Renew:           time.Hour,
			FirstReport:     time.Hour,
			Report:          time.Hour,
			ShutdownGrace:   20 * time.Millisecond,
			CredentialRetry: time.Millisecond,
		},
		Breaker:  ops.BreakerConfig{Threshold: 3, MinCycle: time.Minute},
		Schedule: ops.ScheduleConfig{Disabled: true},
	}
}

func TestBreakerObserve(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	if b.Observe(time.Second) || b.Observe(time.Second) {
		t.Fatalf("tripped early: got fast=%d", b.Fast())
	}
	if b.Observe(2 * time.Minute) {
		t.Fatal("long cycle must not trip")
	}
	if b.Fast() != 0 {
		t.Fatalf("fast after long cycle: got %d want 0", b.Fast())
	}
	b.Observe(time.Second)
	b.Observe(time.Second)
	if !b.Observe(time.Second) {
		t.Fatalf("third fast cycle: got fast=%d want trip", b.Fast())
	}
}

func TestRunStopsAfterThreeFailedDials(t *testing.T) {
	var dials atomic.Int32
	n := &fakeNotifier{}
	r := NewRunner(testConfig(), Deps{
		Credentials: &fakeCredentials{},
		Contracts:   fakeContracts{},
		Notifier:    n,
		Interrupt:   make(chan struct{}),
		Dial: func(context.Context, string) (Conn, error) {
			dials.Add(1)
			return nil, exception.ErrWebSocketDial
		},
	})

	err := r.Run(t.Context())
	require.ErrorIs(t, err, exception.ErrReconnectStorm)
	assert.Equal(t, int32(3), dials.Load())
	require.Len(t, n.alerts, 1)
	assert.Contains(t, n.alerts[0], "Max connections have been attempted")
}

func TestRunRetriesCredentialsUntilInterrupted(t *testing.T) {
	interrupt := make(chan struct{})
	creds := &fakeCredentials{refreshErr: exception.ErrCredentialRejected}
	r := NewRunner(testConfig(), Deps{
		Credentials: creds,
		Contracts:   fakeContracts{},
		Interrupt:   interrupt,
		Dial: func(context.Context, string) (Conn, error) {
			t.Fatal("dial without credentials")
			return nil, nil
		},
	})

	go func() {
		for creds.refreshes.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		close(interrupt)
	}()

	require.NoError(t, r.Run(t.Context()))
	assert.GreaterOrEqual(t, creds.refreshes.Load(), int32(3))
}

func TestPeerCloseCountsAsFastCycle(t *testing.T) {
	n := &fakeNotifier{}
	r := NewRunner(testConfig(), Deps{
		Credentials: &fakeCredentials{},
		Contracts:   fakeContracts{},
		Notifier:    n,
		Interrupt:   make(chan struct{}),
		Dial: func(context.Context, string) (Conn, error) {
			return newFakeConn("o", `c[1000,"bye"]`), nil
		},
	})

	require.ErrorIs(t, r.Run(t.Context()), exception.ErrReconnectStorm)
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sms)
	assert.Contains(t, n.sms[0], "closed by the server")
}

func TestInterruptSendsCloseOnBothSessions(t *testing.T) {
	interrupt := make(chan struct{})
	var (
		mu    sync.Mutex
		conns = map[string]*fakeConn{}
	)
	r := NewRunner(testConfig(), Deps{
		Credentials: &fakeCredentials{},
		Contracts:   fakeContracts{},
		Interrupt:   interrupt,
		Dial: func(_ context.Context, url string) (Conn, error) {
			c := newFakeConn("o")
			mu.Lock()
			conns[url] = c
			mu.Unlock()
			return c, nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()

	require.Eventually(t, func() bool {
		return r.Report().Sessions["market"] == "Authorizing"
	}, time.Second, time.Millisecond)
	close(interrupt)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after interrupt")
	}

	md := conns["wss://md.test/v1/websocket"]
	ac := conns["wss://trade.test/v1/websocket"]
	require.NotNil(t, md)
	require.NotNil(t, ac)

	sent, closes := md.snapshot()
	require.NotEmpty(t, sent)
	assert.True(t, strings.HasPrefix(sent[0], "authorize\n"), "first market frame: got %q", sent[0])
	assert.Equal(t, 1, closes)

	sent, closes = ac.snapshot()
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[1], "user/syncrequest\n"), "sync frame: got %q", sent[1])
	assert.Equal(t, 1, closes)
}

func TestTradeClosedIsJournaled(t *testing.T) {
	j := &captureJournal{}
	r := NewRunner(testConfig(), Deps{
		Credentials: &fakeCredentials{},
		Contracts:   fakeContracts{},
		Journal:     j,
		Dial:        func(context.Context, string) (Conn, error) { return nil, errors.New("unused") },
	})
	r.current.Store(&cycle{id: "cycle-1"})

	opened := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	r.onTradeClosed(strategy.Position{
		AccountID:    7,
		ContractID:   11,
		Net:          2,
		EntryFill:    &model.OrderStatus{AvgPx: 5300},
		ExitFill:     &model.OrderStatus{AvgPx: 5301},
		RealizedPnL:  decimal.RequireFromString("91.80"),
		EntryTrigger: "pressure",
		ExitTrigger:  "signal",
		OpenedAt:     opened,
		ClosedAt:     opened.Add(time.Minute),
	})

	require.Len(t, j.records, 1)
	rec := j.records[0]
	assert.Equal(t, "cycle-1", rec.CycleID)
	assert.Equal(t, "ESM4", rec.Symbol)
	assert.Len(t, rec.TradeID, 36)
	assert.Equal(t, 5300.0, rec.EntryPrice)
	assert.Equal(t, 5301.0, rec.ExitPrice)
	if !rec.RealizedPnL.Equal(decimal.RequireFromString("91.8")) {
		t.Fatalf("realized: got %s want 91.8", rec.RealizedPnL)
	}
}

func TestReportWithoutCycle(t *testing.T) {
	r := NewRunner(testConfig(), Deps{})
	rep := r.Report()
	assert.Empty(t, rep.CycleID)
	assert.Empty(t, rep.Sessions)
	assert.Equal(t, "Unaware", rep.StrategyPhase)
	assert.Equal(t, "0.00", rep.RealizedPnL)
	assert.Empty(t, rep.Orders)
}

func TestReportListsLedgerOrders(t *testing.T) {
	r := NewRunner(testConfig(), Deps{})
	_, err := r.Engine().Ledger().ApplyIntent(3, og.LegEntry, enum.ActionBuy, 1, time.UnixMilli(0))
	require.NoError(t, err)

	rep := r.Report()
	require.Len(t, rep.Orders, 1)
	o := rep.Orders[0]
	assert.Equal(t, int64(3), o.RequestID)
	assert.Equal(t, og.LegEntry.String(), o.Leg)
	assert.Equal(t, "Buy", o.Action)
	assert.Equal(t, "Sent", o.State)
}
