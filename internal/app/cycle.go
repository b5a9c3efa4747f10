package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futurebot/internal/auth"
	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/internal/recorder"
	"futurebot/internal/session"
	"futurebot/pkg/exception"
	"futurebot/pkg/guard"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

// cycle is the state of one connection cycle.
type cycle struct {
	id      string
	started time.Time
	view    *market.View
	market  *guard.Guarded[session.Market]
	account *guard.Guarded[session.Account]
}

func websocketURL(host string) string {
	return "wss://" + host + "/v1/websocket"
}

func (r *Runner) newCycle(tok auth.Token, contract model.ContractDescriptor) (*cycle, error) {
	now := r.deps.Now()
	subs := []session.Subscription{
		{Symbol: contract.Symbol, Kind: enum.DataKindChart},
		{Symbol: contract.Symbol, Kind: enum.DataKindDOM},
	}
	acct, err := session.NewAccount(tok.AccessToken, tok.UserID, now)
	if err != nil {
		return nil, err
	}
	return &cycle{
		id:      uuid.NewString(),
		started: now,
		view:    market.NewView([]model.ContractDescriptor{contract}, r.cfg.Retention),
		market:  guard.New(session.NewMarket(tok.AccessToken, subs, now)),
		account: guard.New(acct),
	}, nil
}

// cycle connects both sessions and trades until one of them ends or the
// process is interrupted.
func (r *Runner) cycle(ctx context.Context, tok auth.Token, contract model.ContractDescriptor) error {
	c, err := r.newCycle(tok, contract)
	if err != nil {
		return err
	}
	r.current.Store(c)
	r.stopping.Store(false)
	r.deps.Metrics.IncCycle()
	r.engine.Resync()
	logs.Infof("cycle %s started for %s", c.id, contract.Symbol)

	mdConn, err := r.deps.Dial(ctx, websocketURL(r.cfg.Server.MarketDataHost))
	if err != nil {
		r.record(recorder.CategoryMarketData, "could not connect: "+err.Error())
		return err
	}
	defer mdConn.Close()

	acConn, err := r.deps.Dial(ctx, websocketURL(r.cfg.Server.TradingHost))
	if err != nil {
		r.record(recorder.CategoryTrading, "could not connect: "+err.Error())
		return err
	}
	defer acConn.Close()

	sdeps := session.Deps{
		Recorder:    r.deps.Recorder,
		Metrics:     r.deps.Metrics,
		OnPeerClose: r.onPeerClose,
		Now:         r.deps.Now,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.ReadLoop(gctx, mdConn, session.NewMarketDispatcher(c.market, c.view, sdeps))
	})
	g.Go(func() error {
		return session.ReadLoop(gctx, acConn, session.NewAccountDispatcher(c.account, sdeps))
	})
	g.Go(func() error {
		return session.NewMarketDrainer(c.market, mdConn, sdeps).Run(gctx, r.cfg.Intervals.Drain)
	})
	g.Go(func() error {
		return session.NewAccountDrainer(c.account, acConn, sdeps).Run(gctx, r.cfg.Intervals.Drain)
	})
	g.Go(func() error {
		return r.runStrategy(gctx, c)
	})
	g.Go(func() error {
		return r.runReports(gctx, c)
	})
	g.Go(func() error {
		return r.runRenewal(gctx)
	})
	g.Go(func() error {
		return r.watchInterrupt(gctx, c)
	})
	// Readers block in ReadFrame until their connection is closed.
	g.Go(func() error {
		<-gctx.Done()
		_ = mdConn.Close()
		_ = acConn.Close()
		return nil
	})

	err = g.Wait()
	logs.Infof("cycle %s ended after %s", c.id, r.deps.Now().Sub(c.started))
	return err
}

func (r *Runner) onPeerClose(kind enum.SessionKind) {
	if r.stopping.Load() {
		return
	}
	r.deps.Notifier.SMS(fmt.Sprintf("%s connection was closed by the server", kind))
}

func (r *Runner) runStrategy(ctx context.Context, c *cycle) error {
	ticker := time.NewTicker(r.cfg.Intervals.Strategy)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.engine.Tick(c.view, c.account)
		}
	}
}

// runReports emails the strategy summary once after FirstReport and then
// every Report interval.
func (r *Runner) runReports(ctx context.Context, c *cycle) error {
	timer := time.NewTimer(r.cfg.Intervals.FirstReport)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			r.deps.Notifier.Email("Trader report", r.Summary(c.view))
			timer.Reset(r.cfg.Intervals.Report)
		}
	}
}

func (r *Runner) runRenewal(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Intervals.Renew)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			renewed, err := r.deps.Credentials.RenewIfDue(ctx, r.deps.Now())
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.record(recorder.CategoryAny, "could not renew access token")
				logs.Errorf("renew access token, err: %+v", err)
				continue
			}
			if renewed {
				r.record(recorder.CategoryAny, "access token renewed")
				r.deps.Notifier.SMS("Access token renewed")
			}
		}
	}
}

// watchInterrupt runs the close handshake on both sessions when the process
// is interrupted, then ends the cycle after the grace period.
func (r *Runner) watchInterrupt(ctx context.Context, c *cycle) error {
	select {
	case <-ctx.Done():
		return nil
	case <-r.deps.Interrupt:
	}
	r.stopping.Store(true)
	c.market.Write(func(m *session.Market) { m.RequestClose() })
	c.account.Write(func(a *session.Account) { a.RequestClose() })
	r.record(recorder.CategoryAny, r.Summary(c.view))

	t := time.NewTimer(r.cfg.Intervals.ShutdownGrace)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return exception.ErrInterrupted
}
