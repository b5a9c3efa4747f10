package session

import (
	"context"
	"time"

	"futurebot/internal/codec"
	"futurebot/internal/model/enum"
	"futurebot/pkg/guard"

	"github.com/yanun0323/logs"
)

// HeartbeatInterval is the idle time after which a heartbeat is sent.
const HeartbeatInterval = 2500 * time.Millisecond

// Drainer sends the queued outbound frames of one session.
type Drainer struct {
	kind    enum.SessionKind
	account *guard.Guarded[Account]
	market  *guard.Guarded[Market]
	w       Writer
	deps    Deps
}

// NewAccountDrainer creates the drainer of the account session.
func NewAccountDrainer(account *guard.Guarded[Account], w Writer, deps Deps) *Drainer {
	return &Drainer{kind: enum.SessionAccount, account: account, w: w, deps: deps}
}

// NewMarketDrainer creates the drainer of the market data session.
func NewMarketDrainer(md *guard.Guarded[Market], w Writer, deps Deps) *Drainer {
	return &Drainer{kind: enum.SessionMarketData, market: md, w: w, deps: deps}
}

// Run drains on every tick until ctx is done.
func (d *Drainer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Tick(d.deps.now())
		}
	}
}

// Tick runs one drain pass. It returns false when the session lock was held
// and the pass was skipped.
func (d *Drainer) Tick(now time.Time) bool {
	var ok bool
	if d.kind == enum.SessionAccount {
		ok = d.account.TryWrite(func(a *Account) { d.drainAccount(a, now) })
	} else {
		ok = d.market.TryWrite(func(m *Market) { d.drainMarket(m, now) })
	}
	if !ok {
		d.deps.Metrics.IncLockSkip("drain_" + d.kind.String())
	}
	return ok
}

func (d *Drainer) send(msg string) bool {
	if err := d.w.WriteText(msg); err != nil {
		d.deps.Metrics.IncSendFailure(d.kind.String())
		d.deps.record(d.kind, "could not send message: "+err.Error())
		logs.Errorf("%s send failed, err: %+v", d.kind, err)
		return false
	}
	return true
}

// heartbeat sends an idle heartbeat when due. It returns false when the send
// failed and the rest of the pass must be skipped.
func (d *Drainer) heartbeat(s *State, now time.Time) bool {
	if !s.heartbeatDue(now, HeartbeatInterval) {
		return true
	}
	if !d.send(codec.HeartbeatFrame) {
		return false
	}
	s.LastHeartbeat = now
	d.deps.Metrics.IncHeartbeat(d.kind.String())
	return true
}

func (d *Drainer) close(s *State) {
	s.CloseRequested = false
	if err := d.w.WriteClose(); err != nil {
		d.deps.Metrics.IncSendFailure(d.kind.String())
		d.deps.record(d.kind, "error sending closing message")
		return
	}
	d.deps.record(d.kind, "successfully sent closing message")
}

func (d *Drainer) drainAccount(a *Account, now time.Time) {
	if a.ReceivedCloseFrame {
		return
	}
	if !d.heartbeat(&a.State, now) {
		return
	}
	if a.ConnEstablished && len(a.Unsent) > 0 {
		msg := a.Unsent[0]
		if !d.send(msg) {
			return
		}
		a.Unsent = a.Unsent[1:]
		a.Sent = append(a.Sent, msg)
	}
	if a.CloseRequested {
		d.close(&a.State)
	}
}

func (d *Drainer) drainMarket(m *Market, now time.Time) {
	if m.ReceivedCloseFrame {
		return
	}
	if !d.heartbeat(&m.State, now) {
		return
	}
	if m.ConnEstablished && len(m.Sent) == 0 {
		if !d.send(m.AuthMessage) {
			return
		}
		m.Sent = append(m.Sent, m.AuthMessage)
	}
	if m.Authorized {
		for i := range m.Subscriptions {
			sub := &m.Subscriptions[i]
			if sub.Status != enum.RequestUnsent {
				continue
			}
			msg, err := codec.SubscribeMessage(sub.Kind, sub.Symbol, int64(i)+codec.SubscriptionIDOffset, now)
			if err != nil {
				logs.Errorf("build %s subscription, err: %+v", sub, err)
				continue
			}
			if !d.send(msg) {
				d.deps.record(d.kind, sub.String()+" error sending data request message")
				continue
			}
			sub.Status = enum.RequestSent
			m.Sent = append(m.Sent, msg)
			d.deps.record(d.kind, sub.String()+" successfully sent data request message")
		}
	}
	if m.CloseRequested {
		for i := range m.Subscriptions {
			sub := &m.Subscriptions[i]
			if sub.Status != enum.RequestSent {
				continue
			}
			msg, err := codec.UnsubscribeMessage(sub.Kind, sub.Symbol, sub.HistoricalID, int64(i)+codec.SubscriptionIDOffset)
			if err != nil {
				logs.Errorf("build %s unsubscribe, err: %+v", sub, err)
				continue
			}
			if !d.send(msg) {
				continue
			}
			sub.Status = enum.RequestCanceled
			d.deps.record(d.kind, sub.String()+" successfully sent data unsubscribe request message")
		}
		d.close(&m.State)
	}
}
