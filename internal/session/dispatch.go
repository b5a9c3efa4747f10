package session

import (
	"encoding/json"
	"time"

	"futurebot/internal/codec"
	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/pkg/exception"
	"futurebot/pkg/guard"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Dispatcher applies inbound frames of one session to its state and, for the
// market data session, to the market view.
type Dispatcher struct {
	kind    enum.SessionKind
	account *guard.Guarded[Account]
	market  *guard.Guarded[Market]
	view    *market.View
	deps    Deps
}

// NewAccountDispatcher creates the dispatcher of the account session.
func NewAccountDispatcher(account *guard.Guarded[Account], deps Deps) *Dispatcher {
	return &Dispatcher{kind: enum.SessionAccount, account: account, deps: deps}
}

// NewMarketDispatcher creates the dispatcher of the market data session.
func NewMarketDispatcher(md *guard.Guarded[Market], view *market.View, deps Deps) *Dispatcher {
	return &Dispatcher{kind: enum.SessionMarketData, market: md, view: view, deps: deps}
}

// Kind returns the session served by d.
func (d *Dispatcher) Kind() enum.SessionKind {
	return d.kind
}

func (d *Dispatcher) writeState(fn func(s *State)) {
	if d.kind == enum.SessionAccount {
		d.account.Write(func(a *Account) { fn(&a.State) })
		return
	}
	d.market.Write(func(m *Market) { fn(&m.State) })
}

// HandleFrame applies one frame. It returns ErrConnectionTerminated when the
// peer closed the connection.
func (d *Dispatcher) HandleFrame(frame []byte) error {
	kind, body := codec.ClassifyFrame(frame)
	d.deps.Metrics.IncFrame(d.kind.String(), kind.String())

	switch kind {
	case codec.FrameOpen:
		d.deps.record(d.kind, "Opening socket connection...")
		d.writeState(func(s *State) { s.ConnEstablished = true })
	case codec.FrameHeartbeat:
	case codec.FrameData:
		d.handleData(body)
	case codec.FrameClose:
		d.HandlePeerClose(string(frame))
		return exception.ErrConnectionTerminated
	default:
		d.deps.Metrics.IncDropped(d.kind.String(), "unknown_frame")
		d.deps.record(d.kind, "Unexpected response token received: "+string(frame))
	}
	return nil
}

// HandlePeerClose marks the session closed by the peer and fires the close
// hook.
func (d *Dispatcher) HandlePeerClose(reason string) {
	d.writeState(func(s *State) { s.ReceivedCloseFrame = true })
	d.deps.record(d.kind, "Received closing frame "+reason)
	logs.Errorf("%s session closed by peer: %s", d.kind, reason)
	if d.deps.OnPeerClose != nil {
		d.deps.OnPeerClose(d.kind)
	}
}

// handleData dispatches every element of a data frame array.
func (d *Dispatcher) handleData(body []byte) {
	var elems []json.RawMessage
	if err := sonic.Unmarshal(body, &elems); err != nil {
		d.drop("malformed", body, err)
		return
	}
	for _, elem := range elems {
		if err := d.HandleMessage(elem); err != nil {
			d.drop("malformed", elem, err)
		}
	}
}

func (d *Dispatcher) drop(reason string, raw []byte, err error) {
	d.deps.Metrics.IncDropped(d.kind.String(), reason)
	d.deps.record(d.kind, "Dropped message: "+string(raw))
	logs.Errorf("%s drop %s message, err: %+v", d.kind, reason, err)
}

// HandleMessage dispatches one decoded element of a data frame.
func (d *Dispatcher) HandleMessage(raw []byte) error {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return err
	}
	route := classify(d.kind, env)
	if err := d.apply(route, raw, env); err != nil {
		if d.kind != enum.SessionAccount || !isAccountRoute(route) {
			return err
		}
		// an account shape that failed to parse may still be a market event
		alt := env.marketEventRoute()
		if alt == RouteUnrecognized {
			return err
		}
		if err := d.apply(alt, raw, env); err != nil {
			return err
		}
	}
	return nil
}

func isAccountRoute(r Route) bool {
	switch r {
	case RouteOrderIDAck, RouteUserData, RouteOrderUpdate:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) apply(route Route, raw []byte, env envelope) error {
	switch route {
	case RouteGenericAck:
		return d.onGenericAck(raw)
	case RouteSubscriptionAck:
		return d.onSubscriptionAck(raw)
	case RouteResponseAck:
		return d.onResponseAck(raw)
	case RouteOrderIDAck:
		return d.onOrderIDAck(raw)
	case RouteUserData:
		return d.onUserData(env)
	case RouteOrderUpdate:
		return d.onOrderUpdate(raw)
	case RouteCharts:
		return d.onCharts(raw)
	case RouteQuotes:
		return d.onQuotes(raw)
	case RouteDOMs:
		return d.onDOMs(raw)
	default:
		d.deps.Metrics.IncDropped(d.kind.String(), "unrecognized")
		d.deps.record(d.kind, "Unrecognized message: "+string(raw))
		return nil
	}
}

func (d *Dispatcher) onGenericAck(raw []byte) error {
	var ack model.ResponseAck
	if err := sonic.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	authorized := ack.RequestID == codec.AuthorizeRequestID && ack.Status == 200
	d.writeState(func(s *State) {
		s.Responses = append(s.Responses, ack)
		if authorized {
			s.Authorized = true
		}
	})
	if authorized {
		d.deps.record(d.kind, "Socket authorized")
	}
	return nil
}

func (d *Dispatcher) onSubscriptionAck(raw []byte) error {
	var ack model.ResponseAck
	if err := sonic.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}

	var symbol string
	d.market.Write(func(m *Market) {
		m.SubscriptionAcks = append(m.SubscriptionAcks, ack)
		if ack.Data.HistoricalID <= 0 {
			return
		}
		idx, ok := m.subscriptionIndex(ack.RequestID)
		if !ok {
			return
		}
		m.Subscriptions[idx].HistoricalID = ack.Data.HistoricalID
		m.Subscriptions[idx].SubscriptionID = ack.Data.SubscriptionID
		symbol = m.Subscriptions[idx].Symbol
	})

	if symbol != "" && d.view != nil {
		d.view.BindHistoricalID(symbol, ack.Data.HistoricalID)
		d.deps.record(d.kind, "Bound chart of "+symbol)
	}
	return nil
}

func (d *Dispatcher) onResponseAck(raw []byte) error {
	var ack model.ResponseAck
	if err := sonic.Unmarshal(raw, &ack); err != nil {
		// error responses carry a text body in "d"
		var bare struct {
			RequestID int64 `json:"i"`
			Status    int64 `json:"s"`
		}
		if err := sonic.Unmarshal(raw, &bare); err != nil {
			return errors.Wrap(exception.ErrMalformedMessage, err.Error())
		}
		ack = model.ResponseAck{RequestID: bare.RequestID, Status: bare.Status}
		d.deps.record(d.kind, "Request failed: "+string(raw))
	}
	d.account.Write(func(a *Account) {
		a.Responses = append(a.Responses, ack)
	})
	return nil
}

func (d *Dispatcher) onOrderIDAck(raw []byte) error {
	var ack model.OrderIDAck
	if err := sonic.Unmarshal(raw, &ack); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	d.account.Write(func(a *Account) {
		a.OrderIDAcks = append(a.OrderIDAcks, ack)
	})
	d.deps.record(d.kind, "Order acknowledged: "+string(raw))
	return nil
}

func (d *Dispatcher) onUserData(env envelope) error {
	var data model.UserData
	if err := sonic.Unmarshal(env["d"], &data); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	d.account.Write(func(a *Account) {
		a.UserData = &data
	})
	d.deps.record(d.kind, "Received user data")
	return nil
}

func (d *Dispatcher) onOrderUpdate(raw []byte) error {
	var msg model.OrderUpdateMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	if err := msg.Validate(); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	d.account.Write(func(a *Account) {
		a.OrderUpdate = &msg
	})
	d.deps.record(d.kind, "Order update: "+string(raw))
	return nil
}

func (d *Dispatcher) onCharts(raw []byte) error {
	if d.view == nil {
		return nil
	}
	var msg model.ChartMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	now := d.deps.now()
	ticks := msg.TradeTicks(now)
	for _, t := range ticks {
		d.deps.Metrics.ObserveTickLatency(time.Duration(t.ReceiptDelay) * time.Millisecond)
	}
	d.view.AppendTicks(ticks, now)
	return nil
}

func (d *Dispatcher) onQuotes(raw []byte) error {
	if d.view == nil {
		return nil
	}
	var msg model.QuoteMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	d.view.SetQuote(msg)
	return nil
}

func (d *Dispatcher) onDOMs(raw []byte) error {
	if d.view == nil {
		return nil
	}
	var msg model.DOMMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return errors.Wrap(exception.ErrMalformedMessage, err.Error())
	}
	d.view.UpsertDOM(msg)
	return nil
}
