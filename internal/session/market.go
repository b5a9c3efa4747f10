package session

import (
	"fmt"
	"time"

	"futurebot/internal/codec"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
)

// Subscription is one market data stream request.
type Subscription struct {
	Symbol         string
	Kind           enum.DataKind
	Status         enum.RequestStatus
	SubscriptionID int64
	HistoricalID   int64
}

func (s Subscription) String() string {
	return fmt.Sprintf("%s %s", s.Symbol, s.Kind)
}

// Market is the state of the market data session.
type Market struct {
	State

	AuthMessage      string
	Subscriptions    []Subscription
	SubscriptionAcks []model.ResponseAck
}

// NewMarket creates a market data session for the given subscriptions.
func NewMarket(token string, subs []Subscription, now time.Time) Market {
	cp := make([]Subscription, len(subs))
	for i, s := range subs {
		s.Status = enum.RequestUnsent
		cp[i] = s
	}
	return Market{
		State:         newState(now, codec.SubscriptionIDOffset+int64(len(subs))),
		AuthMessage:   codec.AuthorizeMessage(token),
		Subscriptions: cp,
	}
}

// subscriptionIndex maps an ack request id back to its subscription.
func (m *Market) subscriptionIndex(requestID int64) (int, bool) {
	idx := requestID - codec.SubscriptionIDOffset
	if idx < 0 || idx >= int64(len(m.Subscriptions)) {
		return 0, false
	}
	return int(idx), true
}
