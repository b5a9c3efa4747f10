package session

import (
	"time"

	"futurebot/internal/codec"
	"futurebot/internal/model"
)

// Account is the state of the account and order session.
type Account struct {
	State

	UserData    *model.UserData
	OrderUpdate *model.OrderUpdateMessage
	OrderIDAcks []model.OrderIDAck
}

// NewAccount creates an account session whose queue starts with the
// authorization and user sync requests. Order requests are numbered from 3.
func NewAccount(token string, userID int64, now time.Time) (Account, error) {
	sync, err := codec.SyncMessage(userID)
	if err != nil {
		return Account{}, err
	}
	a := Account{State: newState(now, codec.SyncRequestID+1)}
	a.Unsent = append(a.Unsent, codec.AuthorizeMessage(token), sync)
	return a, nil
}

// Enqueue appends a request to the outbound queue and returns its id.
func (a *Account) Enqueue(endpoint, body string) int64 {
	id := a.NextRequestID()
	a.Unsent = append(a.Unsent, codec.EncodeRequest(endpoint, id, body))
	return id
}

// LatestOrderIDAck returns the most recent order acknowledgment.
func (a *Account) LatestOrderIDAck() (model.OrderIDAck, bool) {
	if len(a.OrderIDAcks) == 0 {
		return model.OrderIDAck{}, false
	}
	return a.OrderIDAcks[len(a.OrderIDAcks)-1], true
}

// FilledUpdate returns the stored order update if it is filled and belongs to
// the latest acknowledged order.
func (a *Account) FilledUpdate() (model.OrderStatus, bool) {
	if a.OrderUpdate == nil || !a.OrderUpdate.IsFilled() {
		return model.OrderStatus{}, false
	}
	ack, ok := a.LatestOrderIDAck()
	if !ok || ack.Data.OrderID != a.OrderUpdate.OrderID() {
		return model.OrderStatus{}, false
	}
	return a.OrderUpdate.Data.Entity, true
}
