package model

import (
	"futurebot/internal/model/enum"

	"github.com/yanun0323/errors"
)

const OrdStatusFilled = "Filled"

// EntityTypeExecutionReport is the only pushed entity that reports an
// execution of a placed order.
const EntityTypeExecutionReport = "executionReport"

// UserDataMessage is the reply to the user sync request.
type UserDataMessage struct {
	RequestID int64    `json:"i"`
	Status    int64    `json:"s"`
	Data      UserData `json:"d"`
}

// UserData is the account snapshot. Only the fields the engine reads are kept.
type UserData struct {
	Accounts  []Account         `json:"accounts"`
	Positions []AccountPosition `json:"positions"`
	Users     []User            `json:"users"`
}

type Account struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UserID   int64  `json:"userId"`
	Active   bool   `json:"active"`
	Archived bool   `json:"archived"`
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AccountPosition is a broker-side position row.
type AccountPosition struct {
	ID         int64   `json:"id"`
	AccountID  int64   `json:"accountId"`
	ContractID int64   `json:"contractId"`
	NetPos     int64   `json:"netPos"`
	NetPrice   float64 `json:"netPrice"`
	Bought     int64   `json:"bought"`
	Sold       int64   `json:"sold"`
	Timestamp  string  `json:"timestamp"`
}

// PrimaryAccount returns the first account of the snapshot.
func (u UserData) PrimaryAccount() (Account, bool) {
	if len(u.Accounts) == 0 {
		return Account{}, false
	}
	return u.Accounts[0], true
}

// OpenPosition returns the first position with a non-zero net quantity.
func (u UserData) OpenPosition() (AccountPosition, bool) {
	for _, p := range u.Positions {
		if p.NetPos != 0 {
			return p, true
		}
	}
	return AccountPosition{}, false
}

// IsFlat reports whether the snapshot holds no open position.
func (u UserData) IsFlat() bool {
	_, ok := u.OpenPosition()
	return !ok
}

// OrderStatus is the order entity of an order update. All fields are
// comparable so two fills can be compared with ==.
type OrderStatus struct {
	ID              int64       `json:"id"`
	AccountID       int64       `json:"accountId"`
	ContractID      int64       `json:"contractId"`
	OrderID         int64       `json:"orderId"`
	CommandID       int64       `json:"commandId"`
	Action          enum.Action `json:"action"`
	AvgPx           float64     `json:"avgPx"`
	LastPx          float64     `json:"lastPx"`
	LastQty         int64       `json:"lastQty"`
	CumQty          int64       `json:"cumQty"`
	ExecType        string      `json:"execType"`
	OrdStatus       string      `json:"ordStatus"`
	ExternalClOrdID string      `json:"externalClOrdId"`
	Name            string      `json:"name"`
	Timestamp       string      `json:"timestamp"`
}

// SeededFill builds the synthetic entry fill of a position found in a snapshot.
func SeededFill(p AccountPosition) OrderStatus {
	return OrderStatus{
		AccountID:  p.AccountID,
		ContractID: p.ContractID,
		Action:     enum.ActionFromNet(p.NetPos),
		AvgPx:      p.NetPrice,
		OrdStatus:  OrdStatusFilled,
		Timestamp:  p.Timestamp,
	}
}

// OrderUpdateMessage is a pushed order execution event.
type OrderUpdateMessage struct {
	Event string      `json:"e"`
	Data  OrderUpdate `json:"d"`
}

type OrderUpdate struct {
	Entity     OrderStatus `json:"entity"`
	EntityType string      `json:"entityType"`
	EventType  string      `json:"eventType"`
}

// Validate checks that the update is an execution report of a placed order.
// Order, fill and position entities share the props event and are rejected.
func (m OrderUpdateMessage) Validate() error {
	e := m.Data.Entity
	switch {
	case m.Data.EntityType != EntityTypeExecutionReport:
		return errors.Errorf("entity type %q is not an execution report", m.Data.EntityType)
	case e.OrdStatus == "":
		return errors.New("execution report without ordStatus")
	case e.OrderID == 0:
		return errors.New("execution report without orderId")
	case e.OrdStatus == OrdStatusFilled && e.AvgPx <= 0:
		return errors.Errorf("filled execution report for order %d without avgPx", e.OrderID)
	}
	return nil
}

// IsFilled reports whether the update carries a filled order.
func (m OrderUpdateMessage) IsFilled() bool {
	return m.Data.Entity.OrdStatus == OrdStatusFilled
}

// OrderID returns the order id of the update.
func (m OrderUpdateMessage) OrderID() int64 {
	return m.Data.Entity.OrderID
}

// OrderIDAck acknowledges a placed order.
type OrderIDAck struct {
	RequestID int64       `json:"i"`
	Status    int64       `json:"s"`
	Data      OrderIDData `json:"d"`
}

type OrderIDData struct {
	OrderID int64 `json:"orderId"`
}

// ResponseAck is a generic request response, including subscription acks.
type ResponseAck struct {
	RequestID int64        `json:"i"`
	Status    int64        `json:"s"`
	Data      ResponseData `json:"d"`
}

type ResponseData struct {
	Mode           string `json:"mode"`
	SubscriptionID int64  `json:"subscriptionId"`
	HistoricalID   int64  `json:"historicalId"`
	RealtimeID     int64  `json:"realtimeId"`
}
