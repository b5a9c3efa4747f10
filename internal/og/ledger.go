package og

import (
	"sort"
	"sync"
	"time"

	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/pkg/exception"
)

// Leg tells whether an order opens or closes a position.
type Leg uint8

const (
	LegEntry Leg = iota + 1
	LegExit
)

func (l Leg) String() string {
	switch l {
	case LegEntry:
		return "entry"
	case LegExit:
		return "exit"
	default:
		return "unknown"
	}
}

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAcked
	OrderStateRejected
	OrderStateFilled
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "Sent"
	case OrderStateAcked:
		return "Acked"
	case OrderStateRejected:
		return "Rejected"
	case OrderStateFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// Order is the ledger view of one placed order.
type Order struct {
	RequestID int64
	OrderID   int64
	Leg       Leg
	Action    enum.Action
	Qty       int64
	FilledQty int64
	AvgPx     float64
	State     OrderState
	SentAt    time.Time
}

// Ledger records order intents, acknowledgments and fills keyed by request id.
type Ledger struct {
	mu        sync.Mutex
	orders    map[int64]*Order
	byOrderID map[int64]int64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		orders:    make(map[int64]*Order),
		byOrderID: make(map[int64]int64),
	}
}

// Order returns the order sent with requestID.
func (l *Ledger) Order(requestID int64) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[requestID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Orders returns every order in request order.
func (l *Ledger) Orders() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}

// ApplyIntent records an order placed with requestID.
func (l *Ledger) ApplyIntent(requestID int64, leg Leg, action enum.Action, qty int64, now time.Time) (Order, error) {
	if requestID <= 0 {
		return Order{}, exception.ErrUnknownOrder
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.orders[requestID]; ok {
		return Order{}, exception.ErrDuplicateOrder
	}
	o := &Order{
		RequestID: requestID,
		Leg:       leg,
		Action:    action,
		Qty:       qty,
		State:     OrderStateSent,
		SentAt:    now,
	}
	l.orders[requestID] = o
	return *o, nil
}

// ApplyAck binds the broker order id of an acknowledgment to its request.
func (l *Ledger) ApplyAck(ack model.OrderIDAck) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[ack.RequestID]
	if !ok {
		return Order{}, exception.ErrUnknownOrder
	}
	if o.State == OrderStateFilled || o.State == OrderStateRejected {
		if o.OrderID == ack.Data.OrderID {
			return *o, nil
		}
		return *o, exception.ErrInvalidTransition
	}
	if ack.Status != 0 && ack.Status != 200 {
		o.State = OrderStateRejected
		return *o, nil
	}
	o.OrderID = ack.Data.OrderID
	o.State = OrderStateAcked
	l.byOrderID[o.OrderID] = o.RequestID
	return *o, nil
}

// ApplyFill marks the order of a filled execution.
func (l *Ledger) ApplyFill(fill model.OrderStatus) (Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	reqID, ok := l.byOrderID[fill.OrderID]
	if !ok {
		return Order{}, exception.ErrUnknownOrder
	}
	o := l.orders[reqID]
	if o.State != OrderStateAcked && o.State != OrderStateFilled {
		return *o, exception.ErrInvalidTransition
	}
	o.State = OrderStateFilled
	o.FilledQty = fill.CumQty
	o.AvgPx = fill.AvgPx
	return *o, nil
}
