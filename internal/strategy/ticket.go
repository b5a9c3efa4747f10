package strategy

import (
	"futurebot/internal/model/enum"
	"futurebot/pkg/exception"

	"github.com/bytedance/sonic"
)

// Ticket is a market order request body.
type Ticket struct {
	Action      enum.Action `json:"action"`
	Symbol      string      `json:"symbol"`
	OrderQty    int64       `json:"orderQty"`
	OrderType   string      `json:"orderType"`
	AccountSpec string      `json:"accountSpec"`
	AccountID   int64       `json:"accountId"`
	IsAutomated bool        `json:"isAutomated"`
}

// NewMarketTicket builds an automated market order.
func NewMarketTicket(action enum.Action, symbol string, qty int64, accountSpec string, accountID int64) (Ticket, error) {
	if !action.IsKnown() {
		return Ticket{}, exception.ErrOrderUnknownAction
	}
	if qty <= 0 {
		return Ticket{}, exception.ErrOrderInvalidQty
	}
	return Ticket{
		Action:      action,
		Symbol:      symbol,
		OrderQty:    qty,
		OrderType:   "Market",
		AccountSpec: accountSpec,
		AccountID:   accountID,
		IsAutomated: true,
	}, nil
}

// Body encodes the ticket as a request body.
func (t Ticket) Body() (string, error) {
	b, err := sonic.ConfigFastest.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
