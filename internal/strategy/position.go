package strategy

import (
	"fmt"
	"time"

	"futurebot/internal/model"
	"futurebot/internal/model/enum"

	"github.com/shopspring/decimal"
)

// Position is one trade from entry to exit.
type Position struct {
	AccountID    int64
	ContractID   int64
	Net          int64
	EntryFill    *model.OrderStatus
	ExitFill     *model.OrderStatus
	RealizedPnL  decimal.Decimal
	EntryTrigger string
	ExitTrigger  string
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// IsOpen reports whether the position has no exit fill yet.
func (p Position) IsOpen() bool {
	return p.ExitFill == nil
}

// Side returns the held direction.
func (p Position) Side() enum.Action {
	return enum.ActionFromNet(p.Net)
}

// ExitAction returns the side of the order that flattens the position.
func (p Position) ExitAction() enum.Action {
	return p.Side().Opposite()
}

// Qty returns the absolute held quantity.
func (p Position) Qty() int64 {
	if p.Net < 0 {
		return -p.Net
	}
	return p.Net
}

// seedPosition builds an open position from a broker position row.
func seedPosition(row model.AccountPosition, now time.Time) Position {
	fill := model.SeededFill(row)
	return Position{
		AccountID:  row.AccountID,
		ContractID: row.ContractID,
		Net:        row.NetPos,
		EntryFill:  &fill,
		OpenedAt:   now,
	}
}

// fillEntry sets the entry fill and the signed quantity from an execution.
func (p *Position) fillEntry(fill model.OrderStatus, fallbackQty int64) {
	qty := fill.CumQty
	if qty == 0 {
		qty = fallbackQty
	}
	p.AccountID = fill.AccountID
	p.ContractID = fill.ContractID
	p.Net = fill.Action.Sign() * qty
	p.EntryFill = &fill
}

// close sets the exit fill and the realized PnL.
func (p *Position) close(fill model.OrderStatus, pointValue, commission decimal.Decimal, now time.Time) {
	entry := 0.0
	if p.EntryFill != nil {
		entry = p.EntryFill.AvgPx
	}
	p.RealizedPnL = RealizedPnL(p.Net, entry, fill.AvgPx, pointValue, commission)
	p.ExitFill = &fill
	p.ClosedAt = now
}

// UnrealizedPnL values the open quantity against the side of the book it
// would exit into.
func (p Position) UnrealizedPnL(q model.SyntheticQuote, pointValue decimal.Decimal) decimal.Decimal {
	if p.EntryFill == nil || p.Net == 0 {
		return decimal.Zero
	}
	entry := decimal.NewFromFloat(p.EntryFill.AvgPx)
	if p.Net < 0 {
		return decimal.NewFromInt(-p.Net).Mul(pointValue).Mul(entry.Sub(decimal.NewFromFloat(q.Ask)))
	}
	return decimal.NewFromInt(p.Net).Mul(pointValue).Mul(decimal.NewFromFloat(q.Bid).Sub(entry))
}

// RealizedPnL is net*pointValue*(exit-entry) less a round trip commission per
// contract.
func RealizedPnL(net int64, entry, exit float64, pointValue, commission decimal.Decimal) decimal.Decimal {
	diff := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))
	gross := decimal.NewFromInt(net).Mul(pointValue).Mul(diff)
	qty := net
	if qty < 0 {
		qty = -qty
	}
	fees := commission.Mul(decimal.NewFromInt(2)).Mul(decimal.NewFromInt(qty))
	return gross.Sub(fees)
}

func (p Position) String() string {
	entry, exit := "-", "-"
	if p.EntryFill != nil {
		entry = fmt.Sprintf("%.2f", p.EntryFill.AvgPx)
	}
	if p.ExitFill != nil {
		exit = fmt.Sprintf("%.2f", p.ExitFill.AvgPx)
	}
	return fmt.Sprintf("account=%d contract=%d net=%d entry=%s exit=%s realized=%s",
		p.AccountID, p.ContractID, p.Net, entry, exit, p.RealizedPnL.StringFixed(2))
}
