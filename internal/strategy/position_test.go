package strategy

import (
	"testing"

	"futurebot/internal/model"
	"futurebot/internal/model/enum"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealizedPnL(t *testing.T) {
	commission := decimal.NewFromFloat(2.05)

	long := RealizedPnL(2, 100, 102, decimal.NewFromInt(50), commission)
	if !long.Equal(decimal.NewFromFloat(191.8)) {
		t.Fatalf("long realized pnl: got %s want %s", long, "191.8")
	}

	short := RealizedPnL(-3, 100, 97, decimal.NewFromInt(20), commission)
	if !short.Equal(decimal.NewFromFloat(167.7)) {
		t.Fatalf("short realized pnl: got %s want %s", short, "167.7")
	}
}

func TestUnrealizedPnL(t *testing.T) {
	entry := model.OrderStatus{AvgPx: 100}
	q := model.SyntheticQuote{Bid: 99, Ask: 99.5}
	pv := decimal.NewFromInt(50)

	long := Position{Net: 2, EntryFill: &entry}
	assert.True(t, long.UnrealizedPnL(q, pv).Equal(decimal.NewFromInt(-100)))

	short := Position{Net: -1, EntryFill: &entry}
	assert.True(t, short.UnrealizedPnL(q, pv).Equal(decimal.NewFromInt(25)))

	flat := Position{EntryFill: &entry}
	assert.True(t, flat.UnrealizedPnL(q, pv).IsZero())
}

func TestPositionSides(t *testing.T) {
	p := Position{Net: -3}
	assert.Equal(t, enum.ActionSell, p.Side())
	assert.Equal(t, enum.ActionBuy, p.ExitAction())
	assert.Equal(t, int64(3), p.Qty())
	assert.True(t, p.IsOpen())
}

func TestSeedPositionFollowsNetSign(t *testing.T) {
	p := seedPosition(model.AccountPosition{AccountID: 1, ContractID: 2, NetPos: -2, NetPrice: 4100.25}, testNow)
	require.NotNil(t, p.EntryFill)
	assert.Equal(t, enum.ActionSell, p.EntryFill.Action)
	assert.Equal(t, 4100.25, p.EntryFill.AvgPx)
	assert.Equal(t, model.OrdStatusFilled, p.EntryFill.OrdStatus)
}

func TestTicketBody(t *testing.T) {
	ticket, err := NewMarketTicket(enum.ActionBuy, "ESM4", 1, "trader", 7)
	require.NoError(t, err)
	body, err := ticket.Body()
	require.NoError(t, err)
	assert.Equal(t,
		`{"action":"Buy","symbol":"ESM4","orderQty":1,"orderType":"Market","accountSpec":"trader","accountId":7,"isAutomated":true}`,
		body)

	_, err = NewMarketTicket(enum.ActionUnknown, "ESM4", 1, "trader", 7)
	assert.Error(t, err)
	_, err = NewMarketTicket(enum.ActionSell, "ESM4", 0, "trader", 7)
	assert.Error(t, err)
}
