package session

import (
	"errors"
	"testing"
	"time"

	"futurebot/internal/market"
	"futurebot/internal/model"
	"futurebot/internal/model/enum"
	"futurebot/pkg/exception"
	"futurebot/pkg/guard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarket(t *testing.T) (*guard.Guarded[Market], *market.View, *Dispatcher) {
	t.Helper()
	now := time.UnixMilli(1_000_000)
	md := guard.New(NewMarket("tok", []Subscription{
		{Symbol: "ESM4", Kind: enum.DataKindDOM},
		{Symbol: "ESM4", Kind: enum.DataKindChart},
	}, now))
	view := market.NewView([]model.ContractDescriptor{{Symbol: "ESM4", ID: 11}}, 0)
	d := NewMarketDispatcher(md, view, Deps{Now: func() time.Time { return now }})
	return md, view, d
}

func newTestAccount(t *testing.T) (*guard.Guarded[Account], *Dispatcher) {
	t.Helper()
	acct, err := NewAccount("tok", 42, time.UnixMilli(0))
	require.NoError(t, err)
	g := guard.New(acct)
	return g, NewAccountDispatcher(g, Deps{})
}

func TestAuthorizationAck(t *testing.T) {
	md, _, d := newTestMarket(t)

	require.NoError(t, d.HandleFrame([]byte(`a[{"i":2,"s":200}]`)))
	md.Read(func(m *Market) {
		if m.Authorized {
			t.Fatalf("authorized after i=2 ack: got %v want %v", m.Authorized, false)
		}
	})

	require.NoError(t, d.HandleFrame([]byte(`a[{"i":1,"s":200}]`)))
	md.Read(func(m *Market) {
		assert.True(t, m.Authorized)
		assert.Len(t, m.Responses, 2)
	})
}

func TestOpenFrameEstablishesConnection(t *testing.T) {
	md, _, d := newTestMarket(t)
	require.NoError(t, d.HandleFrame([]byte("o")))
	require.NoError(t, d.HandleFrame([]byte("h")))
	md.Read(func(m *Market) {
		assert.True(t, m.ConnEstablished)
		assert.Equal(t, enum.PhaseOpened, m.Phase())
	})
}

func TestSubscriptionAckBindsHistoricalID(t *testing.T) {
	md, view, d := newTestMarket(t)

	require.NoError(t, d.HandleFrame([]byte(`a[{"s":200,"i":3,"d":{"mode":"RealTime","subscriptionId":5,"historicalId":9001}}]`)))

	md.Read(func(m *Market) {
		require.Len(t, m.SubscriptionAcks, 1)
		assert.Equal(t, int64(9001), m.Subscriptions[1].HistoricalID)
		assert.Equal(t, int64(0), m.Subscriptions[0].HistoricalID)
	})
	view.Read(func(b *market.Book) {
		c, ok := b.Contract("ESM4")
		require.True(t, ok)
		assert.Equal(t, int64(9001), c.HistoricalID)
	})
}

func TestEveryArrayElementIsDispatched(t *testing.T) {
	_, view, d := newTestMarket(t)
	frame := `a[` +
		`{"e":"md","d":{"doms":[{"contractId":11,"timestamp":"2024-01-01T00:00:00Z","bids":[{"price":1,"size":3}],"offers":[{"price":2,"size":1}]}]}},` +
		`{"e":"md","d":{"quotes":[{"id":1,"contractId":11,"timestamp":"2024-01-01T00:00:00Z","entries":{"Bid":{"price":1,"size":3}}}]}},` +
		`{"e":"chart","d":{"charts":[{"id":9001,"bp":400,"bt":999000,"ts":0.25,"tks":[{"p":1,"b":0,"a":1,"s":2,"t":500},{"p":0,"b":0,"a":1,"s":1,"t":100}]}]}}` +
		`]`
	require.NoError(t, d.HandleFrame([]byte(frame)))

	view.Read(func(b *market.Book) {
		require.Len(t, b.DOMs, 1)
		require.NotNil(t, b.Quote)
		assert.Equal(t, 1.0, b.Quote.Entries["Bid"].Price)
		require.Len(t, b.Ticks, 2)
		assert.Equal(t, int64(999_100), b.Ticks[0].Timestamp)
		assert.Equal(t, enum.ActionBuy, b.Ticks[1].Side)
	})
}

func TestMalformedElementIsDropped(t *testing.T) {
	md, _, d := newTestMarket(t)
	require.NoError(t, d.HandleFrame([]byte(`a[{"e":"md","d":{"doms":"oops"}},{"i":1,"s":200}]`)))
	md.Read(func(m *Market) { assert.True(t, m.Authorized) })

	require.NoError(t, d.HandleFrame([]byte(`a{not json`)))
}

const (
	execReportFilled = `{"e":"props","d":{"entityType":"executionReport","eventType":"Created","entity":{"id":9001,"commandId":555,"name":"Fill","accountId":7,"contractId":11,"timestamp":"2024-06-03T16:30:00.120Z","tradeDate":{"year":2024,"month":6,"day":3},"orderId":555,"execType":"Filled","execRefId":"31415","ordStatus":"Filled","action":"Buy","cumQty":2,"avgPx":101,"lastQty":2,"lastPx":101}}}`
	orderEntityFilled = `{"e":"props","d":{"entityType":"order","eventType":"Updated","entity":{"id":555,"accountId":7,"contractId":11,"timestamp":"2024-06-03T16:30:00.100Z","action":"Buy","ordStatus":"Filled","executionProviderId":1,"archived":false,"external":false,"admin":false}}}`
	fillEntity        = `{"e":"props","d":{"entityType":"fill","eventType":"Created","entity":{"id":777,"orderId":555,"contractId":11,"timestamp":"2024-06-03T16:30:00.120Z","tradeDate":{"year":2024,"month":6,"day":3},"action":"Buy","qty":2,"price":101,"active":true,"finallyPaired":0}}}`
	positionEntity    = `{"e":"props","d":{"entityType":"position","eventType":"Updated","entity":{"id":3,"accountId":7,"contractId":11,"timestamp":"2024-06-03T16:30:00.120Z","tradeDate":{"year":2024,"month":6,"day":3},"netPos":2,"netPrice":101,"bought":2,"boughtValue":202,"sold":0,"soldValue":0,"prevPos":0,"prevPrice":0}}}`
)

func TestAccountMessages(t *testing.T) {
	acct, d := newTestAccount(t)
	frame := `a[` +
		`{"s":200,"i":2,"d":{"accounts":[{"id":7,"name":"DEMO1"}],"positions":[{"accountId":7,"contractId":11,"netPos":2,"netPrice":100.5}]}},` +
		`{"s":200,"i":3,"d":{"orderId":555}},` +
		execReportFilled +
		`]`
	require.NoError(t, d.HandleFrame([]byte(frame)))

	acct.Read(func(a *Account) {
		require.NotNil(t, a.UserData)
		assert.False(t, a.UserData.IsFlat())
		ack, ok := a.LatestOrderIDAck()
		require.True(t, ok)
		assert.Equal(t, int64(555), ack.Data.OrderID)
		fill, ok := a.FilledUpdate()
		require.True(t, ok)
		assert.Equal(t, 101.0, fill.AvgPx)
		assert.Equal(t, int64(2), fill.CumQty)
		assert.Equal(t, enum.ActionBuy, fill.Action)
	})
}

func TestOrderEntityDoesNotHideExecutionFill(t *testing.T) {
	acct, d := newTestAccount(t)
	frame := `a[{"s":200,"i":3,"d":{"orderId":555}},` + execReportFilled + `,` + orderEntityFilled + `]`
	require.NoError(t, d.HandleFrame([]byte(frame)))

	acct.Read(func(a *Account) {
		require.NotNil(t, a.OrderUpdate)
		if got := a.OrderUpdate.OrderID(); got != 555 {
			t.Fatalf("stored update order id: got %d want %d", got, 555)
		}
		fill, ok := a.FilledUpdate()
		require.True(t, ok)
		assert.Equal(t, 101.0, fill.AvgPx)
	})
}

func TestNonExecutionEntitiesLeaveOrderUpdateUntouched(t *testing.T) {
	for _, tc := range []struct {
		name  string
		frame string
	}{
		{"order", orderEntityFilled},
		{"fill", fillEntity},
		{"position", positionEntity},
		{"report without order id", `{"e":"props","d":{"entityType":"executionReport","entity":{"id":1,"ordStatus":"Filled","avgPx":101}}}`},
		{"filled report without price", `{"e":"props","d":{"entityType":"executionReport","entity":{"orderId":555,"ordStatus":"Filled","cumQty":2}}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			acct, d := newTestAccount(t)
			require.NoError(t, d.HandleFrame([]byte(`a[`+tc.frame+`]`)))
			acct.Read(func(a *Account) { assert.Nil(t, a.OrderUpdate) })
		})
	}
}

func TestWorkingReportReplacesEarlierUpdate(t *testing.T) {
	acct, d := newTestAccount(t)
	working := `{"e":"props","d":{"entityType":"executionReport","eventType":"Created","entity":{"id":9000,"orderId":556,"execType":"New","ordStatus":"Working","action":"Sell"}}}`
	require.NoError(t, d.HandleFrame([]byte(`a[`+execReportFilled+`,`+working+`]`)))
	acct.Read(func(a *Account) {
		require.NotNil(t, a.OrderUpdate)
		assert.Equal(t, int64(556), a.OrderUpdate.OrderID())
		assert.False(t, a.OrderUpdate.IsFilled())
	})
}

func TestCloseFrame(t *testing.T) {
	md, _, d := newTestMarket(t)
	var closed enum.SessionKind
	d.deps.OnPeerClose = func(k enum.SessionKind) { closed = k }

	err := d.HandleFrame([]byte(`c[1000,"Normal closure"]`))
	require.True(t, errors.Is(err, exception.ErrConnectionTerminated))
	assert.Equal(t, enum.SessionMarketData, closed)
	md.Read(func(m *Market) {
		assert.True(t, m.ReceivedCloseFrame)
		assert.Equal(t, enum.PhaseClosedByPeer, m.Phase())
	})
}

func TestReadLoop(t *testing.T) {
	md, _, d := newTestMarket(t)

	r := &fakeReader{frames: [][]byte{[]byte("o"), []byte(`a[{"i":1,"s":200}]`)}, err: exception.ErrWebSocketConnectionClose}
	err := ReadLoop(t.Context(), r, d)
	require.True(t, errors.Is(err, exception.ErrConnectionTerminated))
	md.Read(func(m *Market) {
		assert.True(t, m.Authorized)
		assert.True(t, m.ReceivedCloseFrame)
	})

	r = &fakeReader{err: errors.New("reset by peer")}
	err = ReadLoop(t.Context(), r, d)
	require.Error(t, err)
	assert.False(t, errors.Is(err, exception.ErrConnectionTerminated))
}
