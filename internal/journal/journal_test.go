package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type memJournal struct {
	records []TradeRecord
}

func (m *memJournal) RecordTrade(r TradeRecord) error {
	m.records = append(m.records, r)
	return nil
}

func (m *memJournal) Close() error { return nil }

func TestAsyncForwardsInOrder(t *testing.T) {
	mem := &memJournal{}
	a := NewAsync(mem, 4, nil)

	require.NoError(t, a.RecordTrade(TradeRecord{TradeID: "a"}))
	require.NoError(t, a.RecordTrade(TradeRecord{TradeID: "b"}))
	require.NoError(t, a.Close())
	a.Run(t.Context())

	require.Len(t, mem.records, 2)
	assert.Equal(t, "a", mem.records[0].TradeID)
	assert.Equal(t, "b", mem.records[1].TradeID)
}

func TestAsyncDropsWhenFull(t *testing.T) {
	a := NewAsync(Nop{}, 1, nil)
	require.NoError(t, a.RecordTrade(TradeRecord{}))
	assert.Error(t, a.RecordTrade(TradeRecord{}))
}

func TestStoreInsertStatement(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=trader dbname=journal sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	r := TradeRecord{
		TradeID:     "7b0c",
		Symbol:      "ESM4",
		Net:         2,
		EntryPrice:  100,
		ExitPrice:   102,
		RealizedPnL: decimal.RequireFromString("191.8"),
		ClosedAt:    time.Unix(1_700_000_000, 0),
	}
	stmt := db.Session(&gorm.Session{DryRun: true}).Create(&r).Statement
	assert.Contains(t, stmt.SQL.String(), `INSERT INTO "trade_journal"`)
	assert.Contains(t, stmt.SQL.String(), `"realized_pnl"`)
	assert.NoError(t, NewStore(db).RecordTrade(r))
}
