package journal

import (
	"context"
	"time"

	"futurebot/internal/bus"
	"futurebot/internal/obs"
	"futurebot/pkg/conn"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// TradeRecord is one closed position.
type TradeRecord struct {
	ID           uint64          `gorm:"primaryKey"`
	TradeID      string          `gorm:"size:36;uniqueIndex"`
	CycleID      string          `gorm:"size:36;index"`
	Symbol       string          `gorm:"size:16"`
	AccountID    int64
	ContractID   int64
	Net          int64
	EntryPrice   float64
	ExitPrice    float64
	RealizedPnL  decimal.Decimal `gorm:"column:realized_pnl;type:numeric(18,4)"`
	EntryTrigger string
	ExitTrigger  string
	OpenedAt     time.Time
	ClosedAt     time.Time `gorm:"index"`
}

func (TradeRecord) TableName() string {
	return "trade_journal"
}

// Journal stores closed trades. It is append-only.
type Journal interface {
	RecordTrade(r TradeRecord) error
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) Close() error                  { return nil }

// Store writes records to Postgres.
type Store struct {
	client *conn.Client
	db     *gorm.DB
}

// Open connects to dsn and migrates the journal table.
func Open(ctx context.Context, dsn string) (*Store, error) {
	client, err := conn.New(ctx, conn.Option{DSN: dsn, MaxOpenConns: 2})
	if err != nil {
		return nil, errors.Wrap(err, "connect journal database")
	}
	if err := client.Migrate(&TradeRecord{}); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "migrate journal table")
	}
	return &Store{client: client, db: client.DB()}, nil
}

// NewStore writes through an existing connection without migrating.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RecordTrade(r TradeRecord) error {
	if err := s.db.Create(&r).Error; err != nil {
		return errors.Wrap(err, "insert trade").With("trade", r.TradeID)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Async writes records from a background queue so callers never wait on the
// database.
type Async struct {
	next    Journal
	queue   *bus.Queue[TradeRecord]
	metrics *obs.Metrics
}

func NewAsync(next Journal, capacity int, metrics *obs.Metrics) *Async {
	return &Async{next: next, queue: bus.NewQueue[TradeRecord](capacity), metrics: metrics}
}

// RecordTrade queues r. A full queue drops it.
func (a *Async) RecordTrade(r TradeRecord) error {
	if err := a.queue.TryPublish(r); err != nil {
		a.metrics.IncQueueDrop("journal")
		return err
	}
	return nil
}

// Run writes queued records until ctx is done or the journal is closed.
func (a *Async) Run(ctx context.Context) {
	a.queue.Run(ctx, func(r TradeRecord) {
		if err := a.next.RecordTrade(r); err != nil {
			logs.Errorf("journal trade %s, err: %+v", r.TradeID, err)
		}
	})
}

// Close stops accepting records. The wrapped journal is closed by its owner.
func (a *Async) Close() error {
	a.queue.Close()
	return nil
}
