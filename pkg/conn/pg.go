package conn

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrEmptyDSN = errors.New("conn: empty postgres dsn")

// Option configures a Postgres pool.
type Option struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	// Verbose logs every statement.
	Verbose bool
}

func (o Option) withDefaults() Option {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 2
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = 5 * time.Minute
	}
	return o
}

func (o Option) logLevel() logger.LogLevel {
	if o.Verbose {
		return logger.Info
	}
	return logger.Silent
}

// Client owns a gorm handle and its pool.
type Client struct {
	db *gorm.DB
}

// New opens the pool and pings the server once.
func New(ctx context.Context, option Option) (*Client, error) {
	if option.DSN == "" {
		return nil, ErrEmptyDSN
	}
	option = option.withDefaults()

	db, err := gorm.Open(postgres.Open(option.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(option.logLevel()),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(option.MaxOpenConns)
	sqlDB.SetMaxIdleConns(option.MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(option.ConnMaxIdleTime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Client{db: db}, nil
}

// Migrate creates or updates the tables of models.
func (c *Client) Migrate(models ...any) error {
	if c == nil || c.db == nil {
		return gorm.ErrInvalidDB
	}
	return c.db.AutoMigrate(models...)
}

func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// Close closes the pool. A nil client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
