// Package datastore persists the decision record of every trading cycle.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/krw-btc-cycle-bot/internal/config"
)

// Record is one side of one cycle: what was decided, what happened, and the
// account and market state it was decided on.
type Record struct {
	ID              int64           `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	CycleID         string          `json:"cycle_id"`
	Pair            string          `json:"pair"`
	Decision        string          `json:"decision"`
	Percentage      int             `json:"percentage"`
	Status          string          `json:"status"`
	Reason          string          `json:"reason"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	QuoteBalance    decimal.Decimal `json:"quote_balance"`
	BaseBalance     decimal.Decimal `json:"base_balance"`
	BaseAvgBuyPrice decimal.Decimal `json:"base_avg_buy_price"`
	Price           decimal.Decimal `json:"price"`
	OrderID         string          `json:"order_id,omitempty"`
}

// Repository stores decision records.
type Repository interface {
	// SaveDecisions writes the records of one cycle atomically.
	SaveDecisions(ctx context.Context, records []Record) error
	// ListSince returns records with Timestamp at or after since, newest first.
	ListSince(ctx context.Context, since time.Time) ([]Record, error)
	Close() error
}

// Open creates the repository selected by cfg and brings its schema up to date.
func Open(ctx context.Context, cfg config.HistoryConf, logger *zap.Logger) (Repository, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		repo, err := OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := OpenPostgres(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverMemory:
		logger.Info("Using in-memory decision history; records are lost on restart.")
		return NewInMemRepository(), nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}
