package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// sqliteTimeLayout is fixed width so that text comparison orders timestamps.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository stores records in a local SQLite file. Decimals are kept as
// TEXT so no precision is lost.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite %s: %w", path, err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sqlite migration driver: %w", err)
	}
	// The migrate instance is not closed here: closing it would close db.
	if _, err := migrateUp("sqlite", drv, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Opened sqlite decision history", zap.String("path", path))
	return &SQLiteRepository{db: db, logger: logger}, nil
}

// SaveDecisions implements Repository.
func (r *SQLiteRepository) SaveDecisions(ctx context.Context, records []Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (
			timestamp, cycle_id, pair, decision, percentage, status, reason,
			requested_amount, quote_balance, base_balance, base_avg_buy_price, price, order_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.Timestamp.UTC().Format(sqliteTimeLayout), rec.CycleID, rec.Pair, rec.Decision, rec.Percentage,
			rec.Status, rec.Reason, rec.RequestedAmount.String(), rec.QuoteBalance.String(),
			rec.BaseBalance.String(), rec.BaseAvgBuyPrice.String(), rec.Price.String(), rec.OrderID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s record for cycle %s: %w", rec.Decision, rec.CycleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit decision records: %w", err)
	}
	r.logger.Debug("Saved decision records", zap.Int("count", len(records)))
	return nil
}

// ListSince implements Repository.
func (r *SQLiteRepository) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, cycle_id, pair, decision, percentage, status, reason,
			requested_amount, quote_balance, base_balance, base_avg_buy_price, price, order_id
		FROM trades
		WHERE timestamp >= ?
		ORDER BY timestamp DESC, id DESC`, since.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var ts, requested, quote, base, avg, price string
		if err := rows.Scan(&rec.ID, &ts, &rec.CycleID, &rec.Pair, &rec.Decision, &rec.Percentage,
			&rec.Status, &rec.Reason, &requested, &quote, &base, &avg, &price, &rec.OrderID); err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		if rec.Timestamp, err = time.Parse(sqliteTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q in record %d: %w", ts, rec.ID, err)
		}
		for _, f := range []struct {
			dst *decimal.Decimal
			src string
		}{
			{&rec.RequestedAmount, requested},
			{&rec.QuoteBalance, quote},
			{&rec.BaseBalance, base},
			{&rec.BaseAvgBuyPrice, avg},
			{&rec.Price, price},
		} {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("bad decimal %q in record %d: %w", f.src, rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
