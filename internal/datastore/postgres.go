package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq" // database/sql driver used by the migration runner
	"go.uber.org/zap"
)

// Pool is the subset of pgxpool.Pool the repository uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresRepository stores records in PostgreSQL.
type PostgresRepository struct {
	pool   Pool
	logger *zap.Logger
}

// NewPostgresRepository wraps an existing pool. The schema must already be migrated.
func NewPostgresRepository(pool Pool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, logger: logger}
}

// OpenPostgres migrates the database at dsn and connects a pool to it.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresRepository, error) {
	if err := MigratePostgres(dsn, logger); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Connected to postgres decision history")
	return NewPostgresRepository(pool, logger), nil
}

// MigratePostgres applies the embedded postgres migrations over a short-lived lib/pq connection.
func MigratePostgres(dsn string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres for migrations: %w", err)
	}
	drv, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to init postgres migration driver: %w", err)
	}
	m, err := migrateUp("postgres", drv, logger)
	if m != nil {
		srcErr, dbErr := m.Close()
		err = errors.Join(err, srcErr, dbErr)
	}
	return err
}

// SaveDecisions implements Repository.
func (r *PostgresRepository) SaveDecisions(ctx context.Context, records []Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO trades (
			timestamp, cycle_id, pair, decision, percentage, status, reason,
			requested_amount, quote_balance, base_balance, base_avg_buy_price, price, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for _, rec := range records {
		_, err := tx.Exec(ctx, query,
			rec.Timestamp.UTC(), rec.CycleID, rec.Pair, rec.Decision, rec.Percentage, rec.Status, rec.Reason,
			rec.RequestedAmount, rec.QuoteBalance, rec.BaseBalance, rec.BaseAvgBuyPrice, rec.Price, rec.OrderID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert %s record for cycle %s: %w", rec.Decision, rec.CycleID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit decision records: %w", err)
	}
	r.logger.Debug("Saved decision records", zap.Int("count", len(records)))
	return nil
}

// ListSince implements Repository.
func (r *PostgresRepository) ListSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, timestamp, cycle_id::text, pair, decision, percentage, status, reason,
			requested_amount, quote_balance, base_balance, base_avg_buy_price, price, order_id
		FROM trades
		WHERE timestamp >= $1
		ORDER BY timestamp DESC, id DESC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.CycleID, &rec.Pair, &rec.Decision, &rec.Percentage,
			&rec.Status, &rec.Reason, &rec.RequestedAmount, &rec.QuoteBalance, &rec.BaseBalance,
			&rec.BaseAvgBuyPrice, &rec.Price, &rec.OrderID); err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
