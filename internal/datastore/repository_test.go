package datastore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/krw-btc-cycle-bot/internal/config"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func sampleRecords(ts time.Time, cycleID string) []Record {
	return []Record{
		{
			Timestamp:       ts,
			CycleID:         cycleID,
			Pair:            "KRW-BTC",
			Decision:        "buy",
			Percentage:      20,
			Status:          "submitted",
			Reason:          "fixed fraction",
			RequestedAmount: decimal.RequireFromString("20000"),
			QuoteBalance:    decimal.RequireFromString("100000"),
			BaseBalance:     decimal.RequireFromString("0.01"),
			BaseAvgBuyPrice: decimal.RequireFromString("48000000"),
			Price:           decimal.RequireFromString("50000000"),
			OrderID:         "b-1",
		},
		{
			Timestamp:       ts,
			CycleID:         cycleID,
			Pair:            "KRW-BTC",
			Decision:        "sell",
			Percentage:      20,
			Status:          "skipped_below_minimum",
			Reason:          "sell value 100 is below the minimum order value 5000",
			RequestedAmount: decimal.RequireFromString("0.00000200"),
			QuoteBalance:    decimal.RequireFromString("100000"),
			BaseBalance:     decimal.RequireFromString("0.00001"),
			BaseAvgBuyPrice: decimal.Zero,
			Price:           decimal.RequireFromString("50000000"),
		},
	}
}

// exerciseRepository runs the same contract checks against any Repository.
func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	old := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)

	require.NoError(t, repo.SaveDecisions(ctx, sampleRecords(old, "c-old")))
	require.NoError(t, repo.SaveDecisions(ctx, sampleRecords(recent, "c-new")))

	got, err := repo.ListSince(ctx, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// newest first; within a cycle the later insert comes first
	assert.Equal(t, "sell", got[0].Decision)
	assert.Equal(t, "buy", got[1].Decision)

	want := sampleRecords(recent, "c-new")
	for i := range got {
		assert.NotZero(t, got[i].ID)
		got[i].ID = 0
		got[i].Timestamp = got[i].Timestamp.UTC()
	}
	if diff := cmp.Diff([]Record{want[1], want[0]}, got, decimalComparer); diff != "" {
		t.Errorf("ListSince mismatch (-want +got):\n%s", diff)
	}

	all, err := repo.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := repo.ListSince(ctx, recent.Add(time.Second))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestInMemRepository(t *testing.T) {
	repo := NewInMemRepository()
	exerciseRepository(t, repo)

	repo.FailWith(errors.New("disk full"))
	assert.EqualError(t, repo.SaveDecisions(context.Background(), sampleRecords(time.Now(), "x")), "disk full")

	require.NoError(t, repo.Close())
	repo.FailWith(nil)
	assert.Error(t, repo.SaveDecisions(context.Background(), nil))
}

func TestSQLiteRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	repo, err := OpenSQLite(context.Background(), path, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	repo, err := OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repo.SaveDecisions(ctx, sampleRecords(time.Now(), "c-1")))
	require.NoError(t, repo.Close())

	// migrations run again on an up-to-date schema without error
	repo, err = OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.ListSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteRepository_InMemoryDatabase(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, config.HistoryConf{Driver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &InMemRepository{}, repo)

	repo, err = Open(ctx, config.HistoryConf{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "h.db")}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	_, err = Open(ctx, config.HistoryConf{Driver: "mongo"}, zap.NewNop())
	assert.EqualError(t, err, `unknown history driver "mongo"`)
}
