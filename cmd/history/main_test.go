package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/krw-btc-cycle-bot/internal/datastore"
)

func sampleRecords() []datastore.Record {
	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	base := datastore.Record{
		Timestamp:    ts,
		CycleID:      "0f8fad5b-d9cb-469f-a165-70867728950e",
		Pair:         "KRW-BTC",
		QuoteBalance: decimal.RequireFromString("100000"),
		BaseBalance:  decimal.RequireFromString("0.01"),
		Price:        decimal.RequireFromString("50000000"),
	}
	buy := base
	buy.ID, buy.Decision, buy.Percentage, buy.Status = 1, "buy", 20, "submitted"
	buy.RequestedAmount = decimal.RequireFromString("20000")
	buy.OrderID = "order-1"
	buy.Reason = "market buy of 20000 KRW"

	sell := base
	sell.ID, sell.Decision, sell.Percentage, sell.Status = 2, "sell", 20, "skipped_below_minimum"
	sell.RequestedAmount = decimal.RequireFromString("0.00001")
	sell.Reason = "below minimum order value"
	return []datastore.Record{sell, buy}
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, sampleRecords(), "csv", "KRW", "BTC"))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(h)
	}
	assert.Equal(t, []string{
		"time", "cycle", "decision", "%", "status", "requested",
		"krw", "btc", "avg buy", "price", "order id", "reason",
	}, header)
	assert.Equal(t, "sell", rows[1][2])
	assert.Equal(t, "0.00001", rows[1][5])
	assert.Equal(t, "0f8fad5b", rows[2][1])
	assert.Equal(t, "order-1", rows[2][10])
	assert.Equal(t, "2024-06-01T08:00:00Z", rows[2][0])
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, sampleRecords(), "table", "KRW", "BTC"))

	out := buf.String()
	assert.Contains(t, out, "skipped_below_minimum")
	assert.Contains(t, out, "market buy of 20000 KRW")
	assert.Contains(t, out, "50000000")
	assert.Contains(t, strings.ToUpper(out), "RECORDS")
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := render(&buf, nil, "xml", "KRW", "BTC")
	assert.ErrorContains(t, err, "unknown format")
	assert.Empty(t, buf.String())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0f8fad5b", shortID("0f8fad5b-d9cb-469f-a165-70867728950e"))
}
