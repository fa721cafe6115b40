// Package main prints the persisted decision history as a table or CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/your-org/krw-btc-cycle-bot/internal/config"
	"github.com/your-org/krw-btc-cycle-bot/internal/datastore"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	days := flag.Int("days", 7, "Number of days of history to print")
	format := flag.String("format", "table", "Output format: table or csv")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// If config fails to load, we can't even start the logger properly.
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *days < 1 {
		log.Fatalf("-days must be at least 1, got %d", *days)
	}

	// --- Logger Setup ---
	// Only warnings and errors, so the report stays readable.
	l := logger.NewLogger(logger.Options{Level: "warn", Output: cfg.Log.Output, File: cfg.Log.File})
	defer logger.Sync()

	ctx := context.Background()
	repo, err := datastore.Open(ctx, cfg.History, logger.Zap())
	if err != nil {
		l.Fatalf("Failed to open history store: %v", err)
	}
	defer repo.Close()

	since := time.Now().AddDate(0, 0, -*days)
	records, err := repo.ListSince(ctx, since)
	if err != nil {
		l.Fatalf("Failed to list decision history: %v", err)
	}

	if err := render(os.Stdout, records, *format, cfg.QuoteCurrency, cfg.BaseCurrency); err != nil {
		l.Fatalf("Failed to render history: %v", err)
	}
}

// render writes records to w in the given format ("table" or "csv").
func render(w io.Writer, records []datastore.Record, format, quote, base string) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{
		"Time", "Cycle", "Decision", "%", "Status", "Requested",
		quote, base, "Avg Buy", "Price", "Order ID", "Reason",
	})

	for _, r := range records {
		t.AppendRow(table.Row{
			r.Timestamp.UTC().Format(time.RFC3339),
			shortID(r.CycleID),
			r.Decision,
			r.Percentage,
			r.Status,
			r.RequestedAmount.String(),
			r.QuoteBalance.String(),
			r.BaseBalance.String(),
			r.BaseAvgBuyPrice.String(),
			r.Price.String(),
			r.OrderID,
			r.Reason,
		})
	}

	switch format {
	case "table":
		t.SetStyle(table.StyleLight)
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 6, Align: text.AlignRight},
			{Number: 10, Align: text.AlignRight},
		})
		t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "", "", "Records", len(records)})
		t.Render()
	case "csv":
		t.RenderCSV()
	default:
		return fmt.Errorf("unknown format %q: use table or csv", format)
	}
	return nil
}

// shortID keeps the first block of a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
