// Package cycle runs the fetch, size, execute and record sequence and the loop that repeats it.
package cycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/engine"
)

// Trigger says what started a cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Report summarizes one cycle. Error is set when the cycle failed before execution.
type Report struct {
	ID               string          `json:"id"`
	Trigger          Trigger         `json:"trigger"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Pair             string          `json:"pair"`
	QuoteBalance     decimal.Decimal `json:"quote_balance"`
	BaseBalance      decimal.Decimal `json:"base_balance"`
	Price            decimal.Decimal `json:"price"`
	DailyChange      decimal.Decimal `json:"daily_change"`
	BuyQuoteAmount   decimal.Decimal `json:"buy_quote_amount"`
	SellBaseQuantity decimal.Decimal `json:"sell_base_quantity"`
	Buy              *engine.Result  `json:"buy,omitempty"`
	Sell             *engine.Result  `json:"sell,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Failure is a cycle-level error: anything that stopped the cycle before its
// orders were decided. Order failures are not Failures.
type Failure struct {
	CycleID string
	Stage   string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("cycle %s failed at %s: %v", f.CycleID, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Sink receives every finished report, successful or not.
// Publish must not block.
type Sink interface {
	Publish(r Report)
}
