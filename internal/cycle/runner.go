package cycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
	"github.com/your-org/krw-btc-cycle-bot/internal/alert"
	"github.com/your-org/krw-btc-cycle-bot/internal/datastore"
	"github.com/your-org/krw-btc-cycle-bot/internal/engine"
	"github.com/your-org/krw-btc-cycle-bot/internal/market"
	"github.com/your-org/krw-btc-cycle-bot/internal/sizing"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

// MarketReader yields the snapshot a cycle trades against.
type MarketReader interface {
	FetchSnapshot(ctx context.Context) (market.Snapshot, error)
}

// AccountReader yields the account state a cycle sizes from.
type AccountReader interface {
	FetchBalances(ctx context.Context) (account.State, error)
}

// OrderExecutor places both sides of a cycle and reports the outcome of each.
type OrderExecutor interface {
	Execute(ctx context.Context, s sizing.Sizing, currentPrice decimal.Decimal) (buy, sell engine.Result)
}

// HistoryWriter persists decision records.
type HistoryWriter interface {
	SaveDecisions(ctx context.Context, records []datastore.Record) error
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Pair     string
	Quote    string
	Base     string
	Market   MarketReader
	Account  AccountReader
	Policy   sizing.Policy
	Executor OrderExecutor
	History  HistoryWriter
	Notifier alert.Notifier
	Sinks    []Sink
}

// Runner executes cycles one at a time. It is the only code path that places
// orders; both the scheduler loop and manual triggers go through RunCycle.
type Runner struct {
	deps Deps
	sem  chan struct{}
	now  func() time.Time

	lastMu sync.RWMutex
	last   *Report
}

// NewRunner creates a Runner. Nil Notifier and History are replaced with no-ops.
func NewRunner(deps Deps) *Runner {
	if deps.Notifier == nil {
		deps.Notifier = alert.NewNoOpNotifier()
	}
	if deps.History == nil {
		deps.History = datastore.NewInMemRepository()
	}
	return &Runner{
		deps: deps,
		sem:  make(chan struct{}, 1),
		now:  time.Now,
	}
}

// LastReport returns the most recent finished report, or nil before the first cycle.
func (r *Runner) LastReport() *Report {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

// RunCycle runs one cycle. ctx only bounds the wait for a cycle already in
// progress; once this cycle starts it runs to completion on a context detached
// from ctx's cancellation, so an order in flight is never abandoned.
// A returned error is a *Failure, or ctx.Err() if ctx ended while waiting.
func (r *Runner) RunCycle(ctx context.Context, trigger Trigger) (*Report, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: r.now().UTC(),
		Pair:      r.deps.Pair,
	}
	err := r.execute(context.WithoutCancel(ctx), report)
	report.FinishedAt = r.now().UTC()
	if err != nil {
		report.Error = err.Error()
	}

	r.lastMu.Lock()
	r.last = report
	r.lastMu.Unlock()
	for _, s := range r.deps.Sinks {
		s.Publish(*report)
	}

	return report, err
}

func (r *Runner) execute(ctx context.Context, report *Report) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("Recovered panic in cycle %s: %v\n%s", report.ID, p, debug.Stack())
			err = &Failure{CycleID: report.ID, Stage: "panic", Err: fmt.Errorf("%v", p)}
		}
	}()

	logger.Infof("Executing trading cycle %s (%s)...", report.ID, report.Trigger)

	state, err := r.deps.Account.FetchBalances(ctx)
	if err != nil {
		return &Failure{CycleID: report.ID, Stage: "balances", Err: err}
	}
	report.QuoteBalance = state.QuoteBalance
	report.BaseBalance = state.BaseBalance

	snap, err := r.deps.Market.FetchSnapshot(ctx)
	if err != nil {
		return &Failure{CycleID: report.ID, Stage: "market", Err: err}
	}
	report.Price = snap.CurrentPrice
	report.DailyChange = snap.DailyChange()

	sz := r.deps.Policy.Size(state)
	report.BuyQuoteAmount = sz.BuyQuoteAmount
	report.SellBaseQuantity = sz.SellBaseQuantity

	buy, sell := r.deps.Executor.Execute(ctx, sz, snap.CurrentPrice)
	report.Buy, report.Sell = &buy, &sell
	logger.Infof("Cycle %s done: buy=%s sell=%s", report.ID, buy.Status, sell.Status)

	for _, res := range []engine.Result{buy, sell} {
		if res.Status == engine.StatusFailed {
			r.alert(fmt.Sprintf("cycle %s: %s order of %s failed: %s", report.ID, res.Side, res.RequestedAmount, res.Error))
		}
	}

	// History is written after the orders. A write failure is reported but does
	// not fail the cycle, which would otherwise retry and place the orders again.
	records := r.records(report, state, snap)
	if err := r.deps.History.SaveDecisions(ctx, records); err != nil {
		logger.Errorf("Failed to save decision records for cycle %s: %v", report.ID, err)
		r.alert(fmt.Sprintf("cycle %s: failed to save decision history: %v", report.ID, err))
	}
	return nil
}

func (r *Runner) records(report *Report, state account.State, snap market.Snapshot) []datastore.Record {
	base := datastore.Record{
		Timestamp:       report.StartedAt,
		CycleID:         report.ID,
		Pair:            r.deps.Pair,
		QuoteBalance:    state.QuoteBalance,
		BaseBalance:     state.BaseBalance,
		BaseAvgBuyPrice: state.BaseAvgBuyPrice,
		Price:           snap.CurrentPrice,
	}

	buy := base
	buy.Decision = string(engine.SideBuy)
	buy.Percentage = percentOf(report.Buy.RequestedAmount, state.QuoteBalance)
	buy.Status = string(report.Buy.Status)
	buy.RequestedAmount = report.Buy.RequestedAmount
	buy.OrderID = report.Buy.OrderID
	buy.Reason = reason(*report.Buy, r.deps.Quote)

	sell := base
	sell.Decision = string(engine.SideSell)
	sell.Percentage = percentOf(report.Sell.RequestedAmount, state.BaseBalance)
	sell.Status = string(report.Sell.Status)
	sell.RequestedAmount = report.Sell.RequestedAmount
	sell.OrderID = report.Sell.OrderID
	sell.Reason = reason(*report.Sell, r.deps.Base)

	return []datastore.Record{buy, sell}
}

func (r *Runner) alert(msg string) {
	if err := r.deps.Notifier.Send(msg); err != nil {
		logger.Warnf("Failed to queue alert: %v", err)
	}
}

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole as a whole percentage, 0 when whole is zero.
func percentOf(part, whole decimal.Decimal) int {
	if !whole.IsPositive() {
		return 0
	}
	return int(part.Div(whole).Mul(hundred).Round(0).IntPart())
}

func reason(res engine.Result, currency string) string {
	switch res.Status {
	case engine.StatusSubmitted:
		return fmt.Sprintf("market %s of %s %s", res.Side, res.RequestedAmount, currency)
	case engine.StatusSkippedBelowMinimum:
		return "below minimum order value"
	default:
		return res.Error
	}
}
