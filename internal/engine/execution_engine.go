// Package engine places the orders a cycle decided on.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/sizing"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

// ErrOrderRejected marks an order the venue refused.
var ErrOrderRejected = errors.New("order rejected")

// DefaultMinOrderValue is Upbit's minimum KRW order value.
var DefaultMinOrderValue = decimal.NewFromInt(5000)

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Status is the outcome of one side of a cycle.
type Status string

const (
	StatusSubmitted           Status = "submitted"
	StatusSkippedBelowMinimum Status = "skipped_below_minimum"
	StatusFailed              Status = "failed"
)

// Result reports what happened to one side. RequestedAmount is a quote amount
// for buys and a base quantity for sells.
type Result struct {
	Side            Side            `json:"side"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Status          Status          `json:"status"`
	Error           string          `json:"error,omitempty"`
	OrderID         string          `json:"order_id,omitempty"`
}

// Receipt is the venue's acknowledgement of a submitted order.
type Receipt struct {
	OrderID string
	State   string
}

// Venue submits market orders.
type Venue interface {
	SubmitMarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (*Receipt, error)
	SubmitMarketSell(ctx context.Context, pair string, baseQuantity decimal.Decimal) (*Receipt, error)
}

// Executor applies the minimum-order rule and submits both sides independently.
// Venue failures are reported in the Result and never returned.
type Executor struct {
	venue         Venue
	pair          string
	minOrderValue decimal.Decimal
	tag           string
}

// NewExecutor creates an Executor. tag prefixes log lines, e.g. "Live" or "Paper".
func NewExecutor(venue Venue, pair string, minOrderValue decimal.Decimal, tag string) *Executor {
	return &Executor{venue: venue, pair: pair, minOrderValue: minOrderValue, tag: tag}
}

// Execute places the buy then the sell described by s. The sell is valued at currentPrice
// for the minimum-order check. There is no rollback between sides.
func (e *Executor) Execute(ctx context.Context, s sizing.Sizing, currentPrice decimal.Decimal) (buy, sell Result) {
	buy = Result{Side: SideBuy, RequestedAmount: s.BuyQuoteAmount}
	if !s.BuyQuoteAmount.IsPositive() || s.BuyQuoteAmount.LessThan(e.minOrderValue) {
		buy.Status = StatusSkippedBelowMinimum
		logger.Infof("[%s] Buy amount %s is below the minimum order value %s, skipping.", e.tag, s.BuyQuoteAmount, e.minOrderValue)
	} else {
		e.submit(&buy, func() (*Receipt, error) {
			return e.venue.SubmitMarketBuy(ctx, e.pair, s.BuyQuoteAmount)
		})
	}

	sell = Result{Side: SideSell, RequestedAmount: s.SellBaseQuantity}
	sellValue := s.SellBaseQuantity.Mul(currentPrice)
	if !s.SellBaseQuantity.IsPositive() || sellValue.LessThan(e.minOrderValue) {
		sell.Status = StatusSkippedBelowMinimum
		logger.Infof("[%s] Sell value %s is below the minimum order value %s, skipping.", e.tag, sellValue, e.minOrderValue)
	} else {
		e.submit(&sell, func() (*Receipt, error) {
			return e.venue.SubmitMarketSell(ctx, e.pair, s.SellBaseQuantity)
		})
	}
	return buy, sell
}

func (e *Executor) submit(res *Result, place func() (*Receipt, error)) {
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("venue panic: %v", r)
			logger.Errorf("[%s] Recovered panic placing %s order: %v", e.tag, res.Side, r)
		}
	}()

	logger.Infof("[%s] Placing market %s order: pair=%s amount=%s", e.tag, res.Side, e.pair, res.RequestedAmount)
	receipt, err := place()
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		logger.Errorf("[%s] Error placing %s order: %v", e.tag, res.Side, err)
		return
	}
	res.Status = StatusSubmitted
	if receipt != nil {
		res.OrderID = receipt.OrderID
	}
	logger.Infof("[%s] %s order placed successfully: %+v", e.tag, res.Side, receipt)
}
