// Package market turns exchange quotes and candles into the snapshot the
// trading cycle and dashboard consume.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDataUnavailable is returned when the upstream source has no usable
// price or not enough bars to derive a snapshot.
var ErrDataUnavailable = errors.New("market data unavailable")

// Interval is a candle width.
type Interval string

// Supported candle intervals.
const (
	Hour     Interval = "1h"
	FourHour Interval = "4h"
	Day      Interval = "1d"
)

// ParseInterval validates a timeframe string.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Hour, FourHour, Day:
		return Interval(s), nil
	}
	return "", fmt.Errorf("invalid timeframe %q: must be one of 1h, 4h, 1d", s)
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Snapshot is the market state a cycle works from.
type Snapshot struct {
	CurrentPrice decimal.Decimal
	PrevClose    decimal.Decimal
	Volume24h    decimal.Decimal
	Timestamp    time.Time
}

var hundred = decimal.NewFromInt(100)

// DailyChange returns the percent change of the current price against the previous close.
func (s Snapshot) DailyChange() decimal.Decimal {
	if s.PrevClose.IsZero() {
		return decimal.Zero
	}
	return s.CurrentPrice.Sub(s.PrevClose).Div(s.PrevClose).Mul(hundred)
}

// Source is the upstream quote feed. Candles are returned oldest-first.
type Source interface {
	CurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error)
	Candles(ctx context.Context, pair string, interval Interval, count int) ([]Bar, error)
}

// Provider fetches snapshots for a single pair. It does not cache.
type Provider struct {
	source Source
	pair   string
	now    func() time.Time
}

// NewProvider creates a Provider for pair.
func NewProvider(source Source, pair string) *Provider {
	return &Provider{source: source, pair: pair, now: time.Now}
}

// Pair returns the market the provider reads.
func (p *Provider) Pair() string {
	return p.pair
}

// FetchSnapshot reads the current price and the two most recent daily bars.
// The previous close comes from the older of the two bars and the 24h volume
// from the newer one.
func (p *Provider) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	price, err := p.source.CurrentPrice(ctx, p.pair)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: current price for %s: %v", ErrDataUnavailable, p.pair, err)
	}
	if !price.IsPositive() {
		return Snapshot{}, fmt.Errorf("%w: no current price for %s", ErrDataUnavailable, p.pair)
	}

	bars, err := p.source.Candles(ctx, p.pair, Day, 2)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: daily candles for %s: %v", ErrDataUnavailable, p.pair, err)
	}
	if len(bars) < 2 {
		return Snapshot{}, fmt.Errorf("%w: need 2 daily bars for %s, got %d", ErrDataUnavailable, p.pair, len(bars))
	}

	prev, last := bars[len(bars)-2], bars[len(bars)-1]
	if !prev.Close.IsPositive() {
		return Snapshot{}, fmt.Errorf("%w: previous close for %s is not positive", ErrDataUnavailable, p.pair)
	}

	return Snapshot{
		CurrentPrice: price,
		PrevClose:    prev.Close,
		Volume24h:    last.Volume,
		Timestamp:    p.now().UTC(),
	}, nil
}

// FetchBars returns up to count bars of the given interval, oldest-first.
func (p *Provider) FetchBars(ctx context.Context, interval Interval, count int) ([]Bar, error) {
	bars, err := p.source.Candles(ctx, p.pair, interval, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %s candles for %s: %v", ErrDataUnavailable, interval, p.pair, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no %s candles for %s", ErrDataUnavailable, interval, p.pair)
	}
	return bars, nil
}
