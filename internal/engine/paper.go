package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
	"github.com/your-org/krw-btc-cycle-bot/internal/position"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

// PriceFunc returns the price a paper order fills at.
type PriceFunc func(ctx context.Context, pair string) (decimal.Decimal, error)

// PaperVenue fills market orders instantly at the live price against a simulated wallet.
// It also serves the wallet as the account's balances, so paper mode never touches
// the exchange's private API.
type PaperVenue struct {
	mu          sync.Mutex
	price       PriceFunc
	quote, base string
	feeRate     decimal.Decimal

	quoteBalance decimal.Decimal
	holding      *position.Position
}

// NewPaperVenue creates a simulated venue seeded with the given balances.
func NewPaperVenue(price PriceFunc, quote, base string, quoteBalance, baseBalance, feeRate decimal.Decimal) *PaperVenue {
	return &PaperVenue{
		price:        price,
		quote:        quote,
		base:         base,
		feeRate:      feeRate,
		quoteBalance: quoteBalance,
		// A seeded base balance has no known cost; it enters at zero.
		holding: position.NewPosition(baseBalance, decimal.Zero),
	}
}

// SubmitMarketBuy spends quoteAmount plus fee and credits the bought quantity.
func (p *PaperVenue) SubmitMarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (*Receipt, error) {
	rate, err := p.fillPrice(ctx, pair)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := quoteAmount.Add(quoteAmount.Mul(p.feeRate))
	if cost.GreaterThan(p.quoteBalance) {
		return nil, fmt.Errorf("%w: insufficient %s balance: need %s, have %s", ErrOrderRejected, p.quote, cost, p.quoteBalance)
	}
	qty := quoteAmount.DivRound(rate, 8)

	p.holding.Update(qty, rate)
	p.quoteBalance = p.quoteBalance.Sub(cost)

	id := uuid.NewString()
	logger.Infof("[Paper] Filled buy %s: %s %s at %s for %s %s", id, qty, p.base, rate, quoteAmount, p.quote)
	return &Receipt{OrderID: id, State: "done"}, nil
}

// SubmitMarketSell sells baseQuantity and credits the proceeds less fee.
func (p *PaperVenue) SubmitMarketSell(ctx context.Context, pair string, baseQuantity decimal.Decimal) (*Receipt, error) {
	rate, err := p.fillPrice(ctx, pair)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	held, _ := p.holding.Get()
	if baseQuantity.GreaterThan(held) {
		return nil, fmt.Errorf("%w: insufficient %s balance: need %s, have %s", ErrOrderRejected, p.base, baseQuantity, held)
	}
	proceeds := baseQuantity.Mul(rate)
	realized := p.holding.Update(baseQuantity.Neg(), rate)
	p.quoteBalance = p.quoteBalance.Add(proceeds.Sub(proceeds.Mul(p.feeRate)))

	id := uuid.NewString()
	logger.Infof("[Paper] Filled sell %s: %s %s at %s (realized %s %s, total %s)",
		id, baseQuantity, p.base, rate, realized, p.quote, p.holding.RealizedPnL())
	return &Receipt{OrderID: id, State: "done"}, nil
}

// Balances implements account.BalanceSource over the simulated wallet.
func (p *PaperVenue) Balances(ctx context.Context) ([]account.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	size, avg := p.holding.Get()
	return []account.Balance{
		{Currency: p.quote, Balance: p.quoteBalance},
		{Currency: p.base, Balance: size, AvgBuyPrice: avg},
	}, nil
}

func (p *PaperVenue) fillPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	rate, err := p.price(ctx, pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get fill price for %s: %w", pair, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no fill price for %s", ErrOrderRejected, pair)
	}
	return rate, nil
}
