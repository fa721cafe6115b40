// Package account reads quote and base currency holdings from the venue.
package account

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance is one currency entry reported by the venue.
type Balance struct {
	Currency    string
	Balance     decimal.Decimal
	Locked      decimal.Decimal
	AvgBuyPrice decimal.Decimal
}

// BalanceSource lists the account's currency balances.
type BalanceSource interface {
	Balances(ctx context.Context) ([]Balance, error)
}

// State is the account snapshot for one cycle.
type State struct {
	QuoteBalance    decimal.Decimal
	BaseBalance     decimal.Decimal
	BaseAvgBuyPrice decimal.Decimal
}

// Provider maps venue balances onto the configured quote and base currencies.
type Provider struct {
	source BalanceSource
	quote  string
	base   string
}

// NewProvider creates a Provider for the given quote and base currency codes.
func NewProvider(source BalanceSource, quote, base string) *Provider {
	return &Provider{source: source, quote: quote, base: base}
}

// Currencies returns the quote and base currency codes.
func (p *Provider) Currencies() (quote, base string) {
	return p.quote, p.base
}

// FetchBalances returns the current State. A currency missing from the venue
// response means no holdings and is reported as zero.
func (p *Provider) FetchBalances(ctx context.Context) (State, error) {
	balances, err := p.source.Balances(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to fetch balances: %w", err)
	}

	var st State
	for _, b := range balances {
		if b.Balance.IsNegative() {
			return State{}, fmt.Errorf("negative %s balance %s", b.Currency, b.Balance)
		}
		switch b.Currency {
		case p.quote:
			st.QuoteBalance = b.Balance
		case p.base:
			st.BaseBalance = b.Balance
			st.BaseAvgBuyPrice = b.AvgBuyPrice
		}
	}
	return st, nil
}
