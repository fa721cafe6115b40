// Package sizing decides how much to buy and sell in a cycle.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
)

// Sizing holds the order amounts for one cycle.
// BuyQuoteAmount is denominated in the quote currency, SellBaseQuantity in the base currency.
type Sizing struct {
	BuyQuoteAmount   decimal.Decimal
	SellBaseQuantity decimal.Decimal
}

// Policy maps an account state to order amounts. Implementations must be pure.
type Policy interface {
	Size(state account.State) Sizing
}

// DefaultFraction is the share of each balance traded per cycle.
var DefaultFraction = decimal.RequireFromString("0.2")

// FixedFraction trades a fixed share of each balance every cycle.
type FixedFraction struct {
	BuyFraction  decimal.Decimal
	SellFraction decimal.Decimal
}

// NewFixedFraction returns the 20%/20% policy.
func NewFixedFraction() FixedFraction {
	return FixedFraction{BuyFraction: DefaultFraction, SellFraction: DefaultFraction}
}

// Size implements Policy.
func (f FixedFraction) Size(state account.State) Sizing {
	return Sizing{
		BuyQuoteAmount:   state.QuoteBalance.Mul(f.BuyFraction),
		SellBaseQuantity: state.BaseBalance.Mul(f.SellFraction),
	}
}

// Func adapts a plain function to Policy.
type Func func(state account.State) Sizing

// Size implements Policy.
func (fn Func) Size(state account.State) Sizing {
	return fn(state)
}
