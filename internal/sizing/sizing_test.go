package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
)

func TestFixedFraction_Size(t *testing.T) {
	tests := []struct {
		quote, base string
		wantBuy     string
		wantSellQty string
	}{
		{quote: "100000", base: "0.01", wantBuy: "20000", wantSellQty: "0.002"},
		{quote: "10000", base: "0.00001", wantBuy: "2000", wantSellQty: "0.000002"},
		{quote: "25000", base: "0", wantBuy: "5000", wantSellQty: "0"},
		{quote: "0", base: "1.23456789", wantBuy: "0", wantSellQty: "0.246913578"},
		{quote: "12345.67", base: "0", wantBuy: "2469.134", wantSellQty: "0"},
	}

	policy := NewFixedFraction()
	for _, tt := range tests {
		t.Run(tt.quote+"/"+tt.base, func(t *testing.T) {
			st := account.State{
				QuoteBalance: decimal.RequireFromString(tt.quote),
				BaseBalance:  decimal.RequireFromString(tt.base),
			}
			got := policy.Size(st)
			assert.True(t, got.BuyQuoteAmount.Equal(decimal.RequireFromString(tt.wantBuy)), "buy %s", got.BuyQuoteAmount)
			assert.True(t, got.SellBaseQuantity.Equal(decimal.RequireFromString(tt.wantSellQty)), "sell %s", got.SellBaseQuantity)

			// same input, same output
			assert.Equal(t, got, policy.Size(st))
		})
	}
}

func TestFunc(t *testing.T) {
	var p Policy = Func(func(st account.State) Sizing {
		return Sizing{BuyQuoteAmount: st.QuoteBalance}
	})
	got := p.Size(account.State{QuoteBalance: decimal.NewFromInt(42)})
	assert.True(t, got.BuyQuoteAmount.Equal(decimal.NewFromInt(42)))
	assert.True(t, got.SellBaseQuantity.IsZero())
}
