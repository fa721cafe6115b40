// Package position tracks a spot holding: size, average entry price and realized PnL.
package position

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// pricePlaces is the precision of the average entry price (whole KRW).
const pricePlaces = 0

// Position holds the state of a trading position.
type Position struct {
	size          decimal.Decimal
	avgEntryPrice decimal.Decimal
	realizedPnL   decimal.Decimal
	mutex         sync.RWMutex
}

// NewPosition creates a Position already holding size at avgEntryPrice.
func NewPosition(size, avgEntryPrice decimal.Decimal) *Position {
	if size.IsZero() {
		avgEntryPrice = decimal.Zero
	}
	return &Position{size: size, avgEntryPrice: avgEntryPrice}
}

// Update applies a fill of tradeSize (positive buys, negative sells) at
// tradePrice and returns the PnL it realized.
func (p *Position) Update(tradeSize, tradePrice decimal.Decimal) decimal.Decimal {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if tradeSize.IsZero() {
		return decimal.Zero
	}

	// If there is no existing position, the trade simply opens a new one.
	if p.size.IsZero() {
		p.size = tradeSize
		p.avgEntryPrice = tradePrice
		return decimal.Zero
	}

	// Same direction: add to the position at a weighted average price.
	if p.size.Sign() == tradeSize.Sign() {
		held := p.size.Mul(p.avgEntryPrice)
		newSize := p.size.Add(tradeSize)
		p.avgEntryPrice = held.Add(tradeSize.Mul(tradePrice)).DivRound(newSize, pricePlaces)
		p.size = newSize
		return decimal.Zero
	}

	// Opposite direction: close up to the held size.
	closedSize := decimal.Min(tradeSize.Abs(), p.size.Abs())
	realized := tradePrice.Sub(p.avgEntryPrice).Mul(closedSize)
	if p.size.IsNegative() {
		realized = realized.Neg()
	}
	p.realizedPnL = p.realizedPnL.Add(realized)

	newSize := p.size.Add(tradeSize)
	switch {
	case newSize.IsZero():
		p.avgEntryPrice = decimal.Zero
	case newSize.Sign() != p.size.Sign():
		// Flipped through zero: the remainder opens at the trade price.
		p.avgEntryPrice = tradePrice
	}
	p.size = newSize
	return realized
}

// Get returns the current size and average entry price of the position.
func (p *Position) Get() (size, avgEntryPrice decimal.Decimal) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.size, p.avgEntryPrice
}

// RealizedPnL returns the PnL realized by all closing fills so far.
func (p *Position) RealizedPnL() decimal.Decimal {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.realizedPnL
}

// UnrealizedPnL values the open position at currentPrice.
func (p *Position) UnrealizedPnL(currentPrice decimal.Decimal) decimal.Decimal {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.size.IsZero() {
		return decimal.Zero
	}
	return currentPrice.Sub(p.avgEntryPrice).Mul(p.size)
}

// String returns a string representation of the position.
func (p *Position) String() string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return fmt.Sprintf("Position{Size: %s, AvgEntryPrice: %s, RealizedPnL: %s}", p.size, p.avgEntryPrice, p.realizedPnL)
}
