// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package indicator derives technical indicators from candle series for the dashboard.
package indicator

import (
	"github.com/markcheno/go-talib"

	"github.com/your-org/krw-btc-cycle-bot/internal/market"
)

// Window sizes used by Compute.
const (
	RSIPeriod    = 14
	BBPeriod     = 20
	BBDeviations = 2.0
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
)

// Index of the first defined value for each indicator.
const (
	rsiLookback    = RSIPeriod
	bbLookback     = BBPeriod - 1
	macdLookback   = MACDSlow - 1
	signalLookback = macdLookback + MACDSignal - 1
)

// Point is a bar with its indicators. A nil indicator means the bar does not
// have enough history for that window yet.
type Point struct {
	market.Bar
	RSI        *float64
	BBUpper    *float64
	BBMiddle   *float64
	BBLower    *float64
	MACD       *float64
	MACDSignal *float64
}

// Compute returns one Point per bar, in the same order as bars (oldest-first).
// Short series are fine; indicators whose window is not yet filled stay nil.
func Compute(bars []market.Bar) []Point {
	points := make([]Point, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		points[i].Bar = b
		closes[i] = b.Close.InexactFloat64()
	}
	n := len(closes)

	if n > rsiLookback {
		rsi := talib.Rsi(closes, RSIPeriod)
		for i := rsiLookback; i < n; i++ {
			points[i].RSI = ptr(rsi[i])
		}
	}

	if n > bbLookback {
		upper, middle, lower := talib.BBands(closes, BBPeriod, BBDeviations, BBDeviations, talib.SMA)
		for i := bbLookback; i < n; i++ {
			points[i].BBUpper = ptr(upper[i])
			points[i].BBMiddle = ptr(middle[i])
			points[i].BBLower = ptr(lower[i])
		}
	}

	if n > macdLookback {
		line := macdLine(closes)
		for i := macdLookback; i < n; i++ {
			points[i].MACD = ptr(line[i])
		}
		if n > signalLookback {
			// The signal EMA is seeded from the first defined MACD values only.
			signal := talib.Ema(line[macdLookback:], MACDSignal)
			for i := signalLookback; i < n; i++ {
				points[i].MACDSignal = ptr(signal[i-macdLookback])
			}
		}
	}

	return points
}

// macdLine returns fast EMA minus slow EMA. Values before macdLookback are
// padding and must not be read.
func macdLine(closes []float64) []float64 {
	fast := talib.Ema(closes, MACDFast)
	slow := talib.Ema(closes, MACDSlow)
	line := make([]float64, len(closes))
	for i := macdLookback; i < len(closes); i++ {
		line[i] = fast[i] - slow[i]
	}
	return line
}

func ptr(v float64) *float64 {
	return &v
}
