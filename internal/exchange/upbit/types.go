package upbit

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ticker is an entry of GET /v1/ticker.
type Ticker struct {
	Market            string          `json:"market"`
	TradePrice        decimal.Decimal `json:"trade_price"`
	PrevClosingPrice  decimal.Decimal `json:"prev_closing_price"`
	AccTradeVolume24h decimal.Decimal `json:"acc_trade_volume_24h"`
	Timestamp         int64           `json:"timestamp"`
}

// Candle is an entry of the /v1/candles endpoints. Upbit returns them newest-first.
type Candle struct {
	Market               string          `json:"market"`
	CandleDateTimeUTC    string          `json:"candle_date_time_utc"`
	OpeningPrice         decimal.Decimal `json:"opening_price"`
	HighPrice            decimal.Decimal `json:"high_price"`
	LowPrice             decimal.Decimal `json:"low_price"`
	TradePrice           decimal.Decimal `json:"trade_price"`
	CandleAccTradeVolume decimal.Decimal `json:"candle_acc_trade_volume"`
}

// Account is an entry of GET /v1/accounts.
type Account struct {
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Locked       decimal.Decimal `json:"locked"`
	AvgBuyPrice  decimal.Decimal `json:"avg_buy_price"`
	UnitCurrency string          `json:"unit_currency"`
}

// OrderResponse is the body returned by POST /v1/orders.
type OrderResponse struct {
	UUID      string          `json:"uuid"`
	Side      string          `json:"side"`
	OrdType   string          `json:"ord_type"`
	Price     decimal.Decimal `json:"price"`
	Volume    decimal.Decimal `json:"volume"`
	State     string          `json:"state"`
	Market    string          `json:"market"`
	CreatedAt string          `json:"created_at"`
}

// APIError is the error envelope Upbit returns with 4xx/5xx responses.
type APIError struct {
	StatusCode int `json:"-"`
	Body       struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	if e.Body.Name == "" && e.Body.Message == "" {
		return fmt.Sprintf("upbit: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("upbit: HTTP %d: %s: %s", e.StatusCode, e.Body.Name, e.Body.Message)
}
