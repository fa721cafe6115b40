// Package upbit handles interactions with the Upbit exchange REST API.
package upbit

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
	"github.com/your-org/krw-btc-cycle-bot/internal/engine"
	"github.com/your-org/krw-btc-cycle-bot/internal/market"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

const (
	defaultBaseURL = "https://api.upbit.com"

	// maxCandles is the largest count the candle endpoints accept.
	maxCandles = 200

	candleTimeLayout = "2006-01-02T15:04:05"
)

var candlePaths = map[market.Interval]string{
	market.Hour:     "/v1/candles/minutes/60",
	market.FourHour: "/v1/candles/minutes/240",
	market.Day:      "/v1/candles/days",
}

var (
	_ market.Source         = (*Client)(nil)
	_ account.BalanceSource = (*Client)(nil)
	_ engine.Venue          = (*Client)(nil)
)

// Client provides methods to interact with the Upbit API.
// Only GET requests are retried; order submission is never replayed.
type Client struct {
	accessKey  string
	secretKey  string
	httpClient *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server. Empty keeps the default.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.httpClient.SetBaseURL(u)
		}
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.SetTimeout(d)
		}
	}
}

// WithRetry sets how many times a failed GET is retried.
func WithRetry(count int, wait time.Duration) Option {
	return func(c *Client) {
		c.httpClient.SetRetryCount(max(count, 0)).SetRetryWaitTime(wait).SetRetryMaxWaitTime(4 * wait)
	}
}

// NewClient creates a new Upbit API client. The keys may be empty for public endpoints.
func NewClient(accessKey, secretKey string, opts ...Option) *Client {
	c := &Client{
		accessKey:  accessKey,
		secretKey:  secretKey,
		httpClient: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(10*time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500*time.Millisecond).
			SetRetryMaxWaitTime(2*time.Second).
			SetHeader("Accept", "application/json"),
	}
	c.httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
			return false
		}
		return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// token builds the HS256 bearer token. params, when present, are hashed into the claims.
func (c *Client) token(params url.Values) (string, error) {
	if c.accessKey == "" || c.secretKey == "" {
		return "", errors.New("upbit: access key and secret key are required for private endpoints")
	}
	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if len(params) > 0 {
		query, err := url.QueryUnescape(params.Encode())
		if err != nil {
			return "", fmt.Errorf("failed to build query hash: %w", err)
		}
		sum := sha512.Sum512([]byte(query))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.httpClient.R().SetContext(ctx).SetError(&APIError{})
}

func checkResponse(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode()
		return fmt.Errorf("failed to %s: %w", what, apiErr)
	}
	return nil
}

// Ticker returns the ticker for pair.
func (c *Client) Ticker(ctx context.Context, pair string) (*Ticker, error) {
	var out []Ticker
	resp, err := c.request(ctx).
		SetQueryParam("markets", pair).
		SetResult(&out).
		Get("/v1/ticker")
	if err := checkResponse(resp, err, "get ticker"); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no ticker returned for %s", pair)
	}
	return &out[0], nil
}

// CurrentPrice implements market.Source.
func (c *Client) CurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	t, err := c.Ticker(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	return t.TradePrice, nil
}

// Candles implements market.Source. Bars are returned oldest-first.
func (c *Client) Candles(ctx context.Context, pair string, interval market.Interval, count int) ([]market.Bar, error) {
	path, ok := candlePaths[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported candle interval %q", interval)
	}
	count = min(max(count, 1), maxCandles)

	var out []Candle
	resp, err := c.request(ctx).
		SetQueryParam("market", pair).
		SetQueryParam("count", fmt.Sprint(count)).
		SetResult(&out).
		Get(path)
	if err := checkResponse(resp, err, "get candles"); err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(out))
	for _, cd := range out {
		ts, err := time.ParseInLocation(candleTimeLayout, cd.CandleDateTimeUTC, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse candle time %q: %w", cd.CandleDateTimeUTC, err)
		}
		bars = append(bars, market.Bar{
			Timestamp: ts,
			Open:      cd.OpeningPrice,
			High:      cd.HighPrice,
			Low:       cd.LowPrice,
			Close:     cd.TradePrice,
			Volume:    cd.CandleAccTradeVolume,
		})
	}
	slices.Reverse(bars)
	return bars, nil
}

// Accounts returns every currency balance on the account.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	tok, err := c.token(nil)
	if err != nil {
		return nil, err
	}
	var out []Account
	resp, err := c.request(ctx).
		SetAuthToken(tok).
		SetResult(&out).
		Get("/v1/accounts")
	if err := checkResponse(resp, err, "get accounts"); err != nil {
		return nil, err
	}
	return out, nil
}

// Balances implements account.BalanceSource.
func (c *Client) Balances(ctx context.Context) ([]account.Balance, error) {
	accts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]account.Balance, 0, len(accts))
	for _, a := range accts {
		out = append(out, account.Balance{
			Currency:    a.Currency,
			Balance:     a.Balance,
			Locked:      a.Locked,
			AvgBuyPrice: a.AvgBuyPrice,
		})
	}
	return out, nil
}

// NewOrder posts an order. Rejections by the exchange wrap engine.ErrOrderRejected.
func (c *Client) NewOrder(ctx context.Context, params url.Values) (*OrderResponse, error) {
	tok, err := c.token(params)
	if err != nil {
		return nil, err
	}

	body := make(map[string]string, len(params))
	for k := range params {
		body[k] = params.Get(k)
	}

	logger.Debugf("[Live] Posting order: %v", body)
	var out OrderResponse
	resp, err := c.request(ctx).
		SetAuthToken(tok).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("failed to post order: %w", err)
	}
	if resp.IsError() {
		apiErr := checkResponse(resp, nil, "post order")
		return nil, fmt.Errorf("%w: %w", engine.ErrOrderRejected, apiErr)
	}
	return &out, nil
}

// SubmitMarketBuy implements engine.Venue. quoteAmount is spent at market price.
func (c *Client) SubmitMarketBuy(ctx context.Context, pair string, quoteAmount decimal.Decimal) (*engine.Receipt, error) {
	resp, err := c.NewOrder(ctx, url.Values{
		"market":   {pair},
		"side":     {"bid"},
		"ord_type": {"price"},
		"price":    {quoteAmount.Truncate(0).String()},
	})
	if err != nil {
		return nil, err
	}
	return &engine.Receipt{OrderID: resp.UUID, State: resp.State}, nil
}

// SubmitMarketSell implements engine.Venue. baseQuantity is sold at market price.
func (c *Client) SubmitMarketSell(ctx context.Context, pair string, baseQuantity decimal.Decimal) (*engine.Receipt, error) {
	resp, err := c.NewOrder(ctx, url.Values{
		"market":   {pair},
		"side":     {"ask"},
		"ord_type": {"market"},
		"volume":   {baseQuantity.Truncate(8).String()},
	})
	if err != nil {
		return nil, err
	}
	return &engine.Receipt{OrderID: resp.UUID, State: resp.State}, nil
}
