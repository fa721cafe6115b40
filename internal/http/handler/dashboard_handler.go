package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
	"github.com/your-org/krw-btc-cycle-bot/internal/datastore"
	"github.com/your-org/krw-btc-cycle-bot/internal/indicator"
	"github.com/your-org/krw-btc-cycle-bot/internal/market"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 365
	defaultChartLimit  = 168
	maxChartLimit      = 200
)

// MarketService provides the market data shown on the dashboard.
type MarketService interface {
	FetchSnapshot(ctx context.Context) (market.Snapshot, error)
	FetchBars(ctx context.Context, interval market.Interval, count int) ([]market.Bar, error)
}

// AccountService provides the account balances shown on the dashboard.
type AccountService interface {
	FetchBalances(ctx context.Context) (account.State, error)
}

// HistoryReader lists persisted decision records.
type HistoryReader interface {
	ListSince(ctx context.Context, since time.Time) ([]datastore.Record, error)
}

// DashboardHandler serves the read-only dashboard endpoints.
type DashboardHandler struct {
	market  MarketService
	account AccountService
	history HistoryReader
	quote   string
	base    string
	now     func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler. quote and base are the
// currency codes used as keys of the balances response.
func NewDashboardHandler(m MarketService, a AccountService, h HistoryReader, quote, base string) *DashboardHandler {
	return &DashboardHandler{
		market:  m,
		account: a,
		history: h,
		quote:   quote,
		base:    base,
		now:     time.Now,
	}
}

// RegisterRoutes registers the dashboard routes on a chi router.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/market-data", h.GetMarketData)
	r.Get("/account-balances", h.GetAccountBalances)
	r.Get("/trading-history", h.GetTradingHistory)
	r.Get("/chart-data", h.GetChartData)
}

type marketDataResponse struct {
	CurrentPrice float64 `json:"current_price"`
	DailyChange  float64 `json:"daily_change"`
	Volume       float64 `json:"volume"`
	Timestamp    string  `json:"timestamp"`
}

// GetMarketData returns the current price, daily change and 24h volume.
func (h *DashboardHandler) GetMarketData(w http.ResponseWriter, r *http.Request) {
	snap, err := h.market.FetchSnapshot(r.Context())
	if err != nil {
		logger.Errorf("Failed to fetch market data: %v", err)
		if errors.Is(err, market.ErrDataUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "unexpected error while fetching market data")
		return
	}

	writeJSON(w, http.StatusOK, marketDataResponse{
		CurrentPrice: snap.CurrentPrice.InexactFloat64(),
		DailyChange:  snap.DailyChange().InexactFloat64(),
		Volume:       snap.Volume24h.InexactFloat64(),
		Timestamp:    snap.Timestamp.Format(time.RFC3339Nano),
	})
}

// GetAccountBalances returns the quote and base balances keyed by currency.
func (h *DashboardHandler) GetAccountBalances(w http.ResponseWriter, r *http.Request) {
	state, err := h.account.FetchBalances(r.Context())
	if err != nil {
		logger.Errorf("Failed to fetch account balances: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to fetch account balances: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		h.quote: state.QuoteBalance.InexactFloat64(),
		h.base:  state.BaseBalance.InexactFloat64(),
	})
}

type historyEntry struct {
	ID              int64   `json:"id"`
	Timestamp       string  `json:"timestamp"`
	CycleID         string  `json:"cycle_id"`
	Pair            string  `json:"pair"`
	Decision        string  `json:"decision"`
	Percentage      int     `json:"percentage"`
	Status          string  `json:"status"`
	Reason          string  `json:"reason"`
	RequestedAmount float64 `json:"requested_amount"`
	QuoteBalance    float64 `json:"quote_balance"`
	BaseBalance     float64 `json:"base_balance"`
	BaseAvgBuyPrice float64 `json:"base_avg_buy_price"`
	Price           float64 `json:"price"`
	OrderID         string  `json:"order_id,omitempty"`
}

// GetTradingHistory returns decision records of the last `days` days, newest first.
func (h *DashboardHandler) GetTradingHistory(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultHistoryDays, 1, maxHistoryDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since := h.now().AddDate(0, 0, -days)
	records, err := h.history.ListSince(r.Context(), since)
	if err != nil {
		logger.Errorf("Failed to list trading history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trading history")
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:              rec.ID,
			Timestamp:       rec.Timestamp.UTC().Format(time.RFC3339Nano),
			CycleID:         rec.CycleID,
			Pair:            rec.Pair,
			Decision:        rec.Decision,
			Percentage:      rec.Percentage,
			Status:          rec.Status,
			Reason:          rec.Reason,
			RequestedAmount: rec.RequestedAmount.InexactFloat64(),
			QuoteBalance:    rec.QuoteBalance.InexactFloat64(),
			BaseBalance:     rec.BaseBalance.InexactFloat64(),
			BaseAvgBuyPrice: rec.BaseAvgBuyPrice.InexactFloat64(),
			Price:           rec.Price.InexactFloat64(),
			OrderID:         rec.OrderID,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

type chartPoint struct {
	Timestamp  string   `json:"timestamp"`
	Open       float64  `json:"open"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	Close      float64  `json:"close"`
	Volume     float64  `json:"volume"`
	RSI        *float64 `json:"RSI"`
	BBUpper    *float64 `json:"BB_upper"`
	BBMiddle   *float64 `json:"BB_middle"`
	BBLower    *float64 `json:"BB_lower"`
	MACD       *float64 `json:"MACD"`
	MACDSignal *float64 `json:"MACD_signal"`
}

// GetChartData returns bars of the requested timeframe with RSI, Bollinger and
// MACD values. Indicators without enough history are null.
func (h *DashboardHandler) GetChartData(w http.ResponseWriter, r *http.Request) {
	tf := r.URL.Query().Get("timeframe")
	if tf == "" {
		tf = string(market.Hour)
	}
	interval, err := market.ParseInterval(tf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", defaultChartLimit, 1, maxChartLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := h.market.FetchBars(r.Context(), interval, limit)
	if err != nil {
		logger.Errorf("Failed to fetch chart data: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrDataUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, fmt.Sprintf("error fetching chart data: %v", err))
		return
	}

	points := indicator.Compute(bars)
	out := make([]chartPoint, len(points))
	for i, p := range points {
		out[i] = chartPoint{
			Timestamp:  p.Timestamp.UTC().Format(time.RFC3339),
			Open:       p.Open.InexactFloat64(),
			High:       p.High.InexactFloat64(),
			Low:        p.Low.InexactFloat64(),
			Close:      p.Close.InexactFloat64(),
			Volume:     p.Volume.InexactFloat64(),
			RSI:        p.RSI,
			BBUpper:    p.BBUpper,
			BBMiddle:   p.BBMiddle,
			BBLower:    p.BBLower,
			MACD:       p.MACD,
			MACDSignal: p.MACDSignal,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return v, nil
}
