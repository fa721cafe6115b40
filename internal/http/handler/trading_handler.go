package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/your-org/krw-btc-cycle-bot/internal/cycle"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

// LoopController starts and stops the trading loop.
type LoopController interface {
	Toggle(ctx context.Context) bool
	IsActive() bool
}

// CycleRunner runs a cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger cycle.Trigger) (*cycle.Report, error)
	LastReport() *cycle.Report
}

// TradingHandler serves the trading control endpoints.
type TradingHandler struct {
	// baseCtx outlives requests; the loop started by a toggle runs under it.
	baseCtx context.Context
	loop    LoopController
	runner  CycleRunner
}

// NewTradingHandler creates a new TradingHandler.
func NewTradingHandler(baseCtx context.Context, loop LoopController, runner CycleRunner) *TradingHandler {
	return &TradingHandler{baseCtx: baseCtx, loop: loop, runner: runner}
}

// RegisterRoutes registers the status and manual cycle routes on a chi router.
// ToggleTrading is mounted separately since it must not be cut off by a
// request timeout.
func (h *TradingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/trading-status", h.GetTradingStatus)
	r.Post("/run-cycle", h.RunCycle)
}

type statusResponse struct {
	Status     string        `json:"status"`
	LastReport *cycle.Report `json:"last_report,omitempty"`
}

func statusName(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// ToggleTrading flips the loop between active and inactive.
func (h *TradingHandler) ToggleTrading(w http.ResponseWriter, r *http.Request) {
	active := h.loop.Toggle(h.baseCtx)
	logger.Infof("Trading toggled via API: %s", statusName(active))
	writeJSON(w, http.StatusOK, statusResponse{Status: statusName(active)})
}

// GetTradingStatus returns the loop state and the last cycle report.
func (h *TradingHandler) GetTradingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     statusName(h.loop.IsActive()),
		LastReport: h.runner.LastReport(),
	})
}

// RunCycle runs one cycle now. It waits for a cycle already in progress.
func (h *TradingHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.RunCycle(r.Context(), cycle.TriggerManual)
	if err != nil {
		var failure *cycle.Failure
		if !errors.As(err, &failure) {
			writeError(w, http.StatusServiceUnavailable, "cycle did not start: "+err.Error())
			return
		}
		logger.Errorf("Manual cycle failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
