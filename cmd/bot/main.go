// Package main is the entry point of the KRW-BTC cycle bot: HTTP API plus the trading loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/krw-btc-cycle-bot/internal/account"
	"github.com/your-org/krw-btc-cycle-bot/internal/alert"
	"github.com/your-org/krw-btc-cycle-bot/internal/config"
	"github.com/your-org/krw-btc-cycle-bot/internal/cycle"
	"github.com/your-org/krw-btc-cycle-bot/internal/datastore"
	"github.com/your-org/krw-btc-cycle-bot/internal/engine"
	"github.com/your-org/krw-btc-cycle-bot/internal/exchange/upbit"
	"github.com/your-org/krw-btc-cycle-bot/internal/http/handler"
	"github.com/your-org/krw-btc-cycle-bot/internal/market"
	"github.com/your-org/krw-btc-cycle-bot/internal/sizing"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

func main() {
	// --- Configuration ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger.NewLogger(logger.Options{
		Level:      cfg.Log.Level,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	defer logger.Sync()
	logger.Info("KRW-BTC cycle bot starting...")
	logger.Infof("Loaded configuration from: %s", *configPath)
	logger.Infof("Target pair: %s, mode: %s", cfg.Pair, cfg.Mode)

	// Reports on the websocket stream carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// --- History store (schema is migrated before serving) ---
	repo, err := datastore.Open(ctx, cfg.History, logger.Zap())
	if err != nil {
		logger.Fatalf("Failed to open history store: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Errorf("Failed to close history store: %v", err)
		}
	}()
	logger.Infof("History store ready (driver=%s).", cfg.History.Driver)

	// --- Alerts ---
	var notifier alert.Notifier = alert.NewNoOpNotifier()
	if cfg.Alert.WebhookURL != "" {
		wh, err := alert.NewWebhookNotifier(cfg.Alert.WebhookURL, cfg.Alert.BufferInterval, logger.Zap())
		if err != nil {
			logger.Fatalf("Failed to initialize webhook notifier: %v", err)
		}
		notifier = wh
		logger.Info("Webhook alerts enabled.")
	}
	defer notifier.Close()

	// --- Venue ---
	client := upbit.NewClient(cfg.AccessKey, cfg.SecretKey,
		upbit.WithBaseURL(cfg.Exchange.BaseURL),
		upbit.WithTimeout(cfg.Exchange.Timeout),
		upbit.WithRetry(cfg.Exchange.RetryCount, 500*time.Millisecond),
	)

	var (
		venue    engine.Venue
		balances account.BalanceSource
	)
	switch cfg.Mode {
	case config.ModeLive:
		venue, balances = client, client
		logger.Warn("LIVE mode: orders are sent to the exchange.")
	default:
		paper := engine.NewPaperVenue(client.CurrentPrice, cfg.QuoteCurrency, cfg.BaseCurrency,
			cfg.Paper.QuoteBalance, cfg.Paper.BaseBalance, cfg.Paper.FeeRate)
		venue, balances = paper, paper
		logger.Infof("Paper mode: simulated wallet %s %s / %s %s.",
			cfg.Paper.QuoteBalance, cfg.QuoteCurrency, cfg.Paper.BaseBalance, cfg.BaseCurrency)
	}

	// --- Cycle pipeline ---
	marketProvider := market.NewProvider(client, cfg.Pair)
	accountProvider := account.NewProvider(balances, cfg.QuoteCurrency, cfg.BaseCurrency)
	executor := engine.NewExecutor(venue, cfg.Pair, cfg.Trading.MinOrderValue, cfg.Mode)
	hub := handler.NewHub()
	defer hub.Close()

	runner := cycle.NewRunner(cycle.Deps{
		Pair:     cfg.Pair,
		Quote:    cfg.QuoteCurrency,
		Base:     cfg.BaseCurrency,
		Market:   marketProvider,
		Account:  accountProvider,
		Policy:   sizing.FixedFraction{BuyFraction: cfg.Trading.BuyFraction, SellFraction: cfg.Trading.SellFraction},
		Executor: executor,
		History:  repo,
		Notifier: notifier,
		Sinks:    []cycle.Sink{hub},
	})
	scheduler := cycle.NewScheduler(runner, cycle.NewRunState(), notifier, cfg.Trading.Interval, cfg.Trading.ErrorBackoff)

	// --- HTTP server ---
	router := handler.NewRouter(
		handler.NewDashboardHandler(marketProvider, accountProvider, repo, cfg.QuoteCurrency, cfg.BaseCurrency),
		handler.NewTradingHandler(ctx, scheduler, runner),
		hub,
	)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Graceful Shutdown Setup ---
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if cfg.Trading.StartActive.Bool() {
		scheduler.Start(ctx)
	} else {
		logger.Info("Trading loop is inactive; POST /api/toggle-trading to start it.")
	}

	select {
	case sig := <-sigs:
		logger.Infof("Received signal: %s, initiating shutdown...", sig)
	case err := <-serverErr:
		logger.Errorf("HTTP server failed: %v", err)
	}

	shutdown(srv, cancel, scheduler, cfg.Server.ShutdownTimeout)
	logger.Info("KRW-BTC cycle bot shut down gracefully.")
}

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type tradingLoop interface {
	Stop() bool
}

// shutdown drains HTTP requests first so no toggle can start a loop behind
// Stop, then ends the process context and waits for the loop. The loop
// finishes any in-flight cycle before Stop returns.
func shutdown(srv httpServer, cancel context.CancelFunc, loop tradingLoop, timeout time.Duration) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown: %v", err)
	}
	cancel()
	loop.Stop()
}
