// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Trading modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// History store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config defines the structure for all application configuration.
type Config struct {
	Pair          string       `yaml:"pair"`
	QuoteCurrency string       `yaml:"quote_currency"`
	BaseCurrency  string       `yaml:"base_currency"`
	Mode          string       `yaml:"mode"`
	Log           LogConfig    `yaml:"log"`
	Exchange      ExchangeConf `yaml:"exchange"`
	Trading       TradingConf  `yaml:"trading"`
	Paper         PaperConf    `yaml:"paper"`
	History       HistoryConf  `yaml:"history"`
	Server        ServerConf   `yaml:"server"`
	Alert         AlertConf    `yaml:"alert"`
	AccessKey     string       `yaml:"-"` // Loaded from env
	SecretKey     string       `yaml:"-"` // Loaded from env
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"` // console, file or both
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// ExchangeConf holds Upbit REST settings.
type ExchangeConf struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// TradingConf holds the cycle loop and sizing parameters.
type TradingConf struct {
	StartActive   FlexBool        `yaml:"start_active"`
	Interval      time.Duration   `yaml:"interval"`
	ErrorBackoff  time.Duration   `yaml:"error_backoff"`
	BuyFraction   decimal.Decimal `yaml:"buy_fraction"`
	SellFraction  decimal.Decimal `yaml:"sell_fraction"`
	MinOrderValue decimal.Decimal `yaml:"min_order_value"`
}

// PaperConf seeds the simulated wallet used in paper mode.
type PaperConf struct {
	QuoteBalance decimal.Decimal `yaml:"quote_balance"`
	BaseBalance  decimal.Decimal `yaml:"base_balance"`
	FeeRate      decimal.Decimal `yaml:"fee_rate"`
}

// HistoryConf selects the decision history store.
type HistoryConf struct {
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Database   DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, sslMode)
}

// ServerConf holds the HTTP listener settings.
type ServerConf struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AlertConf configures the webhook notifier. An empty URL disables alerts.
type AlertConf struct {
	WebhookURL     string        `yaml:"webhook_url"`
	BufferInterval time.Duration `yaml:"buffer_interval"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Pair:          "KRW-BTC",
		QuoteCurrency: "KRW",
		BaseCurrency:  "BTC",
		Mode:          ModePaper,
		Log: LogConfig{
			Level:      "info",
			Output:     "console",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Exchange: ExchangeConf{
			BaseURL:    "https://api.upbit.com",
			Timeout:    10 * time.Second,
			RetryCount: 2,
		},
		Trading: TradingConf{
			Interval:      4 * time.Hour,
			ErrorBackoff:  5 * time.Minute,
			BuyFraction:   decimal.RequireFromString("0.2"),
			SellFraction:  decimal.RequireFromString("0.2"),
			MinOrderValue: decimal.NewFromInt(5000),
		},
		Paper: PaperConf{
			QuoteBalance: decimal.NewFromInt(1000000),
			BaseBalance:  decimal.Zero,
			FeeRate:      decimal.RequireFromString("0.0005"),
		},
		History: HistoryConf{
			Driver:     DriverSQLite,
			SQLitePath: "trading_history.db",
			Database: DatabaseConfig{
				Host: "localhost",
				Port: "5432",
				User: "bot",
				Name: "trading",
			},
		},
		Server: ServerConf{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Alert: AlertConf{
			BufferInterval: time.Minute,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables. A .env file in the working directory is
// loaded first if present; variables already set in the environment win.
// An empty path skips the YAML file and uses defaults.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv loads sensitive data and overrides from environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("UPBIT_ACCESS_KEY"); v != "" {
		cfg.AccessKey = v
	}
	if v := os.Getenv("UPBIT_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		cfg.Alert.WebhookURL = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.History.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.History.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.History.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.History.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.History.Database.Name = v
	}
}

// Validate checks the values the bot cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Pair == "" || c.QuoteCurrency == "" || c.BaseCurrency == "" {
		errs = append(errs, errors.New("pair, quote_currency and base_currency must be set"))
	}
	switch c.Mode {
	case ModePaper:
	case ModeLive:
		if c.AccessKey == "" || c.SecretKey == "" {
			errs = append(errs, errors.New("live mode requires UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Trading.Interval <= 0 {
		errs = append(errs, errors.New("trading.interval must be positive"))
	}
	if c.Trading.ErrorBackoff <= 0 {
		errs = append(errs, errors.New("trading.error_backoff must be positive"))
	}
	one := decimal.NewFromInt(1)
	if c.Trading.BuyFraction.IsNegative() || c.Trading.BuyFraction.GreaterThan(one) {
		errs = append(errs, errors.New("trading.buy_fraction must be within [0, 1]"))
	}
	if c.Trading.SellFraction.IsNegative() || c.Trading.SellFraction.GreaterThan(one) {
		errs = append(errs, errors.New("trading.sell_fraction must be within [0, 1]"))
	}
	if c.Trading.MinOrderValue.IsNegative() {
		errs = append(errs, errors.New("trading.min_order_value must not be negative"))
	}
	switch c.History.Driver {
	case DriverSQLite:
		if c.History.SQLitePath == "" {
			errs = append(errs, errors.New("history.sqlite_path must be set for the sqlite driver"))
		}
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown history driver %q", c.History.Driver))
	}
	return errors.Join(errs...)
}
