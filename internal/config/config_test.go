// Package config_test tests the config package.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/your-org/krw-btc-cycle-bot/internal/config"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdirTemp moves the test into an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "KRW-BTC", cfg.Pair)
	assert.Equal(t, config.ModePaper, cfg.Mode)
	assert.Equal(t, 4*time.Hour, cfg.Trading.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Trading.ErrorBackoff)
	assert.True(t, cfg.Trading.BuyFraction.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, cfg.Trading.MinOrderValue.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, config.DriverSQLite, cfg.History.Driver)
}

func TestLoadConfig_YAML(t *testing.T) {
	chdirTemp(t)
	path := writeConfig(t, `
pair: "KRW-BTC"
log:
  level: debug
trading:
  start_active: "yes"
  interval: 30m
  error_backoff: 10s
  buy_fraction: 0.1
  min_order_value: "5000"
history:
  driver: memory
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Trading.StartActive.Bool())
	assert.Equal(t, 30*time.Minute, cfg.Trading.Interval)
	assert.Equal(t, 10*time.Second, cfg.Trading.ErrorBackoff)
	assert.Equal(t, "0.1", cfg.Trading.BuyFraction.String())
	// untouched keys keep their defaults
	assert.Equal(t, "0.2", cfg.Trading.SellFraction.String())
	assert.Equal(t, config.DriverMemory, cfg.History.Driver)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	path := writeConfig(t, "log:\n  level: info\n")

	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("UPBIT_ACCESS_KEY", "access")
	t.Setenv("UPBIT_SECRET_KEY", "secret")
	t.Setenv("TRADING_MODE", "LIVE")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, config.ModeLive, cfg.Mode)
	assert.Equal(t, "access", cfg.AccessKey)
	assert.Equal(t, "secret", cfg.SecretKey)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "db.internal", cfg.History.Database.Host)
	assert.Equal(t, "postgres://bot:pw@db.internal:5432/trading?sslmode=disable", cfg.History.Database.DSN())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ALERT_WEBHOOK_URL=http://hooks.local/x\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("ALERT_WEBHOOK_URL") })

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://hooks.local/x", cfg.Alert.WebhookURL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	chdirTemp(t)
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *config.Config) {}},
		{
			name:    "live without keys",
			mutate:  func(c *config.Config) { c.Mode = config.ModeLive },
			wantErr: "live mode requires",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *config.Config) { c.Mode = "demo" },
			wantErr: `unknown mode "demo"`,
		},
		{
			name:    "zero interval",
			mutate:  func(c *config.Config) { c.Trading.Interval = 0 },
			wantErr: "trading.interval must be positive",
		},
		{
			name:    "fraction above one",
			mutate:  func(c *config.Config) { c.Trading.SellFraction = decimal.NewFromInt(2) },
			wantErr: "trading.sell_fraction",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *config.Config) { c.History.Driver = "mongo" },
			wantErr: `unknown history driver "mongo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
		err  bool
	}{
		{in: "v: true", want: true},
		{in: "v: 0", want: false},
		{in: "v: 1", want: true},
		{in: `v: "on"`, want: true},
		{in: `v: "off"`, want: false},
		{in: `v: "False"`, want: false},
		{in: `v: "maybe"`, err: true},
		{in: "v: [1]", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var out struct {
				V config.FlexBool `yaml:"v"`
			}
			err := yaml.Unmarshal([]byte(tt.in), &out)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.V.Bool())
		})
	}
}
