package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "QuantFleet", cfg.App.Name)
	require.Equal(t, "synthetic", cfg.Feed.Mode)
	require.Equal(t, 50000.0, cfg.Feed.SyntheticBase)
	require.Equal(t, 10000.0, cfg.Feed.PaperEquity)

	require.Equal(t, 25.0, cfg.Risk.MaxDrawdownPercent)
	require.Equal(t, 50, cfg.Risk.MaxDailyTrades)
	require.Equal(t, time.Minute, cfg.Risk.Cooldown())

	// Database, Redis and NATS are all off by default.
	require.Empty(t, cfg.Database.Host)
	require.Empty(t, cfg.Redis.Host)
	require.Empty(t, cfg.NATS.URL)

	require.Len(t, cfg.Agents, 1)
	require.Equal(t, "momentum-btc", cfg.Agents[0].ID)
	require.True(t, cfg.Agents[0].Enabled)
	require.Equal(t, 5*time.Second, cfg.Agents[0].StepInterval())
}

func TestLoadFromFile(t *testing.T) {
	yaml := `
app:
  name: TestFleet
  log_level: debug
feed:
  mode: binance
  testnet: true
risk:
  max_drawdown_percent: 15
  cooldown_seconds: 30
learning:
  interval_minutes: 5
agents:
  - id: grid-eth
    symbol: ETHUSDT
    strategy: grid
    step_seconds: 2
    enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "TestFleet", cfg.App.Name)
	require.Equal(t, "binance", cfg.Feed.Mode)
	require.Equal(t, 15.0, cfg.Risk.MaxDrawdownPercent)
	require.Equal(t, 30*time.Second, cfg.Risk.Cooldown())
	require.Equal(t, 5*time.Minute, cfg.Learning.LearnInterval())

	require.Len(t, cfg.Agents, 1)
	require.Equal(t, "grid-eth", cfg.Agents[0].ID)
	require.Equal(t, 2*time.Second, cfg.Agents[0].StepInterval())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Feed: FeedConfig{Mode: "synthetic"},
			Risk: RiskConfig{MaxDrawdownPercent: 25, MaxPositionSizePercent: 10},
			Agents: []AgentConfig{
				{ID: "a1", Symbol: "BTCUSDT", Strategy: "momentum"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad feed mode", func(c *Config) { c.Feed.Mode = "fix" }, "invalid feed mode"},
		{"empty agent id", func(c *Config) { c.Agents[0].ID = "" }, "empty id"},
		{"duplicate agent id", func(c *Config) {
			c.Agents = append(c.Agents, AgentConfig{ID: "a1", Symbol: "ETHUSDT", Strategy: "grid"})
		}, "duplicate agent id"},
		{"empty symbol", func(c *Config) { c.Agents[0].Symbol = "" }, "empty symbol"},
		{"empty strategy", func(c *Config) { c.Agents[0].Strategy = "" }, "empty strategy"},
		{"drawdown too high", func(c *Config) { c.Risk.MaxDrawdownPercent = 150 }, "max_drawdown_percent"},
		{"drawdown zero", func(c *Config) { c.Risk.MaxDrawdownPercent = 0 }, "max_drawdown_percent"},
		{"position size zero", func(c *Config) { c.Risk.MaxPositionSizePercent = 0 }, "max_position_size_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "secret",
		Database: "quantfleet", SSLMode: "disable", PoolSize: 10,
	}
	require.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=quantfleet sslmode=disable pool_max_conns=10",
		db.GetDSN())
}
