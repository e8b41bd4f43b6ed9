// Package config loads fleet configuration from file and environment
// and owns global logger setup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Learning   LearningConfig   `mapstructure:"learning"`
	Agents     []AgentConfig    `mapstructure:"agents"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains PostgreSQL settings. An empty host disables
// Postgres and the fleet falls back to in-memory trade storage.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings. An empty host disables Redis and
// parameters stay in memory.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings. An empty URL disables
// publishing and remote control.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// FeedConfig selects and configures the price/account source.
type FeedConfig struct {
	Mode      string   `mapstructure:"mode"` // "binance", "stream", "synthetic"
	Symbols   []string `mapstructure:"symbols"`
	APIKey    string   `mapstructure:"api_key"`
	SecretKey string   `mapstructure:"secret_key"`
	Testnet   bool     `mapstructure:"testnet"`
	StreamURL string   `mapstructure:"stream_url"`

	// Synthetic walk settings for paper mode.
	SyntheticBase      float64 `mapstructure:"synthetic_base"`
	SyntheticAmplitude float64 `mapstructure:"synthetic_amplitude"`
	SyntheticDriftPct  float64 `mapstructure:"synthetic_drift_pct"`
	PaperEquity        float64 `mapstructure:"paper_equity"`

	SentimentURL string `mapstructure:"sentiment_url"`
}

// RiskConfig contains fleet-wide risk limits.
type RiskConfig struct {
	MaxDrawdownPercent     float64 `mapstructure:"max_drawdown_percent"`
	MaxPositionSizePercent float64 `mapstructure:"max_position_size_percent"`
	MaxDailyTrades         int     `mapstructure:"max_daily_trades"`
	MinWinRate             float64 `mapstructure:"min_win_rate"`
	SlippagePercent        float64 `mapstructure:"slippage_percent"`
	CooldownSeconds        int     `mapstructure:"cooldown_seconds"`
}

// LearningConfig sets the optimization cadence.
type LearningConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// AgentConfig defines one agent of the fleet.
type AgentConfig struct {
	ID           string `mapstructure:"id"`
	Symbol       string `mapstructure:"symbol"`
	Strategy     string `mapstructure:"strategy"`
	StepSeconds  int    `mapstructure:"step_seconds"`
	Enabled      bool   `mapstructure:"enabled"`
}

// MonitoringConfig contains monitoring settings.
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("QUANTFLEET")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and environment carry the run.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "QuantFleet")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "quantfleet")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "")

	v.SetDefault("feed.mode", "synthetic")
	v.SetDefault("feed.symbols", []string{"BTCUSDT", "ETHUSDT"})
	v.SetDefault("feed.testnet", true)
	v.SetDefault("feed.synthetic_base", 50000.0)
	v.SetDefault("feed.synthetic_amplitude", 500.0)
	v.SetDefault("feed.synthetic_drift_pct", 0.01)
	v.SetDefault("feed.paper_equity", 10000.0)

	v.SetDefault("risk.max_drawdown_percent", 25.0)
	v.SetDefault("risk.max_position_size_percent", 10.0)
	v.SetDefault("risk.max_daily_trades", 50)
	v.SetDefault("risk.min_win_rate", 0.30)
	v.SetDefault("risk.slippage_percent", 0.05)
	v.SetDefault("risk.cooldown_seconds", 60)

	v.SetDefault("learning.interval_minutes", 15)

	v.SetDefault("agents", []map[string]interface{}{
		{"id": "momentum-btc", "symbol": "BTCUSDT", "strategy": "momentum", "step_seconds": 5, "enabled": true},
	})

	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks the loaded configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Feed.Mode {
	case "binance", "stream", "synthetic":
	default:
		return fmt.Errorf("invalid feed mode %q", c.Feed.Mode)
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[agent.ID] {
			return fmt.Errorf("duplicate agent id %q", agent.ID)
		}
		seen[agent.ID] = true
		if agent.Symbol == "" {
			return fmt.Errorf("agent %s: empty symbol", agent.ID)
		}
		if agent.Strategy == "" {
			return fmt.Errorf("agent %s: empty strategy", agent.ID)
		}
	}

	if c.Risk.MaxDrawdownPercent <= 0 || c.Risk.MaxDrawdownPercent > 100 {
		return fmt.Errorf("risk.max_drawdown_percent must be in (0, 100], got %v", c.Risk.MaxDrawdownPercent)
	}
	if c.Risk.MaxPositionSizePercent <= 0 || c.Risk.MaxPositionSizePercent > 100 {
		return fmt.Errorf("risk.max_position_size_percent must be in (0, 100], got %v", c.Risk.MaxPositionSizePercent)
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.PoolSize,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StepInterval returns the agent's evaluation cadence.
func (a *AgentConfig) StepInterval() time.Duration {
	if a.StepSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.StepSeconds) * time.Second
}

// Cooldown returns the minimum interval between trades.
func (c *RiskConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// LearnInterval returns the optimization cadence.
func (c *LearningConfig) LearnInterval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}
