// Command fleet runs the trading agent fleet: one evaluation loop per
// configured agent, sharing feeds, stores, and messaging.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantfleet/quantfleet/internal/agents"
	"github.com/quantfleet/quantfleet/internal/config"
	"github.com/quantfleet/quantfleet/internal/feed"
	"github.com/quantfleet/quantfleet/internal/learning"
	"github.com/quantfleet/quantfleet/internal/metrics"
	"github.com/quantfleet/quantfleet/internal/risk"
	"github.com/quantfleet/quantfleet/internal/store"
	"github.com/quantfleet/quantfleet/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("environment", cfg.App.Environment).
		Int("agents", len(cfg.Agents)).
		Str("feed_mode", cfg.Feed.Mode).
		Msg("Starting QuantFleet")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Fleet exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Fleet stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Optional infrastructure; each degrades independently.
	natsConn := connectNATS(cfg.NATS.URL)
	if natsConn != nil {
		defer natsConn.Close()
	}

	params, redisClient := buildParameterStore(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	trades, pgPool, err := buildTradeStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pgPool != nil {
		defer pgPool.Close()
	}

	prices, account, streamFeed, err := buildFeeds(cfg)
	if err != nil {
		return err
	}
	// Paper mode stays fully offline: a fixed neutral reading instead of
	// the public index.
	var sentiments feed.SentimentFeed
	if cfg.Feed.Mode == "synthetic" {
		sentiments = feed.StaticSentiment{Reading: strategy.SentimentReading{Sentiment: strategy.SentimentNeutral}}
	} else {
		sentiments = feed.NewFearGreedFeed(cfg.Feed.SentimentURL, config.NewLogger("sentiment"))
	}

	limits := risk.Limits{
		MaxDrawdownPercent:     cfg.Risk.MaxDrawdownPercent,
		MaxPositionSizePercent: cfg.Risk.MaxPositionSizePercent,
		MaxDailyTrades:         cfg.Risk.MaxDailyTrades,
		MinWinRate:             cfg.Risk.MinWinRate,
		SlippagePercent:        cfg.Risk.SlippagePercent,
	}
	optimizer := learning.NewOptimizer(config.NewLogger("learning"))

	group, groupCtx := errgroup.WithContext(ctx)

	if streamFeed != nil {
		group.Go(func() error { return streamFeed.Run(groupCtx) })
	}

	if cfg.Monitoring.EnableMetrics {
		metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics"))
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	started := 0
	for _, agentCfg := range cfg.Agents {
		if !agentCfg.Enabled {
			log.Info().Str("agent", agentCfg.ID).Msg("Agent disabled, skipping")
			continue
		}

		runnerCfg := agents.Config{
			ID:            agentCfg.ID,
			Symbol:        agentCfg.Symbol,
			StrategyName:  agentCfg.Strategy,
			StepInterval:  agentCfg.StepInterval(),
			LearnInterval: cfg.Learning.LearnInterval(),
		}
		agentLog := config.NewAgentLogger(agentCfg.ID, agentCfg.Strategy)

		startParams := loadOrDefault(ctx, params, agentCfg.ID)
		engine, err := agents.BuildEngine(runnerCfg, startParams, limits, cfg.Risk.Cooldown(), sentiments, prices, agentLog)
		if err != nil {
			return err
		}

		runner := agents.NewRunner(runnerCfg, engine, prices, account, params, trades, optimizer, natsConn, agentLog)
		group.Go(func() error { return runner.Run(groupCtx) })
		started++
	}
	if started == 0 {
		return fmt.Errorf("no enabled agents in configuration")
	}
	log.Info().Int("running", started).Msg("Fleet running")

	return group.Wait()
}

func connectNATS(url string) *nats.Conn {
	if url == "" {
		log.Info().Msg("NATS not configured, signals are log-only")
		return nil
	}
	conn, err := nats.Connect(url, nats.Name("quantfleet"))
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("NATS unavailable, signals are log-only")
		return nil
	}
	log.Info().Str("url", url).Msg("Connected to NATS")
	return conn
}

func buildParameterStore(ctx context.Context, cfg *config.Config) (store.ParameterStore, *redis.Client) {
	if cfg.Redis.Host == "" {
		log.Info().Msg("Redis not configured, parameters are in-memory")
		return store.NewMemoryParameterStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, parameters are in-memory")
		client.Close()
		return store.NewMemoryParameterStore(), nil
	}
	log.Info().Str("addr", cfg.Redis.GetRedisAddr()).Msg("Connected to Redis")
	return store.NewRedisParameterStore(client, config.NewLogger("store")), client
}

func buildTradeStore(ctx context.Context, cfg *config.Config) (store.TradeStore, *pgxpool.Pool, error) {
	if cfg.Database.Host == "" {
		log.Info().Msg("Postgres not configured, trade history is in-memory")
		return store.NewMemoryTradeStore(), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	pg := store.NewPgTradeStoreWithPool(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Str("host", cfg.Database.Host).Msg("Connected to Postgres")
	return pg, pool, nil
}

func buildFeeds(cfg *config.Config) (feed.PriceFeed, feed.AccountFeed, *feed.StreamFeed, error) {
	switch cfg.Feed.Mode {
	case "binance":
		binanceFeed := feed.NewBinanceFeed(feed.BinanceConfig{
			APIKey:    cfg.Feed.APIKey,
			SecretKey: cfg.Feed.SecretKey,
			Testnet:   cfg.Feed.Testnet,
		}, config.NewLogger("feed"))
		return binanceFeed, binanceFeed, nil, nil
	case "stream":
		// Prices stream over the websocket; the account still polls REST.
		streamFeed := feed.NewStreamFeed(cfg.Feed.StreamURL, cfg.Feed.Symbols, 0, config.NewLogger("feed"))
		binanceFeed := feed.NewBinanceFeed(feed.BinanceConfig{
			APIKey:    cfg.Feed.APIKey,
			SecretKey: cfg.Feed.SecretKey,
			Testnet:   cfg.Feed.Testnet,
		}, config.NewLogger("feed"))
		return streamFeed, binanceFeed, streamFeed, nil
	case "synthetic":
		synthetic := feed.NewSyntheticFeed(
			cfg.Feed.SyntheticBase,
			cfg.Feed.SyntheticAmplitude,
			cfg.Feed.SyntheticDriftPct,
			cfg.Feed.PaperEquity,
		)
		return synthetic, synthetic, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("invalid feed mode %q", cfg.Feed.Mode)
	}
}

func loadOrDefault(ctx context.Context, params store.ParameterStore, agentID string) strategy.Parameters {
	p, err := params.Load(ctx, agentID)
	if err != nil {
		return strategy.DefaultParameters()
	}
	return p
}
