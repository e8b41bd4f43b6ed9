package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// Binance REST limits. The public price endpoint weighs 2 per call, so
// 10 req/s stays comfortably under the 1200 weight/min account limit.
const (
	binanceRequestsPerSecond = 10
	binanceBurst             = 5

	breakerMinRequests  = 5
	breakerFailureRatio = 0.6
	breakerOpenTimeout  = 30 * time.Second
	breakerCountWindow  = 10 * time.Second
)

// BinanceFeed serves prices and account snapshots from the Binance REST
// API. Calls are rate limited and guarded by a circuit breaker so a
// flapping upstream cannot stall the agent loops.
type BinanceFeed struct {
	client  *binance.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// BinanceConfig holds credentials and mode for the REST client.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
}

// NewBinanceFeed creates a rate-limited, breaker-guarded Binance feed.
func NewBinanceFeed(cfg BinanceConfig, log zerolog.Logger) *BinanceFeed {
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("Binance feed initialized (TESTNET mode)")
	} else {
		log.Warn().Msg("Binance feed initialized (LIVE mode)")
	}

	f := &BinanceFeed{
		client:  binance.NewClient(cfg.APIKey, cfg.SecretKey),
		limiter: rate.NewLimiter(rate.Limit(binanceRequestsPerSecond), binanceBurst),
		log:     log.With().Str("component", "binance_feed").Logger(),
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance",
		MaxRequests: 3,
		Interval:    breakerCountWindow,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Feed circuit breaker state changed")
		},
	})
	return f
}

// LatestPrice returns the most recent trade price for the symbol.
func (f *BinanceFeed) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return nil, err
		}
		if len(prices) == 0 {
			return nil, fmt.Errorf("no price returned for %s", symbol)
		}
		return prices[0].Price, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return 0, fmt.Errorf("%w: breaker open for %s", ErrUnavailable, symbol)
		}
		return 0, fmt.Errorf("fetch price for %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(result.(string), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", result, err)
	}
	return price, nil
}

// Snapshot pulls account balances and reduces them to a single equity
// figure in the quote asset. Binance spot has no position objects;
// non-quote balances are reported as LONG positions priced at entry 0
// so the strategies can still see held inventory.
func (f *BinanceFeed) Snapshot(ctx context.Context) (strategy.AccountSnapshot, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return strategy.AccountSnapshot{}, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.client.NewGetAccountService().Do(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return strategy.AccountSnapshot{}, fmt.Errorf("%w: breaker open for account", ErrUnavailable)
		}
		return strategy.AccountSnapshot{}, fmt.Errorf("fetch account: %w", err)
	}

	account := result.(*binance.Account)
	snapshot := strategy.AccountSnapshot{}
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		total := free + locked
		if total <= 0 {
			continue
		}
		if b.Asset == "USDT" {
			snapshot.Equity += total
			continue
		}
		snapshot.Positions = append(snapshot.Positions, strategy.Position{
			Symbol:   b.Asset + "USDT",
			Side:     strategy.SideLong,
			Quantity: total,
		})
	}
	return snapshot, nil
}
