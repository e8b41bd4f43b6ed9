// Package feed supplies the boundary inputs the trading core is
// parameterized by: prices, account snapshots, and sentiment. Every
// adapter degrades to a safe zero value on failure; the core treats
// those as HOLD conditions.
package feed

import (
	"context"
	"errors"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// ErrUnavailable is returned when an upstream source cannot serve the
// request, whether from transport failure or an open breaker.
var ErrUnavailable = errors.New("feed: source unavailable")

// PriceFeed returns the latest trade/mark price for a symbol. A zero
// price with a non-nil error means no usable tick this cycle.
type PriceFeed interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// AccountFeed returns the current equity and open positions.
type AccountFeed interface {
	Snapshot(ctx context.Context) (strategy.AccountSnapshot, error)
}

// SentimentFeed returns an advisory sentiment reading for a symbol.
// Only the buy-and-hold strategy consumes it; errors are never fatal.
type SentimentFeed interface {
	Sentiment(ctx context.Context, symbol string) (strategy.SentimentReading, error)
}
