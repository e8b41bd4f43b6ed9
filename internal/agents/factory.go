package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/feed"
	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
	"github.com/quantfleet/quantfleet/internal/strategy"
)

// Strategy names accepted in configuration.
const (
	StrategyMomentum  = "momentum"
	StrategyGrid      = "grid"
	StrategyArbitrage = "arbitrage"
	StrategyScalper   = "ml-scalper"
	StrategySentiment = "sentiment"
)

// BuildEngine wires a strategy variant with its own buffer and state.
// The sentiment and arbitrage variants take their external sources from
// the optional feeds; absent feeds degrade to neutral inputs.
func BuildEngine(
	cfg Config,
	params strategy.Parameters,
	limits risk.Limits,
	cooldown time.Duration,
	sentiments feed.SentimentFeed,
	reference feed.PriceFeed,
	log zerolog.Logger,
) (*strategy.Engine, error) {
	buf := market.NewPriceBuffer(market.DefaultBufferCapacity)
	riskMgr := risk.NewManager(limits)
	state := strategy.NewState(cooldown)

	var variant strategy.Strategy
	switch cfg.StrategyName {
	case StrategyMomentum:
		variant = strategy.NewMomentumStrategy(buf, riskMgr, state, params)
	case StrategyGrid:
		variant = strategy.NewGridStrategy(buf, riskMgr, params)
	case StrategyArbitrage:
		variant = strategy.NewArbitrageStrategy(buf, riskMgr, params, referenceFunc(cfg.Symbol, reference))
	case StrategyScalper:
		variant = strategy.NewScalperStrategy(buf, riskMgr, params)
	case StrategySentiment:
		variant = strategy.NewSentimentStrategy(buf, riskMgr, state, params, cfg.Symbol, sentimentFunc(sentiments))
	default:
		return nil, fmt.Errorf("unknown strategy %q for agent %s", cfg.StrategyName, cfg.ID)
	}

	return strategy.NewEngine(variant, buf, riskMgr, state, log), nil
}

// referenceFunc adapts a price feed into the arbitrage reference-price
// source. A nil feed reports no reference, which keeps the variant on
// HOLD.
func referenceFunc(symbol string, prices feed.PriceFeed) strategy.ReferencePriceFunc {
	if prices == nil {
		return nil
	}
	return func() (float64, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return prices.LatestPrice(ctx, symbol)
	}
}

// sentimentFunc adapts a sentiment feed into the variant's source. A
// nil feed reads as neutral.
func sentimentFunc(sentiments feed.SentimentFeed) strategy.SentimentSourceFunc {
	if sentiments == nil {
		return nil
	}
	return func(symbol string) (strategy.SentimentReading, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sentiments.Sentiment(ctx, symbol)
	}
}
