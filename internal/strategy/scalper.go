package strategy

import (
	"fmt"
	"math"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

const (
	// Scalps target well under one percent and cut losers even faster.
	scalpTakeProfitPct = 0.5
	scalpStopLossPct   = 0.3

	// Window of ticks feeding the order-flow proxy.
	scalpFlowWindow = 10
)

// ScalperStrategy treats a confidence score derived from short-horizon
// order-flow proxies (tick direction balance and 3-tick momentum) as the
// primary signal, trading only when it clears the configured threshold.
// Targets are tight and the holding horizon short.
type ScalperStrategy struct {
	buf    *market.PriceBuffer
	risk   *risk.Manager
	params Parameters
}

// NewScalperStrategy creates the ML-scalper variant.
func NewScalperStrategy(buf *market.PriceBuffer, riskMgr *risk.Manager, params Parameters) *ScalperStrategy {
	return &ScalperStrategy{buf: buf, risk: riskMgr, params: params}
}

func (s *ScalperStrategy) Name() string { return "ml-scalper" }

func (s *ScalperStrategy) SetParameters(p Parameters) { s.params = p }

// GenerateSignal computes the confidence score and trades its direction
// when the score is decisive enough.
func (s *ScalperStrategy) GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal {
	prices := s.buf.Prices()
	if len(prices) < scalpFlowWindow+1 {
		return hold(price, "building history: %d/%d ticks for flow window", len(prices), scalpFlowWindow+1)
	}

	score := s.confidenceScore(prices)
	threshold := s.params.MLConfidenceThreshold

	if score < threshold && score > 1-threshold {
		return hold(price, "scalp score %.3f inside dead zone [%.3f, %.3f]", score, 1-threshold, threshold)
	}

	vol := market.Volatility(prices)
	qty := sizedQuantity(s.risk, account.Equity, vol, s.params.Leverage, s.params.PositionSizeFraction, price)
	if qty <= 0 {
		return hold(price, "risk rejected: scalp size 0 at equity %.2f", account.Equity)
	}

	if score >= threshold {
		return Signal{
			Action:     ActionBuy,
			Quantity:   qty,
			Price:      price,
			TakeProfit: price * (1 + scalpTakeProfitPct/100),
			StopLoss:   price * (1 - scalpStopLossPct/100),
			Confidence: clampConfidence(score, 0.95),
			Reason:     fmt.Sprintf("scalp buy: score %.3f >= threshold %.3f", score, threshold),
		}
	}

	if openQuantity(positions) <= 0 {
		return hold(price, "scalp sell skipped: score %.3f but no inventory", score)
	}

	return Signal{
		Action:     ActionSell,
		Quantity:   qty,
		Price:      price,
		TakeProfit: price * (1 - scalpTakeProfitPct/100),
		StopLoss:   price * (1 + scalpStopLossPct/100),
		Confidence: clampConfidence(1-score, 0.95),
		Reason:     fmt.Sprintf("scalp sell: score %.3f <= %.3f", score, 1-threshold),
	}
}

// confidenceScore maps tick-direction balance and short momentum into
// [0, 1]. 0.5 is neutral; above favors buying, below favors selling.
func (s *ScalperStrategy) confidenceScore(prices []float64) float64 {
	window := prices[len(prices)-scalpFlowWindow-1:]

	upticks := 0
	for i := 1; i < len(window); i++ {
		if window[i] > window[i-1] {
			upticks++
		}
	}
	// Tick balance in [-1, 1].
	balance := (float64(upticks)/float64(len(window)-1) - 0.5) * 2

	mom := market.Momentum(prices, 3) / 100

	score := 0.5 + 0.3*balance + 0.2*math.Tanh(mom*100)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
