package strategy

import (
	"fmt"
	"math"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

const (
	// Adaptive RSI thresholds start here and widen with volatility.
	momentumBaseBuyRSI  = 35.0
	momentumBaseSellRSI = 65.0

	// MACD strength must clear this many basis points of price to count
	// as a real divergence rather than noise.
	momentumMACDStrengthBps = 1.0
)

// MomentumStrategy is the multi-indicator variant: it buys oversold dips
// confirmed by positive momentum, MACD divergence and a price below the
// Bollinger midline, and sells the symmetric opposite. RSI entry
// thresholds adapt to measured volatility.
type MomentumStrategy struct {
	buf    *market.PriceBuffer
	risk   *risk.Manager
	state  *State
	params Parameters
}

// NewMomentumStrategy creates the momentum variant sharing the agent's
// buffer, risk manager and state.
func NewMomentumStrategy(buf *market.PriceBuffer, riskMgr *risk.Manager, state *State, params Parameters) *MomentumStrategy {
	return &MomentumStrategy{buf: buf, risk: riskMgr, state: state, params: params}
}

func (s *MomentumStrategy) Name() string { return "momentum" }

func (s *MomentumStrategy) SetParameters(p Parameters) { s.params = p }

// GenerateSignal evaluates the four momentum conditions against the
// current window.
func (s *MomentumStrategy) GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal {
	prices := s.buf.Prices()

	vol := market.Volatility(prices)
	rsi := market.RSI(prices, market.DefaultRSIPeriod)
	mom := market.Momentum(prices, market.DefaultMomentumLookback)
	macd := market.MACD(prices)
	bands := market.BollingerBands(prices, market.DefaultBollingerPeriod, market.DefaultBollingerK)

	// Scale out before looking for fresh entries.
	if sig, ok := scaleOutSignal(price, positions, s.state.EntryPrice, s.params.TakeProfitPercent, rsi); ok {
		return sig
	}

	// Thresholds widen with volatility: a choppier market demands a
	// deeper oversold/overbought reading before acting.
	volPct := vol * 100
	buyRSI := clampRSIThreshold(momentumBaseBuyRSI - 2*volPct)
	sellRSI := clampRSIThreshold(momentumBaseSellRSI + 2*volPct)
	strengthBar := price * momentumMACDStrengthBps / 10000

	buy := rsi < buyRSI &&
		mom > s.params.MomentumThreshold &&
		macd.Strength > strengthBar &&
		bands.Middle > 0 && price < bands.Middle

	sell := rsi > sellRSI &&
		mom < -s.params.MomentumThreshold &&
		macd.Strength > strengthBar &&
		bands.Middle > 0 && price > bands.Middle

	if !buy && !sell {
		return hold(price,
			"momentum conditions unmet: RSI %.1f (buy<%.1f sell>%.1f), momentum %.2f%%, MACD strength %.4f (bar %.4f), mid %.2f",
			rsi, buyRSI, sellRSI, mom, macd.Strength, strengthBar, bands.Middle)
	}

	qty := sizedQuantity(s.risk, account.Equity, vol, s.params.Leverage, s.params.PositionSizeFraction, price)
	if qty <= 0 {
		return hold(price, "risk rejected: position size 0 at equity %.2f, volatility %.4f", account.Equity, vol)
	}

	// Confidence grows with how far past each bar the indicators sit.
	rsiEdge := math.Abs(rsi-50) / 50
	momEdge := math.Min(math.Abs(mom)/5, 1)
	macdEdge := math.Min(macd.Strength/math.Max(strengthBar, 1e-12)/10, 1)
	confidence := clampConfidence(0.3+0.3*rsiEdge+0.2*momEdge+0.2*macdEdge, 0.9)

	if buy {
		tp, sl := market.AdaptiveTargets(price, vol, true)
		return Signal{
			Action:     ActionBuy,
			Quantity:   qty,
			Price:      price,
			TakeProfit: tp,
			StopLoss:   sl,
			Confidence: confidence,
			Reason: fmt.Sprintf("momentum buy: RSI %.1f < %.1f, momentum %.2f%% > %.2f, MACD strength %.4f, price %.2f < mid %.2f",
				rsi, buyRSI, mom, s.params.MomentumThreshold, macd.Strength, price, bands.Middle),
		}
	}

	tp, sl := market.AdaptiveTargets(price, vol, false)
	return Signal{
		Action:     ActionSell,
		Quantity:   qty,
		Price:      price,
		TakeProfit: tp,
		StopLoss:   sl,
		Confidence: confidence,
		Reason: fmt.Sprintf("momentum sell: RSI %.1f > %.1f, momentum %.2f%% < -%.2f, MACD strength %.4f, price %.2f > mid %.2f",
			rsi, sellRSI, mom, s.params.MomentumThreshold, macd.Strength, price, bands.Middle),
	}
}

// clampRSIThreshold keeps adaptive thresholds inside usable RSI bounds.
func clampRSIThreshold(v float64) float64 {
	if v < 20 {
		return 20
	}
	if v > 80 {
		return 80
	}
	return v
}
