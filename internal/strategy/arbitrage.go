package strategy

import (
	"fmt"
	"math"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

const (
	// Arbitrage runs small and tight regardless of learned parameters.
	arbMaxLeverage   = 2.0
	arbSizeFraction  = 0.5
	arbStopPercent   = 0.3
	arbProfitPercent = 0.5
)

// ReferencePriceFunc supplies the secondary price source an arbitrage agent
// compares the live tick against.
type ReferencePriceFunc func() (float64, error)

// ArbitrageStrategy enters when the spread between the tick price and a
// reference source exceeds the configured minimum. Positions are small,
// stops tight and leverage clamped low; the venue spread is the whole
// edge.
type ArbitrageStrategy struct {
	buf       *market.PriceBuffer
	risk      *risk.Manager
	params    Parameters
	reference ReferencePriceFunc
}

// NewArbitrageStrategy creates the arbitrage variant with its reference
// price source.
func NewArbitrageStrategy(buf *market.PriceBuffer, riskMgr *risk.Manager, params Parameters, reference ReferencePriceFunc) *ArbitrageStrategy {
	return &ArbitrageStrategy{buf: buf, risk: riskMgr, params: params, reference: reference}
}

func (s *ArbitrageStrategy) Name() string { return "arbitrage" }

func (s *ArbitrageStrategy) SetParameters(p Parameters) { s.params = p }

// GenerateSignal measures the reference spread and trades it when it
// clears the minimum.
func (s *ArbitrageStrategy) GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal {
	if s.reference == nil {
		return hold(price, "arbitrage disabled: no reference price source")
	}

	ref, err := s.reference()
	if err != nil {
		return hold(price, "arbitrage reference unavailable: %v", err)
	}
	if !finitePositive(ref) {
		return hold(price, "invalid input: reference price %v", ref)
	}

	spread := (ref - price) / price * 100
	minSpread := s.params.ArbMinSpreadPercent
	if math.Abs(spread) < minSpread {
		return hold(price, "spread %.3f%% below minimum %.3f%% (ref %.2f)", spread, minSpread, ref)
	}

	vol := market.Volatility(s.buf.Prices())
	leverage := math.Min(s.params.Leverage, arbMaxLeverage)
	qty := sizedQuantity(s.risk, account.Equity, vol, leverage, arbSizeFraction*s.params.PositionSizeFraction, price)
	if qty <= 0 {
		return hold(price, "risk rejected: arbitrage size 0 at equity %.2f", account.Equity)
	}

	confidence := clampConfidence(0.5+math.Abs(spread)/(minSpread*4), 0.9)

	if spread > 0 {
		// Local price is below the reference: buy the discount.
		return Signal{
			Action:     ActionBuy,
			Quantity:   qty,
			Price:      price,
			TakeProfit: price * (1 + arbProfitPercent/100),
			StopLoss:   price * (1 - arbStopPercent/100),
			Confidence: confidence,
			Reason:     fmt.Sprintf("arbitrage buy: spread %.3f%% >= %.3f%% (price %.2f vs ref %.2f)", spread, minSpread, price, ref),
		}
	}

	if openQuantity(positions) <= 0 {
		return hold(price, "arbitrage sell skipped: spread %.3f%% but no inventory", spread)
	}

	return Signal{
		Action:     ActionSell,
		Quantity:   qty,
		Price:      price,
		TakeProfit: price * (1 - arbProfitPercent/100),
		StopLoss:   price * (1 + arbStopPercent/100),
		Confidence: confidence,
		Reason:     fmt.Sprintf("arbitrage sell: spread %.3f%% <= -%.3f%% (price %.2f vs ref %.2f)", spread, minSpread, price, ref),
	}
}
