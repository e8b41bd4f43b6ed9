package strategy

import (
	"fmt"
	"math"

	"github.com/quantfleet/quantfleet/internal/risk"
)

// quantityPrecision fixes signal quantities to six decimals, matching the
// smallest lot most spot venues accept.
const quantityPrecision = 1e6

// sizedQuantity converts the risk manager's notional into a discrete
// quantity by floor-division against price. A non-positive result means
// the trade must be rejected.
func sizedQuantity(riskMgr *risk.Manager, equity, volatility, leverage, fraction, price float64) float64 {
	notional := riskMgr.CalculatePositionSize(equity, volatility, leverage, price)
	if notional <= 0 || price <= 0 {
		return 0
	}
	if fraction > 0 && fraction <= 1 {
		notional *= fraction
	}
	return math.Floor(notional/price*quantityPrecision) / quantityPrecision
}

// hold builds a HOLD signal with a diagnostic reason.
func hold(price float64, format string, args ...interface{}) Signal {
	return Signal{
		Action: ActionHold,
		Price:  price,
		Reason: fmt.Sprintf(format, args...),
	}
}

// clampConfidence bounds a confidence estimate to [0, limit].
func clampConfidence(c, limit float64) float64 {
	if c < 0 {
		return 0
	}
	if c > limit {
		return limit
	}
	return c
}

// scaleOutSignal checks the shared scale-out trigger: unrealized gain from
// the entry price above threshold, or an overbought RSI. It returns a SELL
// for half the open quantity, or a zero signal when no trigger fires.
func scaleOutSignal(price float64, positions []Position, entryPrice, gainThresholdPct, rsi float64) (Signal, bool) {
	qty := openQuantity(positions)
	if qty <= 0 || entryPrice <= 0 {
		return Signal{}, false
	}

	gainPct := (price - entryPrice) / entryPrice * 100
	overbought := rsi > 70

	if gainPct < gainThresholdPct && !overbought {
		return Signal{}, false
	}

	reason := fmt.Sprintf("scale-out: gain %.2f%% from entry %.2f (threshold %.2f%%)", gainPct, entryPrice, gainThresholdPct)
	if overbought {
		reason = fmt.Sprintf("scale-out: RSI %.1f overbought, gain %.2f%% from entry %.2f", rsi, gainPct, entryPrice)
	}

	half := math.Floor(qty/2*quantityPrecision) / quantityPrecision
	if half <= 0 {
		half = qty
	}

	return Signal{
		Action:     ActionSell,
		Quantity:   half,
		Price:      price,
		Confidence: 0.6,
		Reason:     reason,
	}, true
}
