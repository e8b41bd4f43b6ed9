// Package risk implements the shared risk policy layer: position sizing
// and the drawdown circuit breaker every strategy consults before trading.
package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

// Limits holds the risk boundaries a manager enforces. Values are
// percentages except MaxDailyTrades and MinWinRate.
type Limits struct {
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`
	MaxPositionSizePercent float64 `json:"max_position_size_percent"`
	MaxDailyTrades         int     `json:"max_daily_trades"`
	MinWinRate             float64 `json:"min_win_rate"`
	SlippagePercent        float64 `json:"slippage_percent"`
}

// DefaultLimits returns the conservative limits used when the config does
// not override them.
func DefaultLimits() Limits {
	return Limits{
		MaxDrawdownPercent:     25.0,
		MaxPositionSizePercent: 10.0,
		MaxDailyTrades:         50,
		MinWinRate:             0.30,
		SlippagePercent:        0.05,
	}
}

// BreakerStatus is the per-cycle circuit breaker verdict. It is derived
// from current equity against the running peak and never persisted.
type BreakerStatus struct {
	ShouldStop bool   `json:"should_stop"`
	Reason     string `json:"reason"`
}

// Manager is a stateless policy evaluator. All per-agent state (peak
// equity, trade counts) is tracked by the caller and passed in.
type Manager struct {
	limits Limits
}

// NewManager creates a risk manager with the given limits.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits}
}

// Limits returns the configured limits.
func (m *Manager) Limits() Limits {
	return m.limits
}

// CheckCircuitBreaker trips once the drawdown from the reference peak
// equity reaches the configured maximum. The reference is the running peak
// observed for the agent and must be monotonic non-decreasing.
func (m *Manager) CheckCircuitBreaker(currentEquity, referenceEquity float64) BreakerStatus {
	if referenceEquity <= 0 || math.IsNaN(currentEquity) || math.IsNaN(referenceEquity) {
		return BreakerStatus{}
	}

	drawdown := (referenceEquity - currentEquity) / referenceEquity * 100
	if drawdown >= m.limits.MaxDrawdownPercent {
		status := BreakerStatus{
			ShouldStop: true,
			Reason: fmt.Sprintf("drawdown %.2f%% breached limit %.2f%% (equity %.2f, peak %.2f)",
				drawdown, m.limits.MaxDrawdownPercent, currentEquity, referenceEquity),
		}
		log.Warn().
			Float64("drawdown_pct", drawdown).
			Float64("limit_pct", m.limits.MaxDrawdownPercent).
			Float64("equity", currentEquity).
			Float64("peak_equity", referenceEquity).
			Msg("Circuit breaker tripped")
		return status
	}

	return BreakerStatus{}
}

// CalculatePositionSize returns the notional exposure for a new entry. The
// base size is the configured fraction of equity, scaled down as
// volatility rises, multiplied by leverage and clipped so the notional can
// never exceed equity times leverage. Invalid inputs size to zero, which
// callers treat as a rejection.
func (m *Manager) CalculatePositionSize(equity, volatility, leverage, price float64) float64 {
	if equity <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}
	for _, v := range []float64{equity, volatility, leverage, price} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
	}
	if volatility < 0 {
		volatility = 0
	}

	base := equity * m.limits.MaxPositionSizePercent / 100

	// Inverse volatility scaling: a 1% return stddev halves the size, a
	// calm market keeps the full base.
	scale := 1.0 / (1.0 + volatility*100)
	notional := base * scale * leverage

	if ceiling := equity * leverage; notional > ceiling {
		notional = ceiling
	}

	log.Debug().
		Float64("equity", equity).
		Float64("volatility", volatility).
		Float64("leverage", leverage).
		Float64("notional", notional).
		Msg("Position size calculated")

	return notional
}

// ExceedsDailyTrades reports whether the agent has used up its daily trade
// budget.
func (m *Manager) ExceedsDailyTrades(tradesToday int) bool {
	return m.limits.MaxDailyTrades > 0 && tradesToday >= m.limits.MaxDailyTrades
}
