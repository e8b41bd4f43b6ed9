package learning

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// MinTradesToLearn is the number of closed trades required before any
// parameter is touched.
const MinTradesToLearn = 10

// Parameter bounds enforced by the adjustment rules.
const (
	leverageCap        = 5.0
	leverageFloor      = 1.0
	stopLossFloor      = 0.3
	takeProfitCap      = 10.0
	takeProfitFloor    = 0.5
	sizeFractionCap    = 1.0
	sizeFractionFloor  = 0.1
	ruleConfidence     = 0.1
	scorePerConfidence = 30.0
)

// Update is the immutable output of one optimization pass. New replaces
// Old atomically; there is no partial application.
type Update struct {
	AgentID     string              `json:"agent_id"`
	Old         strategy.Parameters `json:"old_parameters"`
	New         strategy.Parameters `json:"new_parameters"`
	Performance PerformanceMetrics  `json:"performance_before"`
	Reason      string              `json:"reason"`
	Confidence  float64             `json:"confidence"`
	Applied     bool                `json:"applied"`
}

// rule is one independent, order-documented adjustment over
// (metrics, params). Each returns the adjusted params and a reason
// fragment, or ok=false when its condition does not hold.
type rule func(m PerformanceMetrics, p strategy.Parameters) (out strategy.Parameters, reason string, ok bool)

// rules are applied sequentially in this exact order; each sees the output
// of the previous one.
var rules = []rule{
	// High win rate earns more leverage.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.WinRate <= 0.70 {
			return p, "", false
		}
		p.Leverage = math.Min(p.Leverage*1.1, leverageCap)
		return p, fmt.Sprintf("win rate %.0f%% > 70%%: leverage up to %.1fx", m.WinRate*100, p.Leverage), true
	},
	// Low win rate gives leverage back.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.WinRate >= 0.40 {
			return p, "", false
		}
		p.Leverage = math.Max(p.Leverage*0.8, leverageFloor)
		return p, fmt.Sprintf("win rate %.0f%% < 40%%: leverage down to %.1fx", m.WinRate*100, p.Leverage), true
	},
	// Deep drawdown tightens the stop.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.MaxDrawdown <= 15 {
			return p, "", false
		}
		p.StopLossPercent = math.Max(p.StopLossPercent*0.9, stopLossFloor)
		return p, fmt.Sprintf("drawdown %.1f%% > 15%%: stop tightened to %.2f%%", m.MaxDrawdown, p.StopLossPercent), true
	},
	// Strong profit factor lets winners run further.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.ProfitFactor <= 2.5 {
			return p, "", false
		}
		p.TakeProfitPercent = math.Min(p.TakeProfitPercent*1.15, takeProfitCap)
		return p, fmt.Sprintf("profit factor %.2f > 2.5: take-profit up to %.2f%%", m.ProfitFactor, p.TakeProfitPercent), true
	},
	// Losing expectancy takes profits sooner.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.ProfitFactor >= 1.0 {
			return p, "", false
		}
		p.TakeProfitPercent = math.Max(p.TakeProfitPercent*0.85, takeProfitFloor)
		return p, fmt.Sprintf("profit factor %.2f < 1.0: take-profit down to %.2f%%", m.ProfitFactor, p.TakeProfitPercent), true
	},
	// Good risk-adjusted returns size up.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.SharpeRatio <= 1 {
			return p, "", false
		}
		p.PositionSizeFraction = math.Min(p.PositionSizeFraction*1.1, sizeFractionCap)
		return p, fmt.Sprintf("sharpe %.2f > 1: size fraction up to %.2f", m.SharpeRatio, p.PositionSizeFraction), true
	},
	// Poor risk-adjusted returns size down.
	func(m PerformanceMetrics, p strategy.Parameters) (strategy.Parameters, string, bool) {
		if m.SharpeRatio >= -0.5 {
			return p, "", false
		}
		p.PositionSizeFraction = math.Max(p.PositionSizeFraction*0.8, sizeFractionFloor)
		return p, fmt.Sprintf("sharpe %.2f < -0.5: size fraction down to %.2f", m.SharpeRatio, p.PositionSizeFraction), true
	},
}

// Optimizer runs the rule chain for an agent.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates an optimizer logging under the given logger.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "learning").Logger()}
}

// Optimize analyzes the closed trades and proposes new parameters. With
// fewer than MinTradesToLearn trades the current parameters are returned
// unchanged. The pass is deterministic: identical inputs always produce
// the identical update.
func (o *Optimizer) Optimize(agentID string, params strategy.Parameters, trades []strategy.Trade) Update {
	metrics := AnalyzePerformance(trades)

	update := Update{
		AgentID:     agentID,
		Old:         params,
		New:         params,
		Performance: metrics,
	}

	if len(trades) < MinTradesToLearn {
		update.Reason = fmt.Sprintf("insufficient history: %d/%d closed trades", len(trades), MinTradesToLearn)
		return update
	}

	out := params
	var reasons []string
	var confidence float64

	for _, r := range rules {
		next, reason, ok := r(metrics, out)
		if !ok {
			continue
		}
		out = next
		reasons = append(reasons, reason)
		confidence += ruleConfidence
	}

	if len(reasons) == 0 {
		update.Reason = "performance within all rule bands, no change"
		return update
	}

	out.Leverage = roundTo(out.Leverage, 1)
	out.StopLossPercent = roundTo(out.StopLossPercent, 2)
	out.TakeProfitPercent = roundTo(out.TakeProfitPercent, 2)
	out.PositionSizeFraction = roundTo(out.PositionSizeFraction, 2)
	out.OptimizationScore = math.Min(params.OptimizationScore+math.Floor(scorePerConfidence*confidence), 100)
	out.LastUpdated = time.Now().UTC()

	update.New = out
	update.Reason = strings.Join(reasons, "; ")
	update.Confidence = confidence
	update.Applied = true

	o.log.Info().
		Str("agent_id", agentID).
		Int("trades", len(trades)).
		Float64("confidence", confidence).
		Str("reason", update.Reason).
		Msg("Parameters optimized")

	return update
}

// roundTo rounds v to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
