// Package learning adapts each agent's numeric parameters from its own
// closed trade history: performance analysis feeding an ordered chain of
// independent adjustment rules.
package learning

import (
	"math"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// ProfitFactorSentinel stands in for an infinite profit factor when an
// agent has winners but no losers yet. Downstream leaderboards depend on
// this exact value staying stable.
const ProfitFactorSentinel = 999.0

// PerformanceMetrics is derived from a closed trade set and recomputed
// from scratch on every analysis pass.
type PerformanceMetrics struct {
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	BestSymbol   string  `json:"best_symbol"`
	WorstSymbol  string  `json:"worst_symbol"`
	TotalTrades  int     `json:"total_trades"`
}

// AnalyzePerformance computes metrics over closed trades in execution
// order. An empty set yields zero metrics.
func AnalyzePerformance(trades []strategy.Trade) PerformanceMetrics {
	m := PerformanceMetrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return m
	}

	var winners, losers int
	var totalWin, totalLoss float64
	rois := make([]float64, 0, len(trades))

	// Per-symbol win tallies for best/worst symbol.
	type symbolStats struct{ wins, total int }
	bySymbol := make(map[string]*symbolStats)

	// Running cumulative PnL for the peak-to-trade drawdown.
	var cum, peak, maxDD float64

	for _, t := range trades {
		rois = append(rois, t.Roi)

		stats := bySymbol[t.Symbol]
		if stats == nil {
			stats = &symbolStats{}
			bySymbol[t.Symbol] = stats
		}
		stats.total++

		if t.Pnl > 0 {
			winners++
			totalWin += t.Pnl
			stats.wins++
		} else if t.Pnl < 0 {
			losers++
			totalLoss += -t.Pnl
		}

		cum += t.Pnl
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			if dd := (peak - cum) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	m.WinRate = float64(winners) / float64(len(trades))
	if winners > 0 {
		m.AvgWin = totalWin / float64(winners)
	}
	if losers > 0 {
		m.AvgLoss = totalLoss / float64(losers)
	}

	switch {
	case m.AvgLoss > 0:
		m.ProfitFactor = m.AvgWin / m.AvgLoss
	case m.AvgWin > 0:
		m.ProfitFactor = ProfitFactorSentinel
	}

	m.SharpeRatio = sharpeFromROIs(rois)
	m.MaxDrawdown = maxDD * 100

	bestRate, worstRate := -1.0, 2.0
	for symbol, stats := range bySymbol {
		rate := float64(stats.wins) / float64(stats.total)
		if rate > bestRate || (rate == bestRate && symbol < m.BestSymbol) {
			bestRate, m.BestSymbol = rate, symbol
		}
		if rate < worstRate || (rate == worstRate && symbol < m.WorstSymbol) {
			worstRate, m.WorstSymbol = rate, symbol
		}
	}

	return m
}

// sharpeFromROIs approximates a Sharpe ratio as mean/stddev of per-trade
// ROI fractions with population variance and no risk-free rate. The
// simplification is deliberate: leaderboard comparisons depend on these
// exact values.
func sharpeFromROIs(rois []float64) float64 {
	if len(rois) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rois {
		mean += r
	}
	mean /= float64(len(rois))

	variance := 0.0
	for _, r := range rois {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(rois))

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}
