// Package riskmetrics computes risk-adjusted performance figures over
// historical equity snapshots. The outputs are reporting-only: nothing
// here feeds back into signal generation or parameter learning.
package riskmetrics

import (
	"math"
	"time"
)

// SortinoSaturation is returned when a series has positive returns but
// no downside observations at all; an infinite ratio is clamped here so
// leaderboard comparisons stay finite.
const SortinoSaturation = 5.0

// tradingDaysPerYear is the conventional annualization factor for
// period returns.
const tradingDaysPerYear = 252

// EquitySnapshot is one point in an agent's append-only equity series.
type EquitySnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	AccountValue  float64   `json:"account_value"`
	TotalPnl      float64   `json:"total_pnl"`
	ReturnPercent float64   `json:"return_percent"`
}

// Metrics bundles every figure computed from one snapshot series.
type Metrics struct {
	MaxDrawdown  float64 `json:"max_drawdown"` // percent, <= 0
	Volatility   float64 `json:"volatility"`   // annualized, percent
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
}

// Calculate computes all metrics over a chronologically sorted snapshot
// series. Fewer than two points yields all zeros.
func Calculate(snapshots []EquitySnapshot) Metrics {
	if len(snapshots) < 2 {
		return Metrics{}
	}
	return Metrics{
		MaxDrawdown:  MaxDrawdown(snapshots),
		Volatility:   Volatility(snapshots),
		SharpeRatio:  SharpeRatio(snapshots),
		SortinoRatio: SortinoRatio(snapshots),
		CalmarRatio:  CalmarRatio(snapshots),
	}
}

// MaxDrawdown walks the series tracking the running peak account value
// and returns the deepest peak-to-trough decline as a negative
// percentage. [100, 120, 90, 110] gives -25.
func MaxDrawdown(snapshots []EquitySnapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}
	peak := snapshots[0].AccountValue
	worst := 0.0
	for _, s := range snapshots {
		if s.AccountValue > peak {
			peak = s.AccountValue
		}
		if peak <= 0 {
			continue
		}
		dd := (s.AccountValue - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// Volatility is the standard deviation of period-over-period returns,
// annualized by sqrt(252), expressed as a percentage.
func Volatility(snapshots []EquitySnapshot) float64 {
	returns := periodReturns(snapshots)
	if len(returns) == 0 {
		return 0
	}
	return stdDev(returns) * math.Sqrt(tradingDaysPerYear) * 100
}

// SharpeRatio is the annualized mean return divided by annualized
// volatility, with a zero risk-free rate. Zero volatility yields zero.
func SharpeRatio(snapshots []EquitySnapshot) float64 {
	returns := periodReturns(snapshots)
	if len(returns) == 0 {
		return 0
	}
	vol := stdDev(returns) * math.Sqrt(tradingDaysPerYear)
	if vol == 0 {
		return 0
	}
	annualized := mean(returns) * tradingDaysPerYear
	return annualized / vol
}

// SortinoRatio divides the annualized mean return by the annualized
// downside deviation, computed from negative returns only. A series
// with positive returns and no downside saturates at
// SortinoSaturation rather than going infinite.
func SortinoRatio(snapshots []EquitySnapshot) float64 {
	returns := periodReturns(snapshots)
	if len(returns) == 0 {
		return 0
	}
	annualized := mean(returns) * tradingDaysPerYear

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if annualized > 0 {
			return SortinoSaturation
		}
		return 0
	}
	dev := stdDev(downside) * math.Sqrt(tradingDaysPerYear)
	if dev == 0 {
		return 0
	}
	return annualized / dev
}

// CalmarRatio is the total return scaled to a 365-day year divided by
// the magnitude of the max drawdown. Zero drawdown or zero duration
// yields zero.
func CalmarRatio(snapshots []EquitySnapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}
	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	if first.AccountValue <= 0 {
		return 0
	}

	daysActive := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	dd := math.Abs(MaxDrawdown(snapshots))
	if daysActive <= 0 || dd == 0 {
		return 0
	}

	totalReturn := (last.AccountValue - first.AccountValue) / first.AccountValue * 100
	annualized := totalReturn * 365 / daysActive
	return annualized / dd
}

// periodReturns converts the account value series into simple
// period-over-period returns, skipping non-positive bases.
func periodReturns(snapshots []EquitySnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].AccountValue
		if prev <= 0 {
			continue
		}
		returns = append(returns, (snapshots[i].AccountValue-prev)/prev)
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev uses population variance, matching the figures the dashboard
// has always reported.
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
