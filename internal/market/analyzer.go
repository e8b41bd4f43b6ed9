package market

import (
	"math"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
)

// Default indicator periods. Strategies that need different windows pass
// them explicitly.
const (
	DefaultRSIPeriod        = 14
	DefaultBollingerPeriod  = 20
	DefaultBollingerK       = 2.0
	DefaultMomentumLookback = 10

	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	// NeutralRSI is returned when there is not enough history for a
	// meaningful RSI reading.
	NeutralRSI = 50.0
)

// MACDResult holds the MACD line value and its distance from the signal
// line. Strength is the absolute histogram value.
type MACDResult struct {
	Value    float64 `json:"value"`
	Signal   float64 `json:"signal"`
	Strength float64 `json:"strength"`
}

// BollingerResult holds the three Bollinger band levels.
type BollingerResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Volatility returns the standard deviation of simple period returns over
// the price window. Fewer than two prices yield 0.
func Volatility(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return stdDev(returns)
}

// RSI computes the Wilder relative strength index over the window. It needs
// at least period+1 prices; shorter input returns the neutral value 50.
func RSI(prices []float64, period int) float64 {
	if period < 1 || len(prices) < period+1 {
		return NeutralRSI
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := rsi.Compute(sliceToChan(prices))

	value := NeutralRSI
	for v := range out {
		value = v
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NeutralRSI
	}
	return value
}

// MACD computes the 12/26/9 moving average convergence divergence. Fewer
// than the slow period of prices yields a zero result.
func MACD(prices []float64) MACDResult {
	if len(prices) < macdSlowPeriod {
		return MACDResult{}
	}

	macd := trend.NewMacdWithPeriod[float64](macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	macdChan, signalChan := macd.Compute(sliceToChan(prices))

	var value, signal float64
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		value, signal = m, s
	}

	return MACDResult{
		Value:    value,
		Signal:   signal,
		Strength: math.Abs(value - signal),
	}
}

// BollingerBands computes the moving average plus/minus k standard
// deviations over the trailing window. Fewer than period prices yield a
// zero result.
func BollingerBands(prices []float64, period int, k float64) BollingerResult {
	if period < 2 || len(prices) < period {
		return BollingerResult{}
	}

	window := prices[len(prices)-period:]
	middle := movingAverage(window, period)
	sigma := stdDev(window)

	return BollingerResult{
		Upper:  middle + k*sigma,
		Middle: middle,
		Lower:  middle - k*sigma,
	}
}

// Momentum returns the percent price change over the lookback window, or 0
// when the window does not fit.
func Momentum(prices []float64, lookback int) float64 {
	if lookback < 1 || len(prices) < lookback+1 {
		return 0
	}
	base := prices[len(prices)-1-lookback]
	if base <= 0 {
		return 0
	}
	return (prices[len(prices)-1] - base) / base * 100
}

// AdaptiveTargets derives take-profit and stop-loss levels around price,
// widening both with measured volatility so targets are not churned by
// noise in choppy markets. Long targets sit above price, short targets
// below.
func AdaptiveTargets(price, volatility float64, long bool) (takeProfit, stopLoss float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, 0
	}
	if volatility < 0 || math.IsNaN(volatility) || math.IsInf(volatility, 0) {
		volatility = 0
	}

	// Base 2% take-profit and 1% stop-loss, each stretched by the
	// volatility of the window, capped so targets stay inside 10%/5%.
	tpPct := math.Min(0.02*(1+volatility*20), 0.10)
	slPct := math.Min(0.01*(1+volatility*20), 0.05)

	if long {
		return price * (1 + tpPct), price * (1 - slPct)
	}
	return price * (1 - tpPct), price * (1 + slPct)
}

// movingAverage computes the simple moving average of the most recent
// period values.
func movingAverage(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// stdDev computes the sample standard deviation (Bessel's correction).
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}

// sliceToChan adapts a price slice to the channel form the cinar
// indicators consume.
func sliceToChan(prices []float64) chan float64 {
	ch := make(chan float64, len(prices))
	for _, p := range prices {
		ch <- p
	}
	close(ch)
	return ch
}
