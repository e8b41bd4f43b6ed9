package market

import (
	"math"
	"testing"
)

// rising returns n prices climbing by step from base.
func rising(base, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + step*float64(i)
	}
	return out
}

func TestVolatility(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"Empty input", nil, 0},
		{"Single price", []float64{100}, 0},
		{"Constant prices", []float64{100, 100, 100, 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Volatility(tt.prices); got != tt.want {
				t.Errorf("Volatility() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("Choppier series has higher volatility", func(t *testing.T) {
		calm := []float64{100, 100.1, 100.0, 100.1, 100.0, 100.1}
		wild := []float64{100, 105, 98, 107, 95, 110}
		if Volatility(wild) <= Volatility(calm) {
			t.Errorf("Volatility(wild)=%v not greater than Volatility(calm)=%v",
				Volatility(wild), Volatility(calm))
		}
	})
}

func TestRSI(t *testing.T) {
	t.Run("Insufficient history is neutral", func(t *testing.T) {
		if got := RSI(rising(100, 1, 10), DefaultRSIPeriod); got != NeutralRSI {
			t.Errorf("RSI(short) = %v, want %v", got, NeutralRSI)
		}
	})

	t.Run("Pure uptrend reads overbought", func(t *testing.T) {
		got := RSI(rising(100, 1, 30), DefaultRSIPeriod)
		if got < 70 {
			t.Errorf("RSI(uptrend) = %v, want >= 70", got)
		}
	})

	t.Run("Pure downtrend reads oversold", func(t *testing.T) {
		got := RSI(rising(130, -1, 30), DefaultRSIPeriod)
		if got > 30 {
			t.Errorf("RSI(downtrend) = %v, want <= 30", got)
		}
	})

	t.Run("Bounded to 0..100", func(t *testing.T) {
		got := RSI([]float64{100, 101, 99, 102, 98, 103, 97, 104, 96, 105, 95, 106, 94, 107, 93, 108}, DefaultRSIPeriod)
		if got < 0 || got > 100 {
			t.Errorf("RSI out of bounds: %v", got)
		}
	})
}

func TestMACD(t *testing.T) {
	t.Run("Insufficient history is zero", func(t *testing.T) {
		got := MACD(rising(100, 1, macdSlowPeriod-1))
		if got.Value != 0 || got.Signal != 0 || got.Strength != 0 {
			t.Errorf("MACD(short) = %+v, want zero result", got)
		}
	})

	t.Run("Uptrend has positive MACD line", func(t *testing.T) {
		got := MACD(rising(100, 1, 60))
		if got.Value <= 0 {
			t.Errorf("MACD(uptrend).Value = %v, want > 0", got.Value)
		}
		if got.Strength != math.Abs(got.Value-got.Signal) {
			t.Errorf("Strength = %v, want |value-signal| = %v", got.Strength, math.Abs(got.Value-got.Signal))
		}
	})
}

func TestBollingerBands(t *testing.T) {
	t.Run("Insufficient history is zero", func(t *testing.T) {
		got := BollingerBands(rising(100, 1, 5), DefaultBollingerPeriod, DefaultBollingerK)
		if got.Middle != 0 {
			t.Errorf("BollingerBands(short).Middle = %v, want 0", got.Middle)
		}
	})

	t.Run("Bands bracket the mean", func(t *testing.T) {
		prices := []float64{100, 102, 98, 101, 99, 103, 97, 102, 100, 101,
			99, 100, 102, 98, 101, 99, 103, 97, 100, 101}
		got := BollingerBands(prices, DefaultBollingerPeriod, DefaultBollingerK)
		if !(got.Lower < got.Middle && got.Middle < got.Upper) {
			t.Errorf("bands not ordered: %+v", got)
		}
	})

	t.Run("Wider k widens bands", func(t *testing.T) {
		prices := rising(100, 0.5, 25)
		narrow := BollingerBands(prices, DefaultBollingerPeriod, 1.0)
		wide := BollingerBands(prices, DefaultBollingerPeriod, 3.0)
		if wide.Upper-wide.Lower <= narrow.Upper-narrow.Lower {
			t.Errorf("k=3 band %v not wider than k=1 band %v",
				wide.Upper-wide.Lower, narrow.Upper-narrow.Lower)
		}
	})
}

func TestMomentum(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		lookback int
		want     float64
	}{
		{"Insufficient history", []float64{100, 101}, 10, 0},
		{"Ten percent gain", []float64{100, 102, 104, 106, 108, 110}, 5, 10},
		{"Flat", []float64{100, 100, 100, 100}, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Momentum(tt.prices, tt.lookback)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Momentum() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdaptiveTargets(t *testing.T) {
	t.Run("Long targets bracket price", func(t *testing.T) {
		tp, sl := AdaptiveTargets(100, 0.01, true)
		if tp <= 100 || sl >= 100 {
			t.Errorf("long targets tp=%v sl=%v do not bracket 100", tp, sl)
		}
	})

	t.Run("Short targets bracket price", func(t *testing.T) {
		tp, sl := AdaptiveTargets(100, 0.01, false)
		if tp >= 100 || sl <= 100 {
			t.Errorf("short targets tp=%v sl=%v do not bracket 100", tp, sl)
		}
	})

	t.Run("Volatility widens targets up to the cap", func(t *testing.T) {
		calmTP, _ := AdaptiveTargets(100, 0, true)
		wildTP, _ := AdaptiveTargets(100, 0.05, true)
		if wildTP <= calmTP {
			t.Errorf("volatile tp %v not wider than calm tp %v", wildTP, calmTP)
		}
		cappedTP, cappedSL := AdaptiveTargets(100, 10, true)
		if cappedTP > 110 || cappedSL < 95 {
			t.Errorf("caps exceeded: tp=%v sl=%v", cappedTP, cappedSL)
		}
	})

	t.Run("Invalid price is zero", func(t *testing.T) {
		tp, sl := AdaptiveTargets(math.NaN(), 0.01, true)
		if tp != 0 || sl != 0 {
			t.Errorf("AdaptiveTargets(NaN) = %v, %v, want 0, 0", tp, sl)
		}
	})
}
