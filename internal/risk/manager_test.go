package risk

import (
	"math"
	"testing"
)

func TestCheckCircuitBreaker(t *testing.T) {
	manager := NewManager(Limits{MaxDrawdownPercent: 25})

	tests := []struct {
		name     string
		equity   float64
		peak     float64
		wantStop bool
	}{
		{"30 percent drawdown trips", 70, 100, true},
		{"20 percent drawdown holds", 80, 100, false},
		{"Exactly at limit trips", 75, 100, true},
		{"No drawdown", 100, 100, false},
		{"Equity above peak", 120, 100, false},
		{"Zero peak is a no-op", 70, 0, false},
		{"NaN equity is a no-op", math.NaN(), 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := manager.CheckCircuitBreaker(tt.equity, tt.peak)
			if status.ShouldStop != tt.wantStop {
				t.Errorf("CheckCircuitBreaker(%v, %v).ShouldStop = %v, want %v",
					tt.equity, tt.peak, status.ShouldStop, tt.wantStop)
			}
			if tt.wantStop && status.Reason == "" {
				t.Error("tripped breaker carries no reason")
			}
		})
	}
}

func TestCalculatePositionSize(t *testing.T) {
	manager := NewManager(DefaultLimits())

	t.Run("Base size at zero volatility", func(t *testing.T) {
		// 10% of 10000 equity at 2x leverage.
		got := manager.CalculatePositionSize(10000, 0, 2, 50000)
		want := 2000.0
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("CalculatePositionSize = %v, want %v", got, want)
		}
	})

	t.Run("Monotonically non-increasing in volatility", func(t *testing.T) {
		prev := math.Inf(1)
		for _, vol := range []float64{0, 0.005, 0.01, 0.02, 0.05, 0.10} {
			got := manager.CalculatePositionSize(10000, vol, 2, 50000)
			if got > prev {
				t.Fatalf("size increased with volatility: %v at vol %v (prev %v)", got, vol, prev)
			}
			prev = got
		}
	})

	t.Run("Never exceeds equity times leverage", func(t *testing.T) {
		aggressive := NewManager(Limits{MaxPositionSizePercent: 500})
		got := aggressive.CalculatePositionSize(1000, 0, 3, 100)
		if got > 3000 {
			t.Errorf("notional %v exceeds equity*leverage 3000", got)
		}
	})

	invalids := []struct {
		name                              string
		equity, volatility, leverage, price float64
	}{
		{"Zero equity", 0, 0.01, 2, 100},
		{"Negative equity", -100, 0.01, 2, 100},
		{"Zero price", 1000, 0.01, 2, 0},
		{"Zero leverage", 1000, 0.01, 0, 100},
		{"NaN volatility", 1000, math.NaN(), 2, 100},
		{"Inf equity", math.Inf(1), 0.01, 2, 100},
	}
	for _, tt := range invalids {
		t.Run(tt.name, func(t *testing.T) {
			if got := manager.CalculatePositionSize(tt.equity, tt.volatility, tt.leverage, tt.price); got != 0 {
				t.Errorf("CalculatePositionSize = %v, want 0", got)
			}
		})
	}
}

func TestExceedsDailyTrades(t *testing.T) {
	manager := NewManager(Limits{MaxDailyTrades: 3})
	if manager.ExceedsDailyTrades(2) {
		t.Error("2 trades should be under a 3-trade budget")
	}
	if !manager.ExceedsDailyTrades(3) {
		t.Error("3 trades should exhaust a 3-trade budget")
	}

	unlimited := NewManager(Limits{MaxDailyTrades: 0})
	if unlimited.ExceedsDailyTrades(1000) {
		t.Error("zero budget means unlimited")
	}
}
