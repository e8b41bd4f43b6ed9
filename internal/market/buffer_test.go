package market

import (
	"math"
	"testing"
	"time"
)

func TestPriceBufferPush(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		prices  []float64
		wantLen int
		wantLast float64
	}{
		{
			name:    "Valid prices accumulate",
			prices:  []float64{100, 101, 102},
			wantLen: 3,
			wantLast: 102,
		},
		{
			name:    "Zero price ignored",
			prices:  []float64{100, 0, 102},
			wantLen: 2,
			wantLast: 102,
		},
		{
			name:    "Negative price ignored",
			prices:  []float64{100, -5},
			wantLen: 1,
			wantLast: 100,
		},
		{
			name:    "NaN and Inf ignored",
			prices:  []float64{100, math.NaN(), math.Inf(1), math.Inf(-1), 101},
			wantLen: 2,
			wantLast: 101,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewPriceBuffer(10)
			for i, p := range tt.prices {
				buf.Push(p, now.Add(time.Duration(i)*time.Second))
			}
			if buf.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", buf.Len(), tt.wantLen)
			}
			if buf.Last() != tt.wantLast {
				t.Errorf("Last() = %v, want %v", buf.Last(), tt.wantLast)
			}
		})
	}
}

func TestPriceBufferEviction(t *testing.T) {
	buf := NewPriceBuffer(3)
	now := time.Now()
	for i := 1; i <= 5; i++ {
		buf.Push(float64(i), now.Add(time.Duration(i)*time.Second))
	}

	if buf.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", buf.Len())
	}
	got := buf.Prices()
	want := []float64{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Prices()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPriceBufferCopies(t *testing.T) {
	buf := NewPriceBuffer(5)
	buf.Push(100, time.Now())
	prices := buf.Prices()
	prices[0] = 999

	if buf.Last() != 100 {
		t.Errorf("mutating Prices() result leaked into buffer: Last() = %v", buf.Last())
	}
}
