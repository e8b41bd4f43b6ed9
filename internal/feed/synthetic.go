package feed

import (
	"context"
	"math"
	"sync"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// SyntheticFeed generates a deterministic sine-plus-drift price walk.
// It backs dry-run mode and lets the full pipeline run without any
// network dependency.
type SyntheticFeed struct {
	mu        sync.Mutex
	base      float64
	amplitude float64
	driftPct  float64
	ticks     map[string]int

	equity    float64
	positions []strategy.Position
}

// NewSyntheticFeed creates a feed oscillating around base with the
// given amplitude and a slow per-tick upward drift.
func NewSyntheticFeed(base, amplitude, driftPct, equity float64) *SyntheticFeed {
	return &SyntheticFeed{
		base:      base,
		amplitude: amplitude,
		driftPct:  driftPct,
		ticks:     make(map[string]int),
		equity:    equity,
	}
}

// LatestPrice returns the next point of the walk for the symbol. Each
// symbol advances independently so multi-agent runs stay decorrelated.
func (f *SyntheticFeed) LatestPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.ticks[symbol]
	f.ticks[symbol] = n + 1

	drift := f.base * f.driftPct / 100 * float64(n)
	wave := f.amplitude * math.Sin(float64(n)/7)
	return f.base + drift + wave, nil
}

// Snapshot returns the configured paper equity and positions.
func (f *SyntheticFeed) Snapshot(_ context.Context) (strategy.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	positions := make([]strategy.Position, len(f.positions))
	copy(positions, f.positions)
	return strategy.AccountSnapshot{Equity: f.equity, Positions: positions}, nil
}

// SetAccount replaces the paper account state. Tests and the paper
// execution loop use it to reflect fills.
func (f *SyntheticFeed) SetAccount(equity float64, positions []strategy.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.equity = equity
	f.positions = append([]strategy.Position(nil), positions...)
}
