package strategy

import "time"

// Phase is the common per-agent position lifecycle state.
type Phase string

const (
	PhaseNoPosition   Phase = "NO_POSITION"
	PhaseInitialEntry Phase = "INITIAL_ENTRY"
	PhaseHolding      Phase = "HOLDING"
	PhaseScalingOut   Phase = "SCALING_OUT"
)

// State holds the minimal per-agent mutable state shared by all variants:
// entry price, cooldown timer, peak equity and the initial-entry flag. One
// State exists per agent instance so multiple agents and backtests can run
// in the same process without interference.
type State struct {
	Phase            Phase
	EntryPrice       float64
	PeakEquity       float64
	LastTradeTime    time.Time
	InitialEntryDone bool
	TradesToday      int

	minTradeInterval time.Duration
	day              time.Time
}

// NewState creates agent state with the given cooldown between trades.
func NewState(minTradeInterval time.Duration) *State {
	return &State{
		Phase:            PhaseNoPosition,
		minTradeInterval: minTradeInterval,
	}
}

// ObserveEquity tracks the running peak equity used as the circuit breaker
// reference. The peak is monotonic non-decreasing.
func (s *State) ObserveEquity(equity float64) {
	if equity > s.PeakEquity {
		s.PeakEquity = equity
	}
}

// CooldownElapsed reports whether the trade cooldown has passed. An agent
// that has never traded is exempt, so the first entry always goes through
// before rate limiting applies. After a full exit the cooldown re-arms
// from the last trade.
func (s *State) CooldownElapsed(now time.Time) bool {
	if s.LastTradeTime.IsZero() {
		return true
	}
	return now.Sub(s.LastTradeTime) >= s.minTradeInterval
}

// MarkTrade records that a non-HOLD signal was emitted at now, starting the
// cooldown and the daily trade count.
func (s *State) MarkTrade(now time.Time, price float64, action Action) {
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(s.day) {
		s.day = day
		s.TradesToday = 0
	}
	s.TradesToday++
	s.LastTradeTime = now

	switch {
	case action == ActionBuy && !s.InitialEntryDone:
		s.InitialEntryDone = true
		s.EntryPrice = price
		s.Phase = PhaseInitialEntry
	case action == ActionBuy:
		if s.EntryPrice == 0 {
			s.EntryPrice = price
		}
		s.Phase = PhaseHolding
	case action == ActionSell:
		s.Phase = PhaseScalingOut
	}
}

// ObservePositions reconciles the state machine with the externally
// confirmed positions. A full exit (no open quantity after holding) resets
// entry price and re-arms the entry cooldown.
func (s *State) ObservePositions(positions []Position) {
	if openQuantity(positions) > 0 {
		if s.Phase == PhaseNoPosition || s.Phase == PhaseInitialEntry {
			s.Phase = PhaseHolding
		}
		return
	}
	if s.Phase != PhaseNoPosition {
		s.Reset()
	}
}

// Reset clears position-scoped state after a confirmed full exit. Peak
// equity and the daily trade count survive; cooldown restarts from the
// last trade.
func (s *State) Reset() {
	s.Phase = PhaseNoPosition
	s.EntryPrice = 0
	s.InitialEntryDone = false
}
