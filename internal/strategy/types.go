// Package strategy implements the per-agent signal generation engine: five
// strategy variants behind one interface, the common per-agent state
// machine, and the evaluation boundary that converts every failure into a
// HOLD signal.
package strategy

import (
	"math"
	"time"
)

// Action is the decision carried by a signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is the immutable output of one evaluation cycle. Reason carries a
// human-readable summary of the indicator values that drove the decision.
type Signal struct {
	Action     Action  `json:"action"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Position is an open position owned by a single agent. A zero quantity is
// treated as no position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Side          Side    `json:"side"`
	Quantity      float64 `json:"quantity"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// AccountSnapshot is the per-cycle view of the account the host pulls for
// the agent. Zero or non-finite equity is a hard HOLD condition.
type AccountSnapshot struct {
	Equity    float64    `json:"equity"`
	Positions []Position `json:"positions"`
}

// Trade is a closed round trip, immutable once recorded. It is the sole
// input of the learning engine.
type Trade struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	Pnl        float64   `json:"pnl"`
	Roi        float64   `json:"roi"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
}

// Parameters is the per-agent numeric configuration. It is read by the
// strategies and the risk sizing each cycle and written only by the
// learning engine.
type Parameters struct {
	Leverage             float64   `json:"leverage"`
	PositionSizeFraction float64   `json:"position_size_fraction"`
	StopLossPercent      float64   `json:"stop_loss_percent"`
	TakeProfitPercent    float64   `json:"take_profit_percent"`

	MomentumThreshold     float64 `json:"momentum_threshold"`
	GridIntervalPercent   float64 `json:"grid_interval_percent"`
	GridLevels            int     `json:"grid_levels"`
	MLConfidenceThreshold float64 `json:"ml_confidence_threshold"`
	ArbMinSpreadPercent   float64 `json:"arb_min_spread_percent"`

	LastUpdated       time.Time `json:"last_updated"`
	OptimizationScore float64   `json:"optimization_score"`
}

// DefaultParameters returns the starting parameter set for a fresh agent.
func DefaultParameters() Parameters {
	return Parameters{
		Leverage:              2.0,
		PositionSizeFraction:  0.25,
		StopLossPercent:       2.0,
		TakeProfitPercent:     4.0,
		MomentumThreshold:     0.0,
		GridIntervalPercent:   2.0,
		GridLevels:            10,
		MLConfidenceThreshold: 0.65,
		ArbMinSpreadPercent:   0.3,
	}
}

// Sentiment classifies an external market mood reading.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// SentimentReading is an advisory input consumed only by the sentiment
// buy-and-hold strategy. Score is bounded to [-100, 100].
type SentimentReading struct {
	Sentiment Sentiment `json:"sentiment"`
	Score     float64   `json:"score"`
}

// Strategy is the contract every variant implements. GenerateSignal is
// called once per evaluation cycle with validated inputs; it must never
// panic past the engine boundary.
type Strategy interface {
	Name() string
	SetParameters(p Parameters)
	GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal
}

// openQuantity sums the open quantity across positions, treating zero
// quantity entries as absent.
func openQuantity(positions []Position) float64 {
	total := 0.0
	for _, p := range positions {
		total += p.Quantity
	}
	return total
}

// finitePositive reports whether v is a usable positive number.
func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
