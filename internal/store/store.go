// Package store persists the two things the core reads back: per-agent
// parameters (Redis, hot path, read every cycle) and closed trades plus
// equity snapshots (Postgres, append-only history for the learning
// engine and risk reporting). In-memory fallbacks keep the fleet
// runnable with no backing services.
package store

import (
	"context"
	"errors"

	"github.com/quantfleet/quantfleet/internal/strategy"
	"github.com/quantfleet/quantfleet/pkg/riskmetrics"
)

// ErrNotFound is returned when no record exists for the requested agent.
var ErrNotFound = errors.New("store: not found")

// ParameterStore reads and writes per-agent parameters. Load is called
// at the start of every cycle; Save only by the learning engine.
type ParameterStore interface {
	Load(ctx context.Context, agentID string) (strategy.Parameters, error)
	Save(ctx context.Context, agentID string, p strategy.Parameters) error
}

// TradeStore is the append-only sink for executed trades and periodic
// equity snapshots.
type TradeStore interface {
	RecordTrade(ctx context.Context, t strategy.Trade) error
	ListTrades(ctx context.Context, agentID string, limit int) ([]strategy.Trade, error)
	RecordEquity(ctx context.Context, agentID string, s riskmetrics.EquitySnapshot) error
	ListEquity(ctx context.Context, agentID string, limit int) ([]riskmetrics.EquitySnapshot, error)
}
