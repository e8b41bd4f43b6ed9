package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfleet/quantfleet/internal/strategy"
	"github.com/quantfleet/quantfleet/pkg/riskmetrics"
)

// PoolInterface is the subset of pgxpool.Pool the trade store uses,
// narrow so tests can substitute pgxmock.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PgTradeStore persists trades and equity snapshots in Postgres.
type PgTradeStore struct {
	pool PoolInterface
}

// NewPgTradeStore creates a trade store over the given pool.
func NewPgTradeStore(pool PoolInterface) *PgTradeStore {
	return &PgTradeStore{pool: pool}
}

// NewPgTradeStoreWithPool creates a trade store over a pgxpool.Pool.
func NewPgTradeStoreWithPool(pool *pgxpool.Pool) *PgTradeStore {
	return &PgTradeStore{pool: pool}
}

// Schema creates the tables the store needs. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          UUID PRIMARY KEY,
	agent_id    TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	side        TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price  DOUBLE PRECISION NOT NULL,
	quantity    DOUBLE PRECISION NOT NULL,
	pnl         DOUBLE PRECISION NOT NULL,
	roi         DOUBLE PRECISION NOT NULL,
	entry_time  TIMESTAMPTZ NOT NULL,
	exit_time   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_agent_exit ON trades (agent_id, exit_time DESC);

CREATE TABLE IF NOT EXISTS equity_snapshots (
	agent_id       TEXT NOT NULL,
	snapshot_time  TIMESTAMPTZ NOT NULL,
	account_value  DOUBLE PRECISION NOT NULL,
	total_pnl      DOUBLE PRECISION NOT NULL,
	return_percent DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (agent_id, snapshot_time)
);
`

// Migrate applies the schema.
func (s *PgTradeStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordTrade appends one closed trade. A missing ID is assigned here so
// callers can stay ignorant of identity generation.
func (s *PgTradeStore) RecordTrade(ctx context.Context, t strategy.Trade) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, agent_id, symbol, side, entry_price, exit_price, quantity, pnl, roi, entry_time, exit_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.AgentID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice,
		t.Quantity, t.Pnl, t.Roi, t.EntryTime, t.ExitTime)
	if err != nil {
		return fmt.Errorf("insert trade for %s: %w", t.AgentID, err)
	}
	return nil
}

// ListTrades returns the agent's most recent closed trades in
// chronological order. limit <= 0 means no limit.
func (s *PgTradeStore) ListTrades(ctx context.Context, agentID string, limit int) ([]strategy.Trade, error) {
	query := `SELECT id, agent_id, symbol, side, entry_price, exit_price, quantity, pnl, roi, entry_time, exit_time
		FROM trades WHERE agent_id = $1 ORDER BY exit_time DESC`
	args := []interface{}{agentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades for %s: %w", agentID, err)
	}
	defer rows.Close()

	var trades []strategy.Trade
	for rows.Next() {
		var t strategy.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice,
			&t.Quantity, &t.Pnl, &t.Roi, &t.EntryTime, &t.ExitTime); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = strategy.Side(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades for %s: %w", agentID, err)
	}

	// Reverse into chronological order for the learning engine.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// RecordEquity appends one equity snapshot for the agent.
func (s *PgTradeStore) RecordEquity(ctx context.Context, agentID string, snap riskmetrics.EquitySnapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO equity_snapshots (agent_id, snapshot_time, account_value, total_pnl, return_percent)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (agent_id, snapshot_time) DO NOTHING`,
		agentID, snap.Timestamp, snap.AccountValue, snap.TotalPnl, snap.ReturnPercent)
	if err != nil {
		return fmt.Errorf("insert equity snapshot for %s: %w", agentID, err)
	}
	return nil
}

// ListEquity returns the agent's snapshots in chronological order.
// limit <= 0 means no limit.
func (s *PgTradeStore) ListEquity(ctx context.Context, agentID string, limit int) ([]riskmetrics.EquitySnapshot, error) {
	query := `SELECT snapshot_time, account_value, total_pnl, return_percent
		FROM equity_snapshots WHERE agent_id = $1 ORDER BY snapshot_time DESC`
	args := []interface{}{agentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query equity snapshots for %s: %w", agentID, err)
	}
	defer rows.Close()

	var snaps []riskmetrics.EquitySnapshot
	for rows.Next() {
		var snap riskmetrics.EquitySnapshot
		if err := rows.Scan(&snap.Timestamp, &snap.AccountValue, &snap.TotalPnl, &snap.ReturnPercent); err != nil {
			return nil, fmt.Errorf("scan equity snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity snapshots for %s: %w", agentID, err)
	}

	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}
