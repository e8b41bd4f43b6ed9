package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/quantfleet/quantfleet/internal/strategy"
	"github.com/quantfleet/quantfleet/pkg/riskmetrics"
)

// MemoryParameterStore is the fallback used when Redis is not
// configured. Safe for concurrent agents.
type MemoryParameterStore struct {
	mu     sync.RWMutex
	params map[string]strategy.Parameters
}

// NewMemoryParameterStore creates an empty in-memory parameter store.
func NewMemoryParameterStore() *MemoryParameterStore {
	return &MemoryParameterStore{params: make(map[string]strategy.Parameters)}
}

func (s *MemoryParameterStore) Load(_ context.Context, agentID string) (strategy.Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[agentID]
	if !ok {
		return strategy.Parameters{}, fmt.Errorf("%w: parameters for agent %s", ErrNotFound, agentID)
	}
	return p, nil
}

func (s *MemoryParameterStore) Save(_ context.Context, agentID string, p strategy.Parameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[agentID] = p
	return nil
}

// MemoryTradeStore is the fallback used when Postgres is not
// configured. Trades and snapshots are kept in arrival order.
type MemoryTradeStore struct {
	mu     sync.RWMutex
	trades map[string][]strategy.Trade
	equity map[string][]riskmetrics.EquitySnapshot
}

// NewMemoryTradeStore creates an empty in-memory trade store.
func NewMemoryTradeStore() *MemoryTradeStore {
	return &MemoryTradeStore{
		trades: make(map[string][]strategy.Trade),
		equity: make(map[string][]riskmetrics.EquitySnapshot),
	}
}

func (s *MemoryTradeStore) RecordTrade(_ context.Context, t strategy.Trade) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[t.AgentID] = append(s.trades[t.AgentID], t)
	return nil
}

func (s *MemoryTradeStore) ListTrades(_ context.Context, agentID string, limit int) ([]strategy.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.trades[agentID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]strategy.Trade, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryTradeStore) RecordEquity(_ context.Context, agentID string, snap riskmetrics.EquitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equity[agentID] = append(s.equity[agentID], snap)
	return nil
}

func (s *MemoryTradeStore) ListEquity(_ context.Context, agentID string, limit int) ([]riskmetrics.EquitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.equity[agentID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]riskmetrics.EquitySnapshot, len(all))
	copy(out, all)
	return out, nil
}
