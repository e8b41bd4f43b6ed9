package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

const parameterKeyPrefix = "quantfleet:params:"

// RedisParameterStore keeps one JSON document per agent. Parameters
// have no TTL; they live until the learning engine overwrites them.
type RedisParameterStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisParameterStore wraps an existing Redis client.
func NewRedisParameterStore(client *redis.Client, log zerolog.Logger) *RedisParameterStore {
	return &RedisParameterStore{
		client: client,
		log:    log.With().Str("component", "parameter_store").Logger(),
	}
}

// Load fetches the agent's parameters, ErrNotFound when none are saved.
func (s *RedisParameterStore) Load(ctx context.Context, agentID string) (strategy.Parameters, error) {
	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	raw, err := s.client.Get(opCtx, parameterKeyPrefix+agentID).Result()
	if err == redis.Nil {
		return strategy.Parameters{}, fmt.Errorf("%w: parameters for agent %s", ErrNotFound, agentID)
	}
	if err != nil {
		return strategy.Parameters{}, fmt.Errorf("redis get parameters for %s: %w", agentID, err)
	}

	var p strategy.Parameters
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return strategy.Parameters{}, fmt.Errorf("unmarshal parameters for %s: %w", agentID, err)
	}
	return p, nil
}

// Save overwrites the agent's parameters atomically.
func (s *RedisParameterStore) Save(ctx context.Context, agentID string, p strategy.Parameters) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal parameters for %s: %w", agentID, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.client.Set(opCtx, parameterKeyPrefix+agentID, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set parameters for %s: %w", agentID, err)
	}

	s.log.Debug().
		Str("agent_id", agentID).
		Float64("leverage", p.Leverage).
		Float64("optimization_score", p.OptimizationScore).
		Msg("Parameters saved")
	return nil
}
