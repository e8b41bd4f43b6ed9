// Package agents runs the per-agent evaluation loop: pull inputs, run
// the strategy engine, publish the signal, and periodically feed closed
// trades through the learning engine.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/feed"
	"github.com/quantfleet/quantfleet/internal/learning"
	"github.com/quantfleet/quantfleet/internal/store"
	"github.com/quantfleet/quantfleet/internal/strategy"
	"github.com/quantfleet/quantfleet/pkg/riskmetrics"
)

const (
	// ControlSubject carries fleet-wide pause/resume events.
	ControlSubject = "quantfleet.control"

	// signalSubjectPrefix is completed with the agent id.
	signalSubjectPrefix = "quantfleet.signals."

	defaultStepInterval  = 5 * time.Second
	defaultLearnInterval = 15 * time.Minute
	equitySampleEvery    = 12 // record one equity snapshot per N steps
	learnTradeWindow     = 500
)

// ControlEvent is the payload on ControlSubject.
type ControlEvent struct {
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

const (
	EventTradingPaused  = "trading_paused"
	EventTradingResumed = "trading_resumed"
)

// Config identifies one agent and its cadence.
type Config struct {
	ID            string
	Symbol        string
	StrategyName  string
	StepInterval  time.Duration
	LearnInterval time.Duration
}

// Runner owns one agent: its engine, its feeds, and its learning loop.
type Runner struct {
	cfg       Config
	engine    *strategy.Engine
	prices    feed.PriceFeed
	account   feed.AccountFeed
	params    store.ParameterStore
	trades    store.TradeStore
	optimizer *learning.Optimizer

	natsConn   *nats.Conn
	controlSub *nats.Subscription

	paused   bool
	pausedMu sync.RWMutex

	steps   uint64
	initial float64 // first observed equity, baseline for return percent

	metrics *runnerMetrics
	log     zerolog.Logger
}

type runnerMetrics struct {
	stepsTotal   prometheus.Counter
	stepDuration prometheus.Histogram
	signalsTotal *prometheus.CounterVec
	status       prometheus.Gauge
}

func newRunnerMetrics(agentID string) *runnerMetrics {
	labels := prometheus.Labels{"agent": agentID}
	return &runnerMetrics{
		stepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "quantfleet_agent_steps_total",
			Help:        "Total evaluation steps per agent",
			ConstLabels: labels,
		}),
		stepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "quantfleet_agent_step_duration_seconds",
			Help:        "Duration of evaluation steps per agent",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		signalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "quantfleet_agent_signals_total",
			Help:        "Signals emitted per agent by action",
			ConstLabels: labels,
		}, []string{"action"}),
		status: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "quantfleet_agent_status",
			Help:        "Agent status (1=running, 0=stopped)",
			ConstLabels: labels,
		}),
	}
}

// NewRunner assembles a runner. natsConn may be nil; signals are then
// only logged.
func NewRunner(
	cfg Config,
	engine *strategy.Engine,
	prices feed.PriceFeed,
	account feed.AccountFeed,
	params store.ParameterStore,
	trades store.TradeStore,
	optimizer *learning.Optimizer,
	natsConn *nats.Conn,
	log zerolog.Logger,
) *Runner {
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = defaultStepInterval
	}
	if cfg.LearnInterval <= 0 {
		cfg.LearnInterval = defaultLearnInterval
	}
	return &Runner{
		cfg:       cfg,
		engine:    engine,
		prices:    prices,
		account:   account,
		params:    params,
		trades:    trades,
		optimizer: optimizer,
		natsConn:  natsConn,
		metrics:   newRunnerMetrics(cfg.ID),
		log: log.With().
			Str("agent", cfg.ID).
			Str("symbol", cfg.Symbol).
			Str("strategy", cfg.StrategyName).
			Logger(),
	}
}

// Run drives the evaluation loop until ctx is canceled. The learning
// loop runs inside the same call on its own slower ticker.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.subscribeControl(); err != nil {
		return err
	}
	defer r.unsubscribeControl()

	r.metrics.status.Set(1)
	defer r.metrics.status.Set(0)
	r.log.Info().
		Dur("step_interval", r.cfg.StepInterval).
		Dur("learn_interval", r.cfg.LearnInterval).
		Msg("Agent started")

	stepTicker := time.NewTicker(r.cfg.StepInterval)
	defer stepTicker.Stop()
	learnTicker := time.NewTicker(r.cfg.LearnInterval)
	defer learnTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("Agent stopped")
			return ctx.Err()
		case <-stepTicker.C:
			r.step(ctx)
		case <-learnTicker.C:
			r.learn(ctx)
		}
	}
}

// step runs one evaluation cycle.
func (r *Runner) step(ctx context.Context) {
	if r.IsPaused() {
		r.log.Debug().Msg("Trading paused, skipping step")
		return
	}

	start := time.Now()
	defer func() {
		r.metrics.stepsTotal.Inc()
		r.metrics.stepDuration.Observe(time.Since(start).Seconds())
	}()

	// Fresh parameters each cycle; a missing record keeps the current set.
	if p, err := r.params.Load(ctx, r.cfg.ID); err == nil {
		r.engine.SetParameters(p)
	} else if !errors.Is(err, store.ErrNotFound) {
		r.log.Warn().Err(err).Msg("Parameter load failed, keeping current set")
	}

	price, err := r.prices.LatestPrice(ctx, r.cfg.Symbol)
	if err != nil {
		r.log.Warn().Err(err).Msg("No price this cycle")
		return
	}
	account, err := r.account.Snapshot(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("No account snapshot this cycle")
		account = strategy.AccountSnapshot{}
	}

	signal := r.engine.Evaluate(price, time.Now(), account)
	r.metrics.signalsTotal.WithLabelValues(string(signal.Action)).Inc()
	r.publishSignal(signal)

	r.steps++
	if r.steps%equitySampleEvery == 1 && account.Equity > 0 {
		r.recordEquity(ctx, account.Equity)
	}
}

// learn runs one optimization pass over the agent's closed trades.
func (r *Runner) learn(ctx context.Context) {
	trades, err := r.trades.ListTrades(ctx, r.cfg.ID, learnTradeWindow)
	if err != nil {
		r.log.Warn().Err(err).Msg("Trade history unavailable, skipping optimization")
		return
	}

	current, err := r.params.Load(ctx, r.cfg.ID)
	if errors.Is(err, store.ErrNotFound) {
		current = strategy.DefaultParameters()
	} else if err != nil {
		r.log.Warn().Err(err).Msg("Parameter load failed, skipping optimization")
		return
	}

	update := r.optimizer.Optimize(r.cfg.ID, current, trades)
	if !update.Applied {
		r.log.Debug().Str("reason", update.Reason).Msg("No parameter change")
		return
	}

	if err := r.params.Save(ctx, r.cfg.ID, update.New); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist optimized parameters")
		return
	}
	r.engine.SetParameters(update.New)
	r.publishUpdate(update)
}

func (r *Runner) recordEquity(ctx context.Context, equity float64) {
	if r.initial == 0 {
		r.initial = equity
	}
	snap := riskmetrics.EquitySnapshot{
		Timestamp:     time.Now().UTC(),
		AccountValue:  equity,
		TotalPnl:      equity - r.initial,
		ReturnPercent: (equity - r.initial) / r.initial * 100,
	}
	if err := r.trades.RecordEquity(ctx, r.cfg.ID, snap); err != nil {
		r.log.Warn().Err(err).Msg("Failed to record equity snapshot")
	}
}

// signalEnvelope is the published form of a signal.
type signalEnvelope struct {
	AgentID   string          `json:"agent_id"`
	Symbol    string          `json:"symbol"`
	Strategy  string          `json:"strategy"`
	Signal    strategy.Signal `json:"signal"`
	Timestamp time.Time       `json:"timestamp"`
}

func (r *Runner) publishSignal(sig strategy.Signal) {
	logEvent := r.log.Debug()
	if sig.Action != strategy.ActionHold {
		logEvent = r.log.Info()
	}
	logEvent.
		Str("action", string(sig.Action)).
		Float64("quantity", sig.Quantity).
		Float64("price", sig.Price).
		Float64("confidence", sig.Confidence).
		Str("reason", sig.Reason).
		Msg("Signal generated")

	if r.natsConn == nil {
		return
	}
	payload, err := json.Marshal(signalEnvelope{
		AgentID:   r.cfg.ID,
		Symbol:    r.cfg.Symbol,
		Strategy:  r.cfg.StrategyName,
		Signal:    sig,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to marshal signal")
		return
	}
	if err := r.natsConn.Publish(signalSubjectPrefix+r.cfg.ID, payload); err != nil {
		r.log.Warn().Err(err).Msg("Failed to publish signal")
	}
}

func (r *Runner) publishUpdate(update learning.Update) {
	if r.natsConn == nil {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to marshal learning update")
		return
	}
	if err := r.natsConn.Publish("quantfleet.learning."+r.cfg.ID, payload); err != nil {
		r.log.Warn().Err(err).Msg("Failed to publish learning update")
	}
}

// subscribeControl listens for fleet-wide pause/resume events.
func (r *Runner) subscribeControl() error {
	if r.natsConn == nil {
		return nil
	}
	sub, err := r.natsConn.Subscribe(ControlSubject, r.handleControlEvent)
	if err != nil {
		return fmt.Errorf("subscribe to control subject: %w", err)
	}
	r.controlSub = sub
	r.log.Info().Str("subject", ControlSubject).Msg("Subscribed to control events")
	return nil
}

func (r *Runner) unsubscribeControl() {
	if r.controlSub == nil {
		return
	}
	if err := r.controlSub.Unsubscribe(); err != nil {
		r.log.Error().Err(err).Msg("Error unsubscribing from control subject")
	}
}

func (r *Runner) handleControlEvent(msg *nats.Msg) {
	var event ControlEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		r.log.Error().Err(err).Msg("Failed to unmarshal control event")
		return
	}

	switch event.Event {
	case EventTradingPaused:
		r.pausedMu.Lock()
		r.paused = true
		r.pausedMu.Unlock()
		r.log.Warn().Str("reason", event.Reason).Msg("Trading paused, halting signal generation")
	case EventTradingResumed:
		r.pausedMu.Lock()
		r.paused = false
		r.pausedMu.Unlock()
		r.log.Info().Msg("Trading resumed")
	default:
		r.log.Debug().Str("event", event.Event).Msg("Unknown control event")
	}
}

// IsPaused reports whether trading is currently paused.
func (r *Runner) IsPaused() bool {
	r.pausedMu.RLock()
	defer r.pausedMu.RUnlock()
	return r.paused
}
