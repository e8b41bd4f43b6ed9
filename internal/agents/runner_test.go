package agents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quantfleet/quantfleet/internal/feed"
	"github.com/quantfleet/quantfleet/internal/learning"
	"github.com/quantfleet/quantfleet/internal/risk"
	"github.com/quantfleet/quantfleet/internal/store"
	"github.com/quantfleet/quantfleet/internal/strategy"
)

func startEmbeddedNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}
	ns, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		t.Fatal("NATS server did not start in time")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

// Agent IDs must be unique per test: runner metrics register with the
// agent ID as a const label on the default Prometheus registry.
func newTestRunner(t *testing.T, id string, nc *nats.Conn) *Runner {
	t.Helper()

	cfg := Config{
		ID:            id,
		Symbol:        "BTCUSDT",
		StrategyName:  StrategyGrid,
		StepInterval:  10 * time.Millisecond,
		LearnInterval: time.Hour,
	}

	engine, err := BuildEngine(cfg, strategy.DefaultParameters(), risk.DefaultLimits(),
		time.Minute, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	synthetic := feed.NewSyntheticFeed(50000, 2000, 0.05, 10000)
	return NewRunner(cfg, engine, synthetic, synthetic,
		store.NewMemoryParameterStore(), store.NewMemoryTradeStore(),
		learning.NewOptimizer(zerolog.Nop()), nc, zerolog.Nop())
}

func TestRunnerStopsOnCancel(t *testing.T) {
	runner := newTestRunner(t, "cancel-agent", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunnerPublishesSignals(t *testing.T) {
	ns := startEmbeddedNATS(t)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	received := make(chan *nats.Msg, 64)
	_, err = nc.ChanSubscribe("quantfleet.signals.signal-agent", received)
	require.NoError(t, err)

	runner := newTestRunner(t, "signal-agent", nc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	select {
	case msg := <-received:
		var envelope signalEnvelope
		require.NoError(t, json.Unmarshal(msg.Data, &envelope))
		require.Equal(t, "signal-agent", envelope.AgentID)
		require.Equal(t, "BTCUSDT", envelope.Symbol)
		require.NotEmpty(t, envelope.Signal.Action)
	case <-time.After(3 * time.Second):
		t.Fatal("no signal published")
	}
}

func TestRunnerPauseResume(t *testing.T) {
	ns := startEmbeddedNATS(t)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	runner := newTestRunner(t, "pause-agent", nc)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	// Let the control subscription come up.
	time.Sleep(100 * time.Millisecond)
	require.False(t, runner.IsPaused())

	pause, _ := json.Marshal(ControlEvent{Event: EventTradingPaused, Reason: "risk halt"})
	require.NoError(t, nc.Publish(ControlSubject, pause))
	require.Eventually(t, runner.IsPaused, 2*time.Second, 10*time.Millisecond,
		"runner did not pause")

	resume, _ := json.Marshal(ControlEvent{Event: EventTradingResumed})
	require.NoError(t, nc.Publish(ControlSubject, resume))
	require.Eventually(t, func() bool { return !runner.IsPaused() }, 2*time.Second, 10*time.Millisecond,
		"runner did not resume")
}
