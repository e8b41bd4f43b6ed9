package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

// MinHistory is the number of buffered ticks required before any variant
// is allowed to decide.
const MinHistory = 5

// Engine drives one agent's strategy through the common evaluation
// pipeline: input validation, history and cooldown gates, circuit breaker,
// variant dispatch and the panic-to-HOLD failure boundary.
type Engine struct {
	strat Strategy
	buf   *market.PriceBuffer
	risk  *risk.Manager
	state *State
	log   zerolog.Logger
}

// NewEngine wires a strategy variant to its price buffer, risk manager and
// per-agent state.
func NewEngine(strat Strategy, buf *market.PriceBuffer, riskMgr *risk.Manager, state *State, log zerolog.Logger) *Engine {
	return &Engine{
		strat: strat,
		buf:   buf,
		risk:  riskMgr,
		state: state,
		log:   log.With().Str("strategy", strat.Name()).Logger(),
	}
}

// State exposes the per-agent state for the host loop (peak equity,
// phase, trade counters).
func (e *Engine) State() *State {
	return e.state
}

// SetParameters propagates a learning update to the variant.
func (e *Engine) SetParameters(p Parameters) {
	e.strat.SetParameters(p)
}

// suppressionAware variants track one-shot triggers (a grid level, a
// breakout arm) and re-arm them when the engine withholds their order.
type suppressionAware interface {
	SignalSuppressed()
}

func (e *Engine) notifySuppressed() {
	if s, ok := e.strat.(suppressionAware); ok {
		s.SignalSuppressed()
	}
}

// Evaluate runs one decision cycle. It never returns an error and never
// panics: every failure path degrades to a HOLD signal carrying a
// diagnostic reason, since a missed cycle is equivalent to one HOLD tick.
func (e *Engine) Evaluate(price float64, now time.Time, account AccountSnapshot) (sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("Strategy evaluation panicked, holding")
			sig = Signal{
				Action: ActionHold,
				Price:  price,
				Reason: fmt.Sprintf("computation error: %v", r),
			}
		}
	}()

	if !finitePositive(price) {
		return Signal{Action: ActionHold, Reason: fmt.Sprintf("invalid input: price %v", price)}
	}
	if math.IsNaN(account.Equity) || math.IsInf(account.Equity, 0) || account.Equity <= 0 {
		return Signal{Action: ActionHold, Price: price, Reason: fmt.Sprintf("invalid input: equity %v", account.Equity)}
	}

	e.buf.Push(price, now)
	if e.buf.Len() < MinHistory {
		return Signal{
			Action: ActionHold,
			Price:  price,
			Reason: fmt.Sprintf("building history: %d/%d ticks", e.buf.Len(), MinHistory),
		}
	}

	e.state.ObserveEquity(account.Equity)
	e.state.ObservePositions(account.Positions)

	if status := e.risk.CheckCircuitBreaker(account.Equity, e.state.PeakEquity); status.ShouldStop {
		return Signal{Action: ActionHold, Price: price, Reason: "risk rejected: " + status.Reason}
	}
	if e.risk.ExceedsDailyTrades(e.state.TradesToday) {
		return Signal{
			Action: ActionHold,
			Price:  price,
			Reason: fmt.Sprintf("risk rejected: daily trade limit reached (%d)", e.state.TradesToday),
		}
	}

	sig = e.strat.GenerateSignal(price, account, account.Positions)

	if sig.Action != ActionHold {
		if !e.state.CooldownElapsed(now) {
			e.notifySuppressed()
			return Signal{
				Action: ActionHold,
				Price:  price,
				Reason: fmt.Sprintf("cooldown active since %s, suppressing %s", e.state.LastTradeTime.Format(time.RFC3339), sig.Action),
			}
		}
		if sig.Quantity <= 0 {
			e.notifySuppressed()
			return Signal{Action: ActionHold, Price: price, Reason: "risk rejected: zero quantity from " + sig.Reason}
		}
		e.state.MarkTrade(now, price, sig.Action)
	}

	e.log.Debug().
		Str("action", string(sig.Action)).
		Float64("quantity", sig.Quantity).
		Float64("confidence", sig.Confidence).
		Str("reason", sig.Reason).
		Msg("Signal generated")

	return sig
}
