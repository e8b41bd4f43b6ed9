package strategy

import (
	"fmt"
	"math"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

// GridStrategy maintains buy/sell ladders at fixed percentage intervals
// around an anchor price. Crossing down into a level buys, crossing up
// sells, and each crossing triggers exactly one order: the ladder index is
// remembered so the same level cannot fire twice until price leaves it.
type GridStrategy struct {
	buf    *market.PriceBuffer
	risk   *risk.Manager
	params Parameters

	anchor    float64
	lastLevel int
	prevLevel int
	armed     bool
}

// NewGridStrategy creates the grid variant. The anchor is fixed at the
// first evaluated price.
func NewGridStrategy(buf *market.PriceBuffer, riskMgr *risk.Manager, params Parameters) *GridStrategy {
	return &GridStrategy{buf: buf, risk: riskMgr, params: params}
}

func (s *GridStrategy) Name() string { return "grid" }

func (s *GridStrategy) SetParameters(p Parameters) { s.params = p }

// consumeLevel marks the ladder index as fired, keeping the previous one
// so SignalSuppressed can re-arm it.
func (s *GridStrategy) consumeLevel(level int) {
	s.prevLevel = s.lastLevel
	s.lastLevel = level
}

// SignalSuppressed re-arms the last consumed level. The engine calls it
// when it withholds an emitted order, so the crossing can fire again on a
// later tick instead of being silently swallowed.
func (s *GridStrategy) SignalSuppressed() {
	s.lastLevel = s.prevLevel
}

// GenerateSignal compares the current ladder index against the last one
// and emits one order per level crossed.
func (s *GridStrategy) GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal {
	interval := s.params.GridIntervalPercent
	levels := s.params.GridLevels
	if interval <= 0 || levels <= 0 {
		return hold(price, "grid disabled: interval %.2f%%, levels %d", interval, levels)
	}

	if !s.armed {
		s.anchor = price
		s.lastLevel = 0
		s.armed = true
		return hold(price, "grid anchored at %.2f, interval %.2f%%, %d levels", price, interval, levels)
	}

	// Ladder index of the nearest grid line to the current price.
	step := s.anchor * interval / 100
	level := int(math.Round((price - s.anchor) / step))

	half := levels / 2
	if level > half {
		level = half
	} else if level < -half {
		level = -half
	}

	if level == s.lastLevel {
		return hold(price, "grid idle at level %+d (anchor %.2f)", level, s.anchor)
	}

	vol := market.Volatility(s.buf.Prices())
	notional := s.risk.CalculatePositionSize(account.Equity, vol, s.params.Leverage, price)
	if notional <= 0 {
		return hold(price, "risk rejected: grid notional 0 at equity %.2f", account.Equity)
	}

	// Fixed quantity per rung: total notional spread evenly across the
	// ladder.
	qty := math.Floor(notional/float64(levels)/price*quantityPrecision) / quantityPrecision
	if qty <= 0 {
		return hold(price, "risk rejected: grid quantity 0 at price %.2f", price)
	}

	levelPrice := s.anchor + float64(level)*step

	if level < s.lastLevel {
		s.consumeLevel(level)
		return Signal{
			Action:     ActionBuy,
			Quantity:   qty,
			Price:      price,
			TakeProfit: levelPrice + step,
			StopLoss:   s.anchor - float64(half+1)*step,
			Confidence: 0.55,
			Reason: fmt.Sprintf("grid buy: crossed down to level %+d at %.2f (anchor %.2f, interval %.2f%%)",
				level, levelPrice, s.anchor, interval),
		}
	}

	if openQuantity(positions) <= 0 {
		return hold(price, "grid sell skipped at level %+d: no inventory", level)
	}

	s.consumeLevel(level)
	return Signal{
		Action:     ActionSell,
		Quantity:   qty,
		Price:      price,
		Confidence: 0.55,
		Reason: fmt.Sprintf("grid sell: crossed up to level %+d at %.2f (anchor %.2f, interval %.2f%%)",
			level, levelPrice, s.anchor, interval),
	}
}
