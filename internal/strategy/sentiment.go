package strategy

import (
	"fmt"

	"github.com/quantfleet/quantfleet/internal/market"
	"github.com/quantfleet/quantfleet/internal/risk"
)

// SentimentSourceFunc returns the latest external sentiment reading for a
// symbol. Errors degrade to a neutral reading.
type SentimentSourceFunc func(symbol string) (SentimentReading, error)

// SentimentStrategy is the buy-and-hold variant: a single full-size entry,
// no stop-loss or take-profit, never exiting on price action. The external
// sentiment score is re-read each cycle purely to annotate conviction in
// the signal reason.
type SentimentStrategy struct {
	buf    *market.PriceBuffer
	risk   *risk.Manager
	state  *State
	params Parameters
	symbol string
	source SentimentSourceFunc
}

// NewSentimentStrategy creates the sentiment buy-and-hold variant.
func NewSentimentStrategy(buf *market.PriceBuffer, riskMgr *risk.Manager, state *State, params Parameters, symbol string, source SentimentSourceFunc) *SentimentStrategy {
	return &SentimentStrategy{buf: buf, risk: riskMgr, state: state, params: params, symbol: symbol, source: source}
}

func (s *SentimentStrategy) Name() string { return "sentiment-hold" }

func (s *SentimentStrategy) SetParameters(p Parameters) { s.params = p }

// GenerateSignal performs the one-time entry, then holds forever while
// annotating the current sentiment.
func (s *SentimentStrategy) GenerateSignal(price float64, account AccountSnapshot, positions []Position) Signal {
	reading := s.readSentiment()

	if s.state.InitialEntryDone || openQuantity(positions) > 0 {
		return hold(price, "holding position, sentiment %s (score %.0f)", reading.Sentiment, reading.Score)
	}

	vol := market.Volatility(s.buf.Prices())
	qty := sizedQuantity(s.risk, account.Equity, vol, s.params.Leverage, s.params.PositionSizeFraction, price)
	if qty <= 0 {
		return hold(price, "risk rejected: entry size 0 at equity %.2f", account.Equity)
	}

	// Conviction tracks the sentiment score; the entry happens either way.
	confidence := clampConfidence(0.5+reading.Score/200, 0.9)

	return Signal{
		Action:     ActionBuy,
		Quantity:   qty,
		Price:      price,
		Confidence: confidence,
		Reason: fmt.Sprintf("buy-and-hold entry at %.2f, sentiment %s (score %.0f)",
			price, reading.Sentiment, reading.Score),
	}
}

func (s *SentimentStrategy) readSentiment() SentimentReading {
	if s.source == nil {
		return SentimentReading{Sentiment: SentimentNeutral}
	}
	reading, err := s.source(s.symbol)
	if err != nil {
		return SentimentReading{Sentiment: SentimentNeutral}
	}
	return reading
}
