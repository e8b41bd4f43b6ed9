package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

// DefaultFearGreedURL serves the crypto Fear & Greed index.
const DefaultFearGreedURL = "https://api.alternative.me/fng/"

const sentimentCacheTTL = 5 * time.Minute

// FearGreedFeed maps the market-wide Fear & Greed index (0..100) onto
// the advisory sentiment contract. The index is not per-symbol, so one
// cached reading serves every symbol.
type FearGreedFeed struct {
	url    string
	client *http.Client
	log    zerolog.Logger

	mu      sync.Mutex
	cached  strategy.SentimentReading
	fetched time.Time
	nowFn   func() time.Time
}

// NewFearGreedFeed creates a sentiment feed backed by the Fear & Greed
// API. An empty url selects the public endpoint.
func NewFearGreedFeed(url string, log zerolog.Logger) *FearGreedFeed {
	if url == "" {
		url = DefaultFearGreedURL
	}
	return &FearGreedFeed{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With().Str("component", "sentiment_feed").Logger(),
		nowFn:  time.Now,
	}
}

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// Sentiment returns the cached index, refreshing it once per TTL.
func (f *FearGreedFeed) Sentiment(ctx context.Context, _ string) (strategy.SentimentReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.fetched.IsZero() && f.nowFn().Sub(f.fetched) < sentimentCacheTTL {
		return f.cached, nil
	}

	reading, err := f.fetch(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("Sentiment fetch failed, reporting neutral")
		return strategy.SentimentReading{Sentiment: strategy.SentimentNeutral}, err
	}

	f.cached = reading
	f.fetched = f.nowFn()
	return reading, nil
}

func (f *FearGreedFeed) fetch(ctx context.Context) (strategy.SentimentReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return strategy.SentimentReading{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return strategy.SentimentReading{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return strategy.SentimentReading{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return strategy.SentimentReading{}, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Data) == 0 {
		return strategy.SentimentReading{}, fmt.Errorf("%w: empty index payload", ErrUnavailable)
	}

	value, err := strconv.ParseFloat(body.Data[0].Value, 64)
	if err != nil {
		return strategy.SentimentReading{}, fmt.Errorf("parse index value %q: %w", body.Data[0].Value, err)
	}
	return indexToReading(value), nil
}

// indexToReading rescales the 0..100 index into a [-100, 100] score
// centered on 50, classifying the tails as bullish/bearish.
func indexToReading(index float64) strategy.SentimentReading {
	score := (index - 50) * 2
	reading := strategy.SentimentReading{Sentiment: strategy.SentimentNeutral, Score: score}
	switch {
	case index >= 60:
		reading.Sentiment = strategy.SentimentBullish
	case index <= 40:
		reading.Sentiment = strategy.SentimentBearish
	}
	return reading
}

// StaticSentiment is a fixed-value sentiment feed for paper runs, where
// hitting the public index would leak network calls into offline mode.
type StaticSentiment struct {
	Reading strategy.SentimentReading
}

// Sentiment returns the fixed reading.
func (s StaticSentiment) Sentiment(context.Context, string) (strategy.SentimentReading, error) {
	return s.Reading, nil
}
