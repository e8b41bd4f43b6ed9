package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultStreamURL is the Binance combined-stream websocket endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443/stream"

const (
	streamReadTimeout    = 90 * time.Second
	streamReconnectDelay = 5 * time.Second
)

// streamTrade is the payload of one trade event on a combined stream.
type streamTrade struct {
	Data struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
	} `json:"data"`
}

// StreamFeed subscribes to trade streams over a websocket and caches the
// last price per symbol. LatestPrice never blocks on the network; it
// serves the cached tick and errors when the cache is cold or stale.
type StreamFeed struct {
	url      string
	symbols  []string
	staleCap time.Duration
	log      zerolog.Logger

	mu    sync.RWMutex
	last  map[string]float64
	seen  map[string]time.Time
	nowFn func() time.Time
}

// NewStreamFeed creates a stream feed for the given symbols. staleAfter
// bounds how old a cached tick may be before it stops being served.
func NewStreamFeed(url string, symbols []string, staleAfter time.Duration, log zerolog.Logger) *StreamFeed {
	if url == "" {
		url = DefaultStreamURL
	}
	return &StreamFeed{
		url:      url,
		symbols:  symbols,
		staleCap: staleAfter,
		log:      log.With().Str("component", "stream_feed").Logger(),
		last:     make(map[string]float64),
		seen:     make(map[string]time.Time),
		nowFn:    time.Now,
	}
}

// Run connects and pumps trade events into the cache until ctx is
// canceled, reconnecting on any read failure.
func (s *StreamFeed) Run(ctx context.Context) error {
	for {
		if err := s.pump(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("Stream disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(streamReconnectDelay):
		}
	}
}

func (s *StreamFeed) pump(ctx context.Context) error {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	url := s.url + "?streams=" + strings.Join(streams, "/")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()
	s.log.Info().Strs("symbols", s.symbols).Msg("Stream connected")

	// The watcher must not outlive this pump: reconnects call pump again
	// and each stale watcher would otherwise block until shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(s.nowFn().Add(streamReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var event streamTrade
		if err := json.Unmarshal(msg, &event); err != nil {
			s.log.Debug().Err(err).Msg("Skipping unparseable stream message")
			continue
		}
		price, err := strconv.ParseFloat(event.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		s.mu.Lock()
		s.last[event.Data.Symbol] = price
		s.seen[event.Data.Symbol] = s.nowFn()
		s.mu.Unlock()
	}
}

// LatestPrice serves the cached tick for the symbol.
func (s *StreamFeed) LatestPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	price, ok := s.last[symbol]
	seen := s.seen[symbol]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("%w: no tick yet for %s", ErrUnavailable, symbol)
	}
	if s.staleCap > 0 && s.nowFn().Sub(seen) > s.staleCap {
		return 0, fmt.Errorf("%w: tick for %s is stale", ErrUnavailable, symbol)
	}
	return price, nil
}
