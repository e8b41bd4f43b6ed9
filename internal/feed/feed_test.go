package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quantfleet/quantfleet/internal/strategy"
)

func TestSyntheticFeedDeterministic(t *testing.T) {
	ctx := context.Background()

	a := NewSyntheticFeed(50000, 500, 0.01, 10000)
	b := NewSyntheticFeed(50000, 500, 0.01, 10000)

	for i := 0; i < 20; i++ {
		pa, err := a.LatestPrice(ctx, "BTCUSDT")
		if err != nil {
			t.Fatalf("LatestPrice: %v", err)
		}
		pb, _ := b.LatestPrice(ctx, "BTCUSDT")
		if pa != pb {
			t.Fatalf("tick %d diverged: %v vs %v", i, pa, pb)
		}
		if pa <= 0 {
			t.Fatalf("tick %d non-positive price %v", i, pa)
		}
	}
}

func TestSyntheticFeedSymbolsIndependent(t *testing.T) {
	ctx := context.Background()
	f := NewSyntheticFeed(50000, 500, 0.01, 10000)

	// Advance BTC several ticks, then ETH must start from tick zero.
	var last float64
	for i := 0; i < 5; i++ {
		last, _ = f.LatestPrice(ctx, "BTCUSDT")
	}
	first, _ := f.LatestPrice(ctx, "ETHUSDT")
	base, _ := NewSyntheticFeed(50000, 500, 0.01, 10000).LatestPrice(ctx, "BTCUSDT")
	if first != base {
		t.Errorf("ETH first tick %v, want fresh walk start %v", first, base)
	}
	_ = last
}

func TestSyntheticFeedAccount(t *testing.T) {
	ctx := context.Background()
	f := NewSyntheticFeed(50000, 500, 0.01, 10000)

	snap, err := f.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Equity != 10000 {
		t.Errorf("Equity = %v, want 10000", snap.Equity)
	}

	f.SetAccount(9500, []strategy.Position{{Symbol: "BTCUSDT", Side: strategy.SideLong, Quantity: 0.1}})
	snap, _ = f.Snapshot(ctx)
	if snap.Equity != 9500 || len(snap.Positions) != 1 {
		t.Errorf("Snapshot after SetAccount = %+v", snap)
	}
}

func TestStreamFeedColdCache(t *testing.T) {
	f := NewStreamFeed("", []string{"BTCUSDT"}, time.Minute, zerolog.Nop())
	_, err := f.LatestPrice(context.Background(), "BTCUSDT")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("cold cache error = %v, want ErrUnavailable", err)
	}
}

func TestStreamPumpReleasesWatcher(t *testing.T) {
	// Upstream accepts the websocket and immediately drops it, the way a
	// flapping endpoint would.
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	f := NewStreamFeed(url, []string{"BTCUSDT"}, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		if err := f.pump(ctx); err == nil {
			t.Fatal("pump should fail when the server drops the connection")
		}
	}
	time.Sleep(100 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+5 {
		t.Fatalf("goroutines grew from %d to %d over 50 reconnects", before, after)
	}
}

func TestFearGreedFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"value":"80","value_classification":"Extreme Greed"}]}`))
	}))
	defer server.Close()

	f := NewFearGreedFeed(server.URL, zerolog.Nop())
	reading, err := f.Sentiment(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if reading.Sentiment != strategy.SentimentBullish {
		t.Errorf("Sentiment = %v, want bullish at index 80", reading.Sentiment)
	}
	if reading.Score != 60 {
		t.Errorf("Score = %v, want 60 (index 80 rescaled)", reading.Score)
	}
}

func TestFearGreedFeedCaches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"data":[{"value":"20","value_classification":"Extreme Fear"}]}`))
	}))
	defer server.Close()

	f := NewFearGreedFeed(server.URL, zerolog.Nop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.Sentiment(ctx, "BTCUSDT"); err != nil {
			t.Fatalf("Sentiment call %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1 (TTL cache)", calls)
	}
}

func TestFearGreedFeedDegradesToNeutral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFearGreedFeed(server.URL, zerolog.Nop())
	reading, err := f.Sentiment(context.Background(), "BTCUSDT")
	if err == nil {
		t.Fatal("expected error from failing upstream")
	}
	if reading.Sentiment != strategy.SentimentNeutral {
		t.Errorf("failed fetch sentiment = %v, want neutral", reading.Sentiment)
	}
}

func TestStaticSentiment(t *testing.T) {
	var s SentimentFeed = StaticSentiment{
		Reading: strategy.SentimentReading{Sentiment: strategy.SentimentBullish, Score: 75},
	}

	reading, err := s.Sentiment(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Sentiment: %v", err)
	}
	if reading.Sentiment != strategy.SentimentBullish || reading.Score != 75 {
		t.Errorf("reading = %+v, want the fixed bullish/75", reading)
	}
}

func TestIndexToReading(t *testing.T) {
	tests := []struct {
		index float64
		want  strategy.Sentiment
		score float64
	}{
		{0, strategy.SentimentBearish, -100},
		{40, strategy.SentimentBearish, -20},
		{50, strategy.SentimentNeutral, 0},
		{60, strategy.SentimentBullish, 20},
		{100, strategy.SentimentBullish, 100},
	}
	for _, tt := range tests {
		got := indexToReading(tt.index)
		if got.Sentiment != tt.want || got.Score != tt.score {
			t.Errorf("indexToReading(%v) = %+v, want %v/%v", tt.index, got, tt.want, tt.score)
		}
	}
}
