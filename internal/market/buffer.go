// Package market provides the per-agent price history buffer and the
// technical analysis functions computed over it.
package market

import (
	"math"
	"time"
)

// DefaultBufferCapacity is the rolling window size used when no explicit
// capacity is configured.
const DefaultBufferCapacity = 100

// PricePoint is a single observed price with its arrival time.
type PricePoint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceBuffer is a fixed-capacity rolling window of recent prices. Oldest
// entries are evicted first. The buffer is confined to a single agent's
// evaluation loop and carries no locking.
type PriceBuffer struct {
	points   []PricePoint
	capacity int
}

// NewPriceBuffer creates a buffer holding at most capacity points. A
// non-positive capacity falls back to DefaultBufferCapacity.
func NewPriceBuffer(capacity int) *PriceBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &PriceBuffer{
		points:   make([]PricePoint, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a price observation, evicting the oldest point once the
// buffer is full. Non-finite or non-positive prices are ignored; callers
// that need to surface the rejection must validate before pushing.
func (b *PriceBuffer) Push(price float64, ts time.Time) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return
	}
	if len(b.points) == b.capacity {
		copy(b.points, b.points[1:])
		b.points = b.points[:len(b.points)-1]
	}
	b.points = append(b.points, PricePoint{Price: price, Timestamp: ts})
}

// Prices returns the buffered prices ordered oldest first. The slice is a
// copy; mutating it does not affect the buffer.
func (b *PriceBuffer) Prices() []float64 {
	out := make([]float64, len(b.points))
	for i, p := range b.points {
		out[i] = p.Price
	}
	return out
}

// Points returns the buffered points ordered oldest first.
func (b *PriceBuffer) Points() []PricePoint {
	out := make([]PricePoint, len(b.points))
	copy(out, b.points)
	return out
}

// Len returns the number of buffered points.
func (b *PriceBuffer) Len() int {
	return len(b.points)
}

// Last returns the most recent price, or 0 when the buffer is empty.
func (b *PriceBuffer) Last() float64 {
	if len(b.points) == 0 {
		return 0
	}
	return b.points[len(b.points)-1].Price
}
