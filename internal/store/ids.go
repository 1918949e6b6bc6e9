package store

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator hands out decimal millisecond tokens that never repeat or go
// backwards within a process, even when the clock does.
type IDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.now().UnixMilli()
	if next <= g.last {
		next = g.last + 1
	}
	g.last = next
	return strconv.FormatInt(next, 10)
}
