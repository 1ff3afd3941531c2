package testfixtures

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// IDGenerator produces sequential identifiers of the form "<prefix>-<n>".
type IDGenerator struct {
	counter atomic.Uint64

	mu     sync.RWMutex
	prefix string
}

// NewIDGenerator returns a generator starting at 1. An empty prefix becomes "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier. It is safe for concurrent use.
func (g *IDGenerator) Next() string {
	n := g.counter.Add(1)
	g.mu.RLock()
	prefix := g.prefix
	g.mu.RUnlock()
	return prefix + "-" + strconv.FormatUint(n, 10)
}

// Issued reports how many identifiers have been handed out since the last SetCounter.
func (g *IDGenerator) Issued() uint64 {
	return g.counter.Load()
}

// NextFunc exposes Next for injection into services.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// SetPrefix updates the generator prefix.
func (g *IDGenerator) SetPrefix(prefix string) {
	g.mu.Lock()
	g.prefix = prefix
	g.mu.Unlock()
}

// SetCounter sets the last issued sequence number.
func (g *IDGenerator) SetCounter(counter uint64) {
	g.counter.Store(counter)
}
