package testutil

import (
	"fmt"
	"sync"
)

// CallIDs generates "<prefix>-1", "<prefix>-2", ... and never runs out.
// Implements engine.CallIDGenerator.
type CallIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewCallIDs returns a generator for prefix. An empty prefix means "call".
func NewCallIDs(prefix string) *CallIDs {
	if prefix == "" {
		prefix = "call"
	}
	return &CallIDs{prefix: prefix}
}

// Generate returns the next call ID.
func (g *CallIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
