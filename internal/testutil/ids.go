package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs returns "<prefix>-1", "<prefix>-2", ... from successive calls.
//
// This enables deterministic test execution and golden trace comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (g *SequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n), nil
}

// FixedIDs returns predetermined identifiers in order and fails once they are
// exhausted. Repeating a value lets tests force an ID collision.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator over ids.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// NewID returns the next predetermined identifier.
func (g *FixedIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		return "", fmt.Errorf("fixed ids: all %d identifiers exhausted", len(g.ids))
	}
	id := g.ids[g.idx]
	g.idx++
	return id, nil
}
