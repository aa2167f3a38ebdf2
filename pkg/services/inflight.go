package services

import "sync"

// InflightGate allows at most one outstanding completion request per
// conversation. Send, Continue, and Regenerate all pass through the same
// gate; a second submission while one is pending is rejected rather than
// queued.
type InflightGate struct {
	mu      sync.Mutex
	pending map[string]bool
}

func NewInflightGate() *InflightGate {
	return &InflightGate{pending: make(map[string]bool)}
}

// TryBegin claims the gate for a conversation. It returns false when a
// request is already outstanding.
func (g *InflightGate) TryBegin(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending[conversationID] {
		return false
	}
	g.pending[conversationID] = true
	return true
}

// End releases the gate.
func (g *InflightGate) End(conversationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.pending, conversationID)
}

// Busy reports whether a request is outstanding, for the UI loading flag.
func (g *InflightGate) Busy(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.pending[conversationID]
}
