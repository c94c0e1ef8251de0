// Package state holds the per-user conversation state: the admission
// gate, the active mode, the in-flight training session, and the
// stuck-gate reclaimer. All stores are safe for concurrent use.
package state

import "sync"

// Gate tracks whether each user may start a new interaction. Users are
// open by default; a handler closes the gate for the duration of one
// interaction and reopens it when done.
type Gate struct {
	mu     sync.Mutex
	closed map[string]bool
}

func NewGate() *Gate {
	return &Gate{closed: map[string]bool{}}
}

func (g *Gate) IsOpen(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.closed[userID]
}

func (g *Gate) SetOpen(userID string, open bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if open {
		delete(g.closed, userID)
	} else {
		g.closed[userID] = true
	}
}

// TryAcquire atomically closes an open gate. It returns false when the
// gate was already closed, so concurrent events for one user cannot
// both win admission.
func (g *Gate) TryAcquire(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed[userID] {
		return false
	}
	g.closed[userID] = true
	return true
}
