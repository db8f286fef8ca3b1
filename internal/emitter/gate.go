package emitter

import "sync"

// Gate marks the window in which a position update is being pushed to the
// observer. A "user moved the slider" command that arrives while the gate
// is held is an echo of our own push, not a request, and must be ignored
// so periodic refreshes do not trigger redundant seeks.
type Gate struct {
	mu    sync.Mutex
	depth int
}

// Enter opens the suppression window.
func (g *Gate) Enter() {
	g.mu.Lock()
	g.depth++
	g.mu.Unlock()
}

// Leave closes the window opened by the matching Enter.
func (g *Gate) Leave() {
	g.mu.Lock()
	if g.depth > 0 {
		g.depth--
	}
	g.mu.Unlock()
}

// Suppressed reports whether a push is in flight.
func (g *Gate) Suppressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth > 0
}
