package core

import "sync"

// Guarded serializes access to the engine between the event loop, which owns
// all writes, and the HTTP layer's reads. The engine itself is single-writer
// and unsynchronized; every access from outside the loop must go through Do.
type Guarded struct {
	mu     sync.Mutex
	engine *ActionEngine
}

func NewGuarded(engine *ActionEngine) *Guarded {
	return &Guarded{engine: engine}
}

// Do runs fn with exclusive access to the engine.
func (g *Guarded) Do(fn func(*ActionEngine)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.engine)
}
