package gate

import (
	"sync"

	"github.com/cjeanneret/AziGo/internal/debug"
)

// Gate blocks loop goroutines while it is closed. A closed gate parks its
// waiters on a condition variable instead of letting them spin; opening it
// releases every waiter at once.
type Gate struct {
	name string
	mu   sync.Mutex
	cond *sync.Cond
	open bool
}

// New returns a gate in the given initial state.
func New(name string, open bool) *Gate {
	g := &Gate{name: name, open: open}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Open lets waiters through. Opening an open gate does nothing.
func (g *Gate) Open() {
	g.mu.Lock()
	changed := !g.open
	g.open = true
	g.mu.Unlock()
	if changed {
		debug.Live("Gate %s: open", g.name)
		g.cond.Broadcast()
	}
}

// Close makes the next Wait block until Open is called.
func (g *Gate) Close() {
	g.mu.Lock()
	changed := g.open
	g.open = false
	g.mu.Unlock()
	if changed {
		debug.Live("Gate %s: closed", g.name)
	}
}

// IsOpen reports the current state.
func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Wait returns immediately if the gate is open, otherwise blocks until it opens.
func (g *Gate) Wait() {
	g.mu.Lock()
	for !g.open {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

// Name returns the label used in log lines.
func (g *Gate) Name() string {
	return g.name
}
