package quadrature

import (
	"sync"

	"github.com/cjeanneret/AziGo/internal/hw/gpio"
	"github.com/cjeanneret/AziGo/internal/logic/geometry"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
)

// transitions maps (previous code << 2 | current code) to a tick delta.
// Same-code and double-step (invalid) transitions are zero.
var transitions = [16]int8{
	0, -1, 1, 0,
	1, 0, 0, -1,
	-1, 0, 0, 1,
	0, 1, -1, 0,
}

// Code packs the two channel levels as (A << 1) | B.
func Code(a, b gpio.Level) uint8 {
	var c uint8
	if a {
		c |= 2
	}
	if b {
		c |= 1
	}
	return c
}

// Delta returns the tick delta of a transition between two 2-bit codes.
func Delta(last, code uint8) int8 {
	return transitions[(last&3)<<2|code&3]
}

// Decoder turns channel transitions into position updates on a motion.State.
// Its own lock orders successive transitions; the state lock is taken only
// for the position update and never while the decoder lock is held.
type Decoder struct {
	mu    sync.Mutex
	last  uint8
	ticks geometry.Ticks
	state *motion.State
}

// NewDecoder creates a decoder whose previous code is 0 (both channels low).
func NewDecoder(state *motion.State, ticks geometry.Ticks) *Decoder {
	return &Decoder{state: state, ticks: ticks}
}

// Seed sets the previous code without moving the position.
func (d *Decoder) Seed(a, b gpio.Level) {
	d.mu.Lock()
	d.last = Code(a, b)
	d.mu.Unlock()
}

// Update feeds the current channel levels and returns the delta applied.
func (d *Decoder) Update(a, b gpio.Level) int8 {
	code := Code(a, b)

	d.mu.Lock()
	delta := Delta(d.last, code)
	d.last = code
	d.mu.Unlock()

	if delta != 0 {
		d.state.UpdatePosition(func(pos int64) int64 {
			return d.ticks.Wrap(pos + int64(delta))
		})
	}
	return delta
}

// LastCode returns the previous 2-bit code.
func (d *Decoder) LastCode() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
