package geometry

import (
	"math"

	"github.com/cjeanneret/AziGo/internal/config"
)

// Ticks converts angles to encoder ticks and keeps tick counts inside the
// symmetric band [-half, +half) of one output-shaft revolution.
type Ticks struct {
	perRev int64
	half   int64
}

// NewTicks creates a converter for an encoder giving perRev ticks per turn.
// perRev must be even and positive; config.Load enforces both.
func NewTicks(perRev int) Ticks {
	return Ticks{perRev: int64(perRev), half: int64(perRev) / 2}
}

// TicksFromConfig creates a converter from the encoder section.
func TicksFromConfig(cfg *config.Config) Ticks {
	return NewTicks(cfg.Encoder.TicksPerRev)
}

// PerRev returns the number of ticks in one revolution.
func (t Ticks) PerRev() int64 {
	return t.perRev
}

// Half returns half a revolution in ticks.
func (t Ticks) Half() int64 {
	return t.half
}

// Wrap maps pos into [-half, +half) by adding or removing whole revolutions.
func (t Ticks) Wrap(pos int64) int64 {
	if t.perRev <= 0 {
		return pos
	}
	m := (pos + t.half) % t.perRev
	if m < 0 {
		m += t.perRev
	}
	return m - t.half
}

// FromAngle converts an hour angle in radians to a wrapped tick setpoint.
// Hour angle zero lands a quarter revolution from the encoder origin.
func (t Ticks) FromAngle(rad float64) int64 {
	raw := rad/(2*math.Pi)*float64(t.perRev) + float64(t.perRev)/4
	return t.Wrap(int64(raw))
}

// ToAngle converts a tick count back to the hour angle it represents.
func (t Ticks) ToAngle(pos int64) float64 {
	if t.perRev == 0 {
		return 0
	}
	return (float64(pos) - float64(t.perRev)/4) / float64(t.perRev) * 2 * math.Pi
}
