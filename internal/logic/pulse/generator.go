package pulse

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/logic/gate"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
)

// Motor is the part of the stepper driver the generator uses.
type Motor interface {
	SetDirection(forward bool) error
	Pulse(half time.Duration) error
}

// Config holds the pulse timing constants.
type Config struct {
	MinStepRate   float64       // |v| below this emits no pulse
	MinPulseWidth time.Duration // floor on the half-period
	IdleSleep     time.Duration // wait between polls when no pulse is due
}

// maxHalfPeriod is the longest representable half-period.
const maxHalfPeriod = time.Duration(math.MaxInt64)

// HalfPeriod returns the STEP half-period for velocity v in ticks per
// second and whether a pulse should be emitted at all.
func HalfPeriod(v float64, cfg Config) (time.Duration, bool) {
	speed := math.Abs(v)
	if math.IsNaN(speed) || speed < cfg.MinStepRate || speed == 0 {
		return 0, false
	}
	// Clamp in float64: very slow rates overflow time.Duration.
	ns := float64(time.Second) / (2 * speed)
	if ns >= float64(maxHalfPeriod) {
		return maxHalfPeriod, true
	}
	half := time.Duration(ns)
	if half < cfg.MinPulseWidth {
		half = cfg.MinPulseWidth
	}
	return half, true
}

// Generator turns the velocity command into STEP pulses, one pulse per
// iteration, with the direction taken from the command sign.
type Generator struct {
	state  *motion.State
	motor  Motor
	clk    clock.Clock
	cfg    Config
	pulses atomic.Int64
}

// NewGenerator creates a generator. A nil clock uses the wall clock.
func NewGenerator(state *motion.State, motor Motor, clk clock.Clock, cfg Config) *Generator {
	if clk == nil {
		clk = clock.New()
	}
	return &Generator{state: state, motor: motor, clk: clk, cfg: cfg}
}

// Cycle runs one iteration: either one pulse or one idle sleep.
func (g *Generator) Cycle() error {
	v := g.state.VelocityCommand()
	half, ok := HalfPeriod(v, g.cfg)
	if !ok {
		g.clk.Sleep(g.cfg.IdleSleep)
		return nil
	}
	if err := g.motor.SetDirection(v >= 0); err != nil {
		return fmt.Errorf("set direction: %w", err)
	}
	if err := g.motor.Pulse(half); err != nil {
		return fmt.Errorf("step pulse: %w", err)
	}
	g.pulses.Inc()
	return nil
}

// Pulses returns the number of pulses emitted.
func (g *Generator) Pulses() int64 {
	return g.pulses.Load()
}

// Run emits pulses while running is set. While gt is closed the loop
// blocks without consuming CPU. A GPIO error ends the loop.
func (g *Generator) Run(running *atomic.Bool, gt *gate.Gate) error {
	debug.Live("Pulse generator: loop started")
	defer debug.Live("Pulse generator: loop stopped")
	for running.Load() {
		gt.Wait()
		if !running.Load() {
			break
		}
		if err := g.Cycle(); err != nil {
			return err
		}
	}
	return nil
}
