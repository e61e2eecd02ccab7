package pid

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/logic/gate"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
)

// DefaultPeriod is used when Config.Period is not positive.
const DefaultPeriod = time.Millisecond

// Config holds the regulator constants.
type Config struct {
	Kp, Ki, Kd    float64
	IntegralLimit float64 // anti-windup clamp on |integral|; 0 disables the clamp
	Period        time.Duration
}

// Regulator is a fixed-period PID controller turning the position error
// into a velocity command in ticks per second. Its working set (integral
// and previous error) belongs to the goroutine calling Step.
type Regulator struct {
	cfg   Config
	dt    float64
	state *motion.State
	clk   clock.Clock

	integral  float64
	prevError float64

	reset atomic.Bool
	steps atomic.Int64
}

// NewRegulator creates a regulator. A nil clock uses the wall clock.
func NewRegulator(state *motion.State, clk clock.Clock, cfg Config) *Regulator {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	return &Regulator{
		cfg:   cfg,
		dt:    cfg.Period.Seconds(),
		state: state,
		clk:   clk,
	}
}

// Compute runs one PID update on err and returns the output.
func (r *Regulator) Compute(err float64) float64 {
	r.integral += err * r.dt
	if lim := r.cfg.IntegralLimit; lim > 0 {
		r.integral = math.Max(-lim, math.Min(lim, r.integral))
	}
	derivative := (err - r.prevError) / r.dt
	r.prevError = err
	return r.cfg.Kp*err + r.cfg.Ki*r.integral + r.cfg.Kd*derivative
}

// Step reads the setpoint and position, runs one update and publishes the
// velocity command. A pending reset is applied first.
func (r *Regulator) Step() float64 {
	if r.reset.CompareAndSwap(true, false) {
		r.integral, r.prevError = 0, 0
		debug.Verbose("PID: working set cleared")
	}
	sp, pos := r.state.Tracking()
	out := r.Compute(float64(sp - pos))
	r.state.SetVelocityCommand(out)
	r.steps.Inc()
	return out
}

// RequestReset asks the regulator goroutine to clear its working set
// before the next Step. Safe to call from any goroutine.
func (r *Regulator) RequestReset() {
	r.reset.Store(true)
}

// Integral returns the accumulated integral term.
// Only meaningful on the goroutine calling Step.
func (r *Regulator) Integral() float64 {
	return r.integral
}

// Steps returns the number of completed updates.
func (r *Regulator) Steps() int64 {
	return r.steps.Load()
}

// Run calls Step once per period while running is set, blocking on g
// while it is closed.
func (r *Regulator) Run(running *atomic.Bool, g *gate.Gate) error {
	debug.Live("PID: loop started (period %v)", r.cfg.Period)
	defer debug.Live("PID: loop stopped")
	for running.Load() {
		g.Wait()
		if !running.Load() {
			break
		}
		out := r.Step()
		if debug.IsEnabled(debug.LevelTrace) {
			debug.Trace("PID: command %.3f ticks/s", out)
		}
		r.clk.Sleep(r.cfg.Period)
	}
	return nil
}
