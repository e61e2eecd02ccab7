package setpoint

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/logic/gate"
	"github.com/cjeanneret/AziGo/internal/logic/geometry"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
)

// AngleSource returns the target angle in radians at time t.
type AngleSource interface {
	TargetAngle(t time.Time) (float64, error)
}

// Config holds the scheduler cadence.
type Config struct {
	Period        time.Duration // one cycle
	RefreshCycles int           // the source is queried every RefreshCycles cycles
}

// Scheduler refreshes the setpoint from the angle source every
// RefreshCycles cycles and leaves it untouched in between.
type Scheduler struct {
	src   AngleSource
	ticks geometry.Ticks
	state *motion.State
	clk   clock.Clock
	cfg   Config

	cycle     uint64
	refreshes atomic.Int64
	failures  atomic.Int64
}

// NewScheduler creates a scheduler. A nil clock uses the wall clock.
func NewScheduler(src AngleSource, ticks geometry.Ticks, state *motion.State, clk clock.Clock, cfg Config) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Millisecond
	}
	if cfg.RefreshCycles <= 0 {
		cfg.RefreshCycles = 1
	}
	return &Scheduler{src: src, ticks: ticks, state: state, clk: clk, cfg: cfg}
}

// Tick runs one cycle. It reports whether the source was queried; on a
// source error the previous setpoint stays in place.
func (s *Scheduler) Tick() (bool, error) {
	due := s.cycle%uint64(s.cfg.RefreshCycles) == 0
	s.cycle++
	if !due {
		return false, nil
	}

	now := s.clk.Now()
	angle, err := s.src.TargetAngle(now)
	if err != nil {
		s.failures.Inc()
		return true, fmt.Errorf("target angle at %s: %w", now.Format(time.RFC3339), err)
	}
	sp := s.ticks.FromAngle(angle)
	s.state.SetSetpoint(sp)
	s.refreshes.Inc()
	debug.Info("New setpoint: %d ticks (hour angle %.5f rad)", sp, angle)
	return true, nil
}

// Refreshes returns the number of successful setpoint updates.
func (s *Scheduler) Refreshes() int64 {
	return s.refreshes.Load()
}

// Failures returns the number of failed angle source calls.
func (s *Scheduler) Failures() int64 {
	return s.failures.Load()
}

// Run ticks once per period while running is set, blocking on g while it
// is closed. Angle source errors are logged and do not stop the loop.
func (s *Scheduler) Run(running *atomic.Bool, g *gate.Gate) error {
	debug.Live("Scheduler: loop started (refresh every %d cycles)", s.cfg.RefreshCycles)
	defer debug.Live("Scheduler: loop stopped")
	for running.Load() {
		g.Wait()
		if !running.Load() {
			break
		}
		if _, err := s.Tick(); err != nil {
			debug.Error(err)
		}
		s.clk.Sleep(s.cfg.Period)
	}
	return nil
}
