package limit

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/hw/gpio"
)

// Debouncer is an integrating debouncer: a counter moves one step toward
// the raw level on each read, and the output only flips when the counter
// reaches either end.
type Debouncer struct {
	max   int
	count int
	state bool
}

// NewDebouncer returns a debouncer needing n consecutive agreeing reads.
func NewDebouncer(n int) *Debouncer {
	if n < 1 {
		n = 1
	}
	return &Debouncer{max: n}
}

// Update feeds one raw read and returns the debounced state.
func (d *Debouncer) Update(raw bool) bool {
	if raw && d.count < d.max {
		d.count++
	} else if !raw && d.count > 0 {
		d.count--
	}
	if d.count == d.max {
		d.state = true
	} else if d.count == 0 {
		d.state = false
	}
	return d.state
}

// State returns the debounced state.
func (d *Debouncer) State() bool {
	return d.state
}

// Config describes the switch input.
type Config struct {
	Pin           int
	ActiveLow     bool
	DebounceCount int
	PollInterval  time.Duration
}

// Switch polls a limit switch input and reports debounced trips.
type Switch struct {
	gpio    gpio.Driver
	cfg     Config
	clk     clock.Clock
	deb     *Debouncer
	trips   atomic.Int64
	pressed atomic.Bool
}

// NewSwitch configures the pin as input. A nil clock uses the wall clock.
func NewSwitch(g gpio.Driver, clk clock.Clock, cfg Config) (*Switch, error) {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	if err := g.SetupPin(cfg.Pin, gpio.Input); err != nil {
		return nil, fmt.Errorf("setup limit switch pin %d: %w", cfg.Pin, err)
	}
	return &Switch{gpio: g, cfg: cfg, clk: clk, deb: NewDebouncer(cfg.DebounceCount)}, nil
}

// Poll reads the pin once and reports whether this read tripped the switch.
func (s *Switch) Poll() (bool, error) {
	lvl, err := s.gpio.ReadPin(s.cfg.Pin)
	if err != nil {
		return false, fmt.Errorf("read limit switch pin %d: %w", s.cfg.Pin, err)
	}
	pressed := bool(lvl) != s.cfg.ActiveLow
	was := s.deb.State()
	now := s.deb.Update(pressed)
	s.pressed.Store(now)
	if now && !was {
		s.trips.Inc()
		return true, nil
	}
	if was && !now {
		debug.Live("Limit switch: released")
	}
	return false, nil
}

// Settle takes enough back-to-back reads for the debouncer to reach a
// stable state, so Pressed is valid before Run starts.
func (s *Switch) Settle() error {
	for i := 0; i < s.deb.max; i++ {
		if _, err := s.Poll(); err != nil {
			return err
		}
	}
	return nil
}

// Pressed reports the debounced state of the last poll.
func (s *Switch) Pressed() bool {
	return s.pressed.Load()
}

// Trips returns the number of debounced activations.
func (s *Switch) Trips() int64 {
	return s.trips.Load()
}

// Run polls while running is set and calls onPressed after every poll
// that finds the switch pressed, not only on the activation edge.
// A read error ends the loop.
func (s *Switch) Run(running *atomic.Bool, onPressed func()) error {
	debug.Live("Limit switch: polling pin %d every %v", s.cfg.Pin, s.cfg.PollInterval)
	for running.Load() {
		tripped, err := s.Poll()
		if err != nil {
			return err
		}
		if tripped {
			debug.Info("Limit switch: tripped on pin %d", s.cfg.Pin)
		}
		if s.Pressed() {
			onPressed()
		}
		s.clk.Sleep(s.cfg.PollInterval)
	}
	return nil
}
