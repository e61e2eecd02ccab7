package stepper

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper driver.
type Config struct {
	StepPin   int
	DirPin    int
	EnablePin int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
}

// Stepper drives an A4988-style STEP/DIR/ENABLE driver one pulse at a time.
// Pulse timing is decided by the caller.
type Stepper struct {
	gpio gpio.Driver
	cfg  Config
	clk  clock.Clock
}

// NewStepper configures the pins and leaves the driver disabled with STEP low.
// A nil clock uses the wall clock.
func NewStepper(g gpio.Driver, clk clock.Clock, cfg Config) (*Stepper, error) {
	if clk == nil {
		clk = clock.New()
	}
	s := &Stepper{gpio: g, cfg: cfg, clk: clk}

	for _, pin := range []int{cfg.StepPin, cfg.DirPin} {
		if err := g.SetupPin(pin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup pin %d: %w", pin, err)
		}
	}
	if cfg.EnablePin > 0 {
		if err := g.SetupPin(cfg.EnablePin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup enable pin %d: %w", cfg.EnablePin, err)
		}
	}
	if err := s.Disable(); err != nil {
		return nil, err
	}
	if err := g.WritePin(cfg.StepPin, gpio.Low); err != nil {
		return nil, err
	}
	return s, nil
}

// SetDirection sets the DIR output: HIGH for forward, LOW for backward.
func (s *Stepper) SetDirection(forward bool) error {
	return s.gpio.WritePin(s.cfg.DirPin, gpio.Level(forward))
}

// Pulse emits one full step: STEP high for half, then low for half.
func (s *Stepper) Pulse(half time.Duration) error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	s.clk.Sleep(half)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	s.clk.Sleep(half)
	return nil
}

// Rest drives STEP low.
func (s *Stepper) Rest() error {
	return s.gpio.WritePin(s.cfg.StepPin, gpio.Low)
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	debug.Live("Stepper: drive enabled (pin %d LOW)", s.cfg.EnablePin)
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel, no holding torque.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	debug.Live("Stepper: drive disabled (pin %d HIGH)", s.cfg.EnablePin)
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
