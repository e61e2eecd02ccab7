package supervisor

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/logic/gate"
)

const continueHint = "Use these commands to continue: auto | manual | stop | status | quit"

// Drive is the motor driver power stage.
type Drive interface {
	Enable() error
	Disable() error
	Rest() error
}

// Loop is a control loop goroutine body. It returns when running is
// cleared and blocks on g while g is closed.
type Loop interface {
	Run(running *atomic.Bool, g *gate.Gate) error
}

// Regulator is the PID loop, which can be asked to clear its state.
type Regulator interface {
	Loop
	RequestReset()
}

// Config selects the supervisor policies.
type Config struct {
	GateTrackingWhenIdle bool // pause the scheduler and regulator outside Automatic
	ResetPIDOnEntry      bool // clear the PID working set on every Automatic entry
}

// Supervisor owns the control mode and decides which loops may run.
// Handle is safe for concurrent use; commands are applied one at a time.
type Supervisor struct {
	mu   sync.Mutex
	mode Mode
	cfg  Config

	drive     Drive
	regulator Regulator
	scheduler Loop
	generator Loop

	running   *atomic.Bool
	trackGate *gate.Gate // scheduler and regulator
	driveGate *gate.Gate // pulse generator
	group     errgroup.Group
	started   bool
	done      chan struct{}
	interlock func() bool
}

// New creates a supervisor in Idle mode. The loops are started on the
// first entry into Automatic. running is shared with any other loop of
// the process and is cleared on Quit.
func New(cfg Config, running *atomic.Bool, drive Drive, regulator Regulator, scheduler, generator Loop) *Supervisor {
	return &Supervisor{
		mode:      Idle,
		cfg:       cfg,
		drive:     drive,
		regulator: regulator,
		scheduler: scheduler,
		generator: generator,
		running:   running,
		trackGate: gate.New("tracking", false),
		driveGate: gate.New("drive", false),
		done:      make(chan struct{}),
	}
}

// Mode returns the current mode.
func (s *Supervisor) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetInterlock installs a check consulted on every Automatic entry. While
// blocked reports true, Automatic is refused and the drive stays disabled.
func (s *Supervisor) SetInterlock(blocked func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interlock = blocked
}

// Done is closed when the supervisor enters Quit.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Handle applies one command. A drive failure while changing mode is
// fatal: the supervisor quits and returns the error.
func (s *Supervisor) Handle(cmd Command) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == Quit {
		return Report{Mode: Quit}, ErrShutdown
	}

	switch cmd {
	case CmdStatus:
		return Report{Mode: s.mode, Message: statusMessage(s.mode)}, nil

	case CmdAutomatic:
		if s.mode == Automatic {
			return Report{Mode: s.mode, Message: "The program is already in the automatic tracking state"}, nil
		}
		if s.interlock != nil && s.interlock() {
			return Report{Mode: s.mode, Message: "[CMD] Automatic tracking refused: limit switch is pressed"}, nil
		}
		if err := s.drive.Enable(); err != nil {
			return s.failLocked(fmt.Errorf("enable drive: %w", err))
		}
		if s.cfg.ResetPIDOnEntry {
			s.regulator.RequestReset()
		}
		s.trackGate.Open()
		s.driveGate.Open()
		if !s.started {
			s.startLocked()
		}
		s.setModeLocked(Automatic)
		return Report{Mode: s.mode, Changed: true, Message: "[CMD] Starting the automatic tracking state"}, nil

	case CmdManual:
		if s.mode == Manual {
			return Report{Mode: s.mode, Message: "The program is already in the manual control state"}, nil
		}
		if s.mode == Automatic {
			if err := s.leaveAutomaticLocked(); err != nil {
				return s.failLocked(err)
			}
		}
		s.setModeLocked(Manual)
		return Report{Mode: s.mode, Changed: true, Message: "[CMD] Starting the manual control state"}, nil

	case CmdStop:
		switch s.mode {
		case Automatic:
			if err := s.leaveAutomaticLocked(); err != nil {
				return s.failLocked(err)
			}
			s.setModeLocked(Idle)
			return Report{Mode: s.mode, Changed: true, Message: "Automatic control stopped.\n" + continueHint}, nil
		case Manual:
			s.setModeLocked(Idle)
			return Report{Mode: s.mode, Changed: true, Message: "Manual control stopped.\n" + continueHint}, nil
		default:
			return Report{Mode: s.mode, Message: "[CMD] Stop\nPrevious state/command has been stopped.\n" + continueHint}, nil
		}

	case CmdQuit:
		err := s.shutdownLocked()
		return Report{Mode: s.mode, Changed: true, Message: "[CMD] Quit"}, err

	default:
		return Report{Mode: s.mode}, fmt.Errorf("%w: %v", ErrUnknownCommand, cmd)
	}
}

// Wait blocks until every started loop has returned, then de-asserts the
// drive enable and drives STEP low. It returns the first loop error and
// any teardown error. Call it after Quit, or it blocks for as long as the
// loops run.
func (s *Supervisor) Wait() error {
	err := s.group.Wait()
	return multierr.Combine(err, s.drive.Disable(), s.drive.Rest())
}

func statusMessage(m Mode) string {
	switch m {
	case Automatic:
		return "[STATUS] Current state is automatic tracking"
	case Manual:
		return "[STATUS] Current state is manual control"
	default:
		return "[STATUS] Current state is idle state."
	}
}

func (s *Supervisor) setModeLocked(m Mode) {
	debug.Mode(s.mode.String(), m.String())
	s.mode = m
}

// leaveAutomaticLocked parks the pulse generator and removes drive power.
func (s *Supervisor) leaveAutomaticLocked() error {
	s.driveGate.Close()
	if s.cfg.GateTrackingWhenIdle {
		s.trackGate.Close()
	}
	if err := s.drive.Disable(); err != nil {
		return fmt.Errorf("disable drive: %w", err)
	}
	return nil
}

func (s *Supervisor) startLocked() {
	s.started = true
	s.goLoop("regulator", s.regulator, s.trackGate)
	s.goLoop("scheduler", s.scheduler, s.trackGate)
	s.goLoop("pulse generator", s.generator, s.driveGate)
	debug.Live("Supervisor: control loops started")
}

func (s *Supervisor) goLoop(name string, l Loop, g *gate.Gate) {
	s.group.Go(func() error {
		if err := l.Run(s.running, g); err != nil {
			err = fmt.Errorf("%s loop: %w", name, err)
			s.fail(err)
			return err
		}
		return nil
	})
}

// fail quits after a loop error.
func (s *Supervisor) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Error(err)
	if s.mode != Quit {
		_ = s.shutdownLocked()
	}
}

func (s *Supervisor) failLocked(err error) (Report, error) {
	debug.Error(err)
	return Report{Mode: Quit, Changed: true}, multierr.Append(err, s.shutdownLocked())
}

// shutdownLocked enters Quit: drive power off, loops told to stop and
// every gate opened so no loop stays parked.
func (s *Supervisor) shutdownLocked() error {
	err := s.drive.Disable()
	s.running.Store(false)
	s.trackGate.Open()
	s.driveGate.Open()
	s.setModeLocked(Quit)
	close(s.done)
	if err != nil {
		return fmt.Errorf("disable drive: %w", err)
	}
	return nil
}
