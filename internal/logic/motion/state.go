package motion

import "sync"

// State is the live control state shared by the decoder, the scheduler,
// the regulator and the pulse generator. Each field has a single writer:
// the decoder owns the position, the scheduler the setpoint and the
// regulator the velocity command. All access goes through one mutex; no
// other lock is ever taken while it is held.
type State struct {
	mu       sync.Mutex
	position int64
	setpoint int64
	velocity float64
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Position int64
	Setpoint int64
	Velocity float64
}

// NewState returns a zeroed state.
func NewState() *State {
	return &State{}
}

// UpdatePosition replaces the position with fn(position) and returns the
// new value. fn runs under the lock and must not block.
func (s *State) UpdatePosition(fn func(int64) int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = fn(s.position)
	return s.position
}

// Position returns the encoder position in ticks.
func (s *State) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetSetpoint stores the target position in ticks.
func (s *State) SetSetpoint(ticks int64) {
	s.mu.Lock()
	s.setpoint = ticks
	s.mu.Unlock()
}

// Setpoint returns the target position in ticks.
func (s *State) Setpoint() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint
}

// Tracking returns the setpoint and the position read together.
func (s *State) Tracking() (setpoint, position int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setpoint, s.position
}

// SetVelocityCommand stores the regulator output in ticks per second.
func (s *State) SetVelocityCommand(v float64) {
	s.mu.Lock()
	s.velocity = v
	s.mu.Unlock()
}

// VelocityCommand returns the last regulator output.
func (s *State) VelocityCommand() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocity
}

// Snapshot returns every field read under a single lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Position: s.position, Setpoint: s.setpoint, Velocity: s.velocity}
}
