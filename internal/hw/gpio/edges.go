package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

// EdgeHandler is called once for every rising or falling edge on a watched pin.
// It runs on the event delivery goroutine and must return quickly.
type EdgeHandler func(pin int)

// EdgeSource delivers both-edge events of input pins.
type EdgeSource interface {
	Watch(pins []int, handler EdgeHandler) error
	Close() error
}

// NewEdgeSource returns the edge source matching the GPIO driver mode.
func NewEdgeSource(mock bool, chip string) EdgeSource {
	if mock {
		return &MockEdges{}
	}
	return NewCdevEdges(chip)
}

// CdevEdges receives edge interrupts through the GPIO character device.
type CdevEdges struct {
	chip  string
	mu    sync.Mutex
	lines []*gpiocdev.Lines
}

// NewCdevEdges creates an edge source on the given chip (e.g. "gpiochip0").
func NewCdevEdges(chip string) *CdevEdges {
	return &CdevEdges{chip: chip}
}

// Watch requests pins as inputs with both-edge detection. Events for all pins
// of one call are delivered serially to handler.
func (c *CdevEdges) Watch(pins []int, handler EdgeHandler) error {
	debug.Verbose("Requesting edge events on %s pins %v", c.chip, pins)
	l, err := gpiocdev.RequestLines(c.chip, pins,
		gpiocdev.WithConsumer("azigo"),
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(evt.Offset)
		}))
	if err != nil {
		return fmt.Errorf("request edge events on %s %v: %w", c.chip, pins, err)
	}
	c.mu.Lock()
	c.lines = append(c.lines, l)
	c.mu.Unlock()
	return nil
}

// Close releases every requested line. No handler runs after Close returns.
func (c *CdevEdges) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, l := range c.lines {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.lines = nil
	return firstErr
}

// MockEdges is an edge source for development and tests: edges are injected with Fire.
type MockEdges struct {
	mu       sync.Mutex
	handlers map[int]EdgeHandler
}

func (m *MockEdges) Watch(pins []int, handler EdgeHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[int]EdgeHandler)
	}
	for _, p := range pins {
		m.handlers[p] = handler
	}
	return nil
}

// Fire delivers one edge on pin, if it is watched.
func (m *MockEdges) Fire(pin int) {
	m.mu.Lock()
	h := m.handlers[pin]
	m.mu.Unlock()
	if h != nil {
		h(pin)
	}
}

func (m *MockEdges) Close() error {
	m.mu.Lock()
	m.handlers = nil
	m.mu.Unlock()
	return nil
}
