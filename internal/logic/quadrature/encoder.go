package quadrature

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/cjeanneret/AziGo/internal/debug"
	"github.com/cjeanneret/AziGo/internal/hw/gpio"
)

// Encoder connects a Decoder to the A/B input pins: every edge on either
// channel reads both levels and feeds them to the decoder.
type Encoder struct {
	gpio     gpio.Driver
	aPin     int
	bPin     int
	dec      *Decoder
	edges    atomic.Int64
	readErrs atomic.Int64
}

// NewEncoder creates an encoder reading aPin and bPin through g.
func NewEncoder(g gpio.Driver, aPin, bPin int, dec *Decoder) *Encoder {
	return &Encoder{gpio: g, aPin: aPin, bPin: bPin, dec: dec}
}

// Start configures the pins, seeds the decoder with the current levels and
// subscribes to both-edge events on src.
func (e *Encoder) Start(src gpio.EdgeSource) error {
	for _, pin := range []int{e.aPin, e.bPin} {
		if err := e.gpio.SetupPin(pin, gpio.Input); err != nil {
			return fmt.Errorf("setup encoder pin %d: %w", pin, err)
		}
	}
	a, b, err := e.read()
	if err != nil {
		return err
	}
	e.dec.Seed(a, b)
	debug.Verbose("Encoder: initial code %d on pins A=%d B=%d", Code(a, b), e.aPin, e.bPin)

	if err := src.Watch([]int{e.aPin, e.bPin}, e.OnEdge); err != nil {
		return fmt.Errorf("watch encoder pins: %w", err)
	}
	return nil
}

// OnEdge handles one edge event. A failed read drops the event.
func (e *Encoder) OnEdge(pin int) {
	e.edges.Inc()
	a, b, err := e.read()
	if err != nil {
		if e.readErrs.Inc() == 1 {
			debug.Error(fmt.Errorf("encoder edge on pin %d: %w", pin, err))
		}
		return
	}
	e.dec.Update(a, b)
}

// Edges returns the number of edge events received.
func (e *Encoder) Edges() int64 {
	return e.edges.Load()
}

// ReadErrors returns the number of edge events dropped on read failures.
func (e *Encoder) ReadErrors() int64 {
	return e.readErrs.Load()
}

func (e *Encoder) read() (gpio.Level, gpio.Level, error) {
	a, err := e.gpio.ReadPin(e.aPin)
	if err != nil {
		return gpio.Low, gpio.Low, fmt.Errorf("read encoder pin %d: %w", e.aPin, err)
	}
	b, err := e.gpio.ReadPin(e.bPin)
	if err != nil {
		return gpio.Low, gpio.Low, fmt.Errorf("read encoder pin %d: %w", e.bPin, err)
	}
	return a, b, nil
}
