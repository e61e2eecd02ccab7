package quadrature

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cjeanneret/AziGo/internal/hw/gpio"
	"github.com/cjeanneret/AziGo/internal/logic/geometry"
	"github.com/cjeanneret/AziGo/internal/logic/motion"
)

// levels returns the channel levels of a 2-bit code.
func levels(code uint8) (gpio.Level, gpio.Level) {
	return code&2 != 0, code&1 != 0
}

func TestCode(t *testing.T) {
	for code := uint8(0); code < 4; code++ {
		a, b := levels(code)
		if got := Code(a, b); got != code {
			t.Errorf("Code(%v, %v) = %d, want %d", a, b, got, code)
		}
	}
}

func TestDelta_Table(t *testing.T) {
	want := [16]int8{
		0, -1, 1, 0,
		1, 0, 0, -1,
		-1, 0, 0, 1,
		0, 1, -1, 0,
	}
	for last := uint8(0); last < 4; last++ {
		for code := uint8(0); code < 4; code++ {
			idx := last<<2 | code
			if got := Delta(last, code); got != want[idx] {
				t.Errorf("Delta(%d, %d) = %d, want %d", last, code, got, want[idx])
			}
		}
	}
}

func TestDelta_SameCodeAndDoubleStepAreZero(t *testing.T) {
	for code := uint8(0); code < 4; code++ {
		if got := Delta(code, code); got != 0 {
			t.Errorf("Delta(%d, %d) = %d, want 0", code, code, got)
		}
		if got := Delta(code, code^3); got != 0 {
			t.Errorf("double step Delta(%d, %d) = %d, want 0", code, code^3, got)
		}
	}
}

func runSequence(d *Decoder, codes ...uint8) []int8 {
	var deltas []int8
	for _, c := range codes {
		deltas = append(deltas, d.Update(levels(c)))
	}
	return deltas
}

func TestDecoder_Sequence(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(5000))

	// 0 -> 1 -> 3 -> 2: table indices 1, 7, 14.
	got := runSequence(d, 1, 3, 2)
	if diff := cmp.Diff([]int8{-1, -1, -1}, got); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}
	if pos := st.Position(); pos != -3 {
		t.Errorf("position = %d, want -3", pos)
	}
	if d.LastCode() != 2 {
		t.Errorf("last code = %d, want 2", d.LastCode())
	}
}

func TestDecoder_FullCycleBothDirections(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(5000))

	forward := runSequence(d, 2, 3, 1, 0)
	if diff := cmp.Diff([]int8{1, 1, 1, 1}, forward); diff != "" {
		t.Errorf("forward deltas mismatch (-want +got):\n%s", diff)
	}
	if pos := st.Position(); pos != 4 {
		t.Fatalf("position after forward cycle = %d, want 4", pos)
	}

	backward := runSequence(d, 1, 3, 2, 0)
	if diff := cmp.Diff([]int8{-1, -1, -1, -1}, backward); diff != "" {
		t.Errorf("backward deltas mismatch (-want +got):\n%s", diff)
	}
	if pos := st.Position(); pos != 0 {
		t.Errorf("position after round trip = %d, want 0", pos)
	}
}

func TestDecoder_BounceIsIgnored(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(5000))

	runSequence(d, 0, 0, 3, 3, 0)
	if pos := st.Position(); pos != 0 {
		t.Errorf("position after invalid transitions = %d, want 0", pos)
	}
}

func TestDecoder_WrapsAtHalfRevolution(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(4))

	got := []int64{}
	for _, c := range []uint8{2, 3, 1, 0} {
		d.Update(levels(c))
		got = append(got, st.Position())
	}
	if diff := cmp.Diff([]int64{1, -2, -1, 0}, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoder_Seed(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(5000))

	d.Seed(gpio.High, gpio.High)
	if pos := st.Position(); pos != 0 {
		t.Fatalf("Seed moved the position to %d", pos)
	}
	// 3 -> 2 is index 14.
	if got := d.Update(gpio.High, gpio.Low); got != -1 {
		t.Errorf("delta after seed = %d, want -1", got)
	}
}

func TestDecoder_ConcurrentWithReaders(t *testing.T) {
	st := motion.NewState()
	d := NewDecoder(st, geometry.NewTicks(5000))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				sp, pos := st.Tracking()
				st.SetVelocityCommand(float64(sp - pos))
			}
		}
	}()

	for i := 0; i < 250; i++ {
		runSequence(d, 2, 3, 1, 0)
	}
	close(stop)
	wg.Wait()

	if pos := st.Position(); pos != 1000 {
		t.Errorf("position = %d, want 1000", pos)
	}
}

func TestEncoder_EdgesDriveDecoder(t *testing.T) {
	drv := &gpio.MockDriver{}
	edges := &gpio.MockEdges{}
	st := motion.NewState()
	enc := NewEncoder(drv, 27, 17, NewDecoder(st, geometry.NewTicks(5000)))

	if err := enc.Start(edges); err != nil {
		t.Fatalf("Start: %v", err)
	}

	step := func(pin int, level gpio.Level) {
		_ = drv.WritePin(pin, level)
		edges.Fire(pin)
	}
	step(27, gpio.High) // 0 -> 2
	step(17, gpio.High) // 2 -> 3
	step(27, gpio.Low)  // 3 -> 1

	if pos := st.Position(); pos != 3 {
		t.Errorf("position = %d, want 3", pos)
	}
	if enc.Edges() != 3 {
		t.Errorf("edges = %d, want 3", enc.Edges())
	}
}

type failingReader struct {
	gpio.MockDriver
	failPin int
}

func (f *failingReader) ReadPin(pin int) (gpio.Level, error) {
	if pin == f.failPin {
		return gpio.Low, errors.New("read failed")
	}
	return f.MockDriver.ReadPin(pin)
}

func TestEncoder_ReadErrorDropsEdge(t *testing.T) {
	drv := &failingReader{}
	edges := &gpio.MockEdges{}
	st := motion.NewState()
	enc := NewEncoder(drv, 27, 17, NewDecoder(st, geometry.NewTicks(5000)))
	if err := enc.Start(edges); err != nil {
		t.Fatalf("Start: %v", err)
	}

	drv.failPin = 17
	_ = drv.WritePin(27, gpio.High)
	edges.Fire(27)

	if pos := st.Position(); pos != 0 {
		t.Errorf("position = %d, want 0 after a failed read", pos)
	}
	if enc.ReadErrors() != 1 {
		t.Errorf("read errors = %d, want 1", enc.ReadErrors())
	}
}

func TestEncoder_StartFailsOnRead(t *testing.T) {
	drv := &failingReader{failPin: 27}
	enc := NewEncoder(drv, 27, 17, NewDecoder(motion.NewState(), geometry.NewTicks(5000)))
	if err := enc.Start(&gpio.MockEdges{}); err == nil {
		t.Error("expected Start to fail when the A channel cannot be read")
	}
}
