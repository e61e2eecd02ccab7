package gpio

import (
	"sync"
	"testing"
)

func TestMockDriver_ReadsBackLastWrite(t *testing.T) {
	m := &MockDriver{}

	if lvl, _ := m.ReadPin(5); lvl != Low {
		t.Errorf("unwritten pin = %v, want Low", lvl)
	}
	if err := m.WritePin(5, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	if lvl, _ := m.ReadPin(5); lvl != High {
		t.Errorf("pin after write = %v, want High", lvl)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
}

func TestMockEdges_FireCallsHandler(t *testing.T) {
	e := &MockEdges{}
	var got []int
	if err := e.Watch([]int{27, 17}, func(pin int) { got = append(got, pin) }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	e.Fire(27)
	e.Fire(17)
	e.Fire(4) // not watched

	if len(got) != 2 || got[0] != 27 || got[1] != 17 {
		t.Errorf("handler pins = %v, want [27 17]", got)
	}
}

func TestMockEdges_NoEventsAfterClose(t *testing.T) {
	e := &MockEdges{}
	calls := 0
	_ = e.Watch([]int{27}, func(int) { calls++ })
	_ = e.Close()

	e.Fire(27)

	if calls != 0 {
		t.Errorf("handler called %d times after Close", calls)
	}
}

func TestNewEdgeSource_Mock(t *testing.T) {
	if _, ok := NewEdgeSource(true, "gpiochip0").(*MockEdges); !ok {
		t.Error("NewEdgeSource(true) should return *MockEdges")
	}
	if _, ok := NewEdgeSource(false, "gpiochip0").(*CdevEdges); !ok {
		t.Error("NewEdgeSource(false) should return *CdevEdges")
	}
}

func TestMockDriver_ConcurrentAccess(t *testing.T) {
	m := &MockDriver{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(pin int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.WritePin(pin, j%2 == 0)
				_, _ = m.ReadPin(pin)
			}
		}(i)
	}
	wg.Wait()
}
