package clock

import (
	"sync"
	"testing"
)

func TestFrameClockAdvances(t *testing.T) {
	c := NewFrameClock(48000)
	if c.Now() != 0 {
		t.Fatalf("fresh clock = %v, want 0", c.Now())
	}
	c.Advance(24000)
	if got := c.Now(); got != 0.5 {
		t.Fatalf("now = %v, want 0.5", got)
	}
	if got := c.FrameAt(1.25); got != 60000 {
		t.Fatalf("FrameAt(1.25) = %d, want 60000", got)
	}
}

func TestManualClock(t *testing.T) {
	m := NewManual(1)
	m.Add(0.25)
	if m.Now() != 1.25 {
		t.Fatalf("now = %v, want 1.25", m.Now())
	}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Add(0.5)
		}()
	}
	wg.Wait()
	if m.Now() != 51.25 {
		t.Fatalf("now = %v after concurrent adds, want 51.25", m.Now())
	}
}
