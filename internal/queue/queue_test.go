package queue

import (
	"context"
	"testing"
)

func TestRingFullDoesNotBlock(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d failed on non-full ring", i)
		}
	}
	if r.Push(4) {
		t.Fatalf("push succeeded on full ring")
	}
	if v, _ := r.Pop(); v != 0 {
		t.Fatalf("pop = %d, want 0", v)
	}
	if !r.Push(4) {
		t.Fatalf("push failed after pop")
	}
	var got []int
	r.Drain(func(v int) { got = append(got, v) })
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("drain = %v", got)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d after drain", r.Len())
	}
}

func TestRingSizeMustBePowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for size 6")
		}
	}()
	NewRing[int](6)
}

func TestRingConcurrentProducerConsumer(t *testing.T) {
	r := NewRing[int](8)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	var got []int
	go func() {
		for {
			select {
			case <-ctx.Done():
				r.Drain(func(v int) { got = append(got, v) })
				close(done)
				return
			default:
				r.Drain(func(v int) { got = append(got, v) })
			}
		}
	}()

	const n = 200_000
	for i := 0; i < n; {
		if r.Push(i) {
			i++
		}
	}
	cancel()
	<-done

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d, out of order", i, v)
		}
	}
}

func TestPopDueOnlyReleasesPastEvents(t *testing.T) {
	q := NewEventQueue(8)
	q.Push(Event{Step: 0, Time: 1.0})
	q.Push(Event{Step: 1, Time: 1.25})
	q.Push(Event{Step: 2, Time: 1.5})

	var steps []int
	collect := func(ev Event) { steps = append(steps, ev.Step) }

	if n := q.PopDue(0.99, collect); n != 0 {
		t.Fatalf("popped %d events before their time", n)
	}
	if n := q.PopDue(1.25, collect); n != 2 {
		t.Fatalf("popped %d, want 2 (time equal to now is due)", n)
	}
	if n := q.PopDue(10, collect); n != 1 {
		t.Fatalf("popped %d, want 1", n)
	}
	if len(steps) != 3 || steps[0] != 0 || steps[2] != 2 {
		t.Fatalf("steps = %v", steps)
	}
}

func TestEventQueueClear(t *testing.T) {
	q := NewEventQueue(4)
	q.Push(Event{Time: 1})
	q.Push(Event{Time: 2})
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("len = %d after clear", q.Len())
	}
	if n := q.PopDue(100, func(Event) {}); n != 0 {
		t.Fatalf("popped %d after clear", n)
	}
}
