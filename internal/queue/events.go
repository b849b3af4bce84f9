package queue

// Event is a beat that has been handed to the synthesizer but has not yet
// reached real time.
type Event struct {
	Step    int
	Time    float64 // seconds, clock domain
	CountIn bool
}

// DefaultCapacity holds several seconds of sixteenth notes at the fastest tempo.
const DefaultCapacity = 256

// EventQueue is the time-ordered hand-off between the scheduler (producer)
// and the UI reconciliation loop (consumer). Events are appended in
// generation order, which is increasing time order.
type EventQueue struct {
	ring *Ring[Event]
}

func NewEventQueue(capacity int) *EventQueue {
	return &EventQueue{ring: NewRing[Event](capacity)}
}

// Push appends ev; false means the queue is full and ev was dropped.
func (q *EventQueue) Push(ev Event) bool {
	return q.ring.Push(ev)
}

// PopDue pops every event whose time is <= now, oldest first, calling f for
// each. It returns the number popped.
func (q *EventQueue) PopDue(now float64, f func(Event)) int {
	n := 0
	for {
		ev, ok := q.ring.Peek()
		if !ok || ev.Time > now {
			return n
		}
		q.ring.Pop()
		f(ev)
		n++
	}
}

// Clear drops every pending event. Consumer side only.
func (q *EventQueue) Clear() { q.ring.Clear() }

func (q *EventQueue) Len() int { return q.ring.Len() }
