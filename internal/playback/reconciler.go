// Package playback drives the start/stop state machine and reconciles
// already-scheduled beats against the audio clock for display.
package playback

import (
	"fmt"

	"github.com/cbegin/beatgrid-go/internal/queue"
)

type Phase int

const (
	Stopped Phase = iota
	CountingIn
	Playing
)

func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case CountingIn:
		return "counting-in"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Display is what a front-end draws.
type Display struct {
	Phase Phase
	Count int // count-in number 1..4, 0 when none is shown
	Step  int // last pattern step reached, -1 before the first
}

// Highlighted returns the grid step to highlight, or -1.
func (d Display) Highlighted() int {
	if d.Phase != Playing {
		return -1
	}
	return d.Step
}

// ShowCount reports whether the count-in overlay is visible.
func (d Display) ShowCount() bool {
	return d.Phase == CountingIn && d.Count > 0
}

var stoppedDisplay = Display{Phase: Stopped, Step: -1}

// Reconciler consumes due events from the queue. It is not safe for
// concurrent use; Controller serialises access.
type Reconciler struct {
	events *queue.EventQueue
	state  Display
}

func NewReconciler(events *queue.EventQueue) *Reconciler {
	return &Reconciler{events: events, state: stoppedDisplay}
}

// Arm sets the display for a fresh run. A count-in run shows the overlay
// with no number until the first count-in beat is reached.
func (r *Reconciler) Arm(countIn bool) {
	if countIn {
		r.state = Display{Phase: CountingIn, Step: -1}
		return
	}
	r.state = Display{Phase: Playing, Step: -1}
}

// Clear resets the display to stopped.
func (r *Reconciler) Clear() { r.state = stoppedDisplay }

// Frame pops every event due at now, oldest first, and reports whether the
// display changed.
func (r *Reconciler) Frame(now float64) bool {
	before := r.state
	r.events.PopDue(now, r.apply)
	return r.state != before
}

func (r *Reconciler) apply(ev queue.Event) {
	if ev.CountIn {
		r.state.Phase = CountingIn
		r.state.Count = ev.Step + 1
		return
	}
	if r.state.Phase == CountingIn {
		r.state.Phase = Playing
		r.state.Count = 0
	}
	r.state.Step = ev.Step
}

func (r *Reconciler) State() Display { return r.state }
