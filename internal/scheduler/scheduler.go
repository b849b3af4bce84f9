// Package scheduler turns musical time (tempo, step index, count-in) into
// tones scheduled at absolute audio-clock times, a short horizon ahead of now.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go/internal/clock"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/pattern"
	"github.com/cbegin/beatgrid-go/internal/queue"
	"github.com/cbegin/beatgrid-go/internal/synth"
)

const (
	// Lookahead is how far past now tones are scheduled on each tick.
	Lookahead = 100 * time.Millisecond
	// Cadence is the interval between ticks while running.
	Cadence = 25 * time.Millisecond
	// CountInBeats is the length of the count-in, in quarter notes.
	CountInBeats = 4
)

// Scheduler owns the timeline cursor. Reset and Tick must not be called
// concurrently with each other or with Run.
type Scheduler struct {
	clock  clock.Clock
	store  *pattern.Store
	synth  synth.Synthesizer
	events *queue.EventQueue

	horizon float64
	cadence time.Duration
	log     logrus.FieldLogger

	countInEnabled bool
	countIn        int     // 0..CountInBeats; CountInBeats means finished
	cursor         int     // -1..15, last pattern step generated
	next           float64 // time of the next unscheduled slot

	dropped atomic.Int64
}

type Option func(*Scheduler)

func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) { s.horizon = d.Seconds() }
}

func WithCadence(d time.Duration) Option {
	return func(s *Scheduler) { s.cadence = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = logging.Component(l, "scheduler") }
}

func New(clk clock.Clock, store *pattern.Store, sy synth.Synthesizer, events *queue.EventQueue, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:   clk,
		store:   store,
		synth:   sy,
		events:  events,
		horizon: Lookahead.Seconds(),
		cadence: Cadence,
		log:     logging.Component(nil, "scheduler"),
		countIn: CountInBeats,
		cursor:  -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset rewinds the timeline to the current clock time.
func (s *Scheduler) Reset(countIn bool) {
	s.next = s.clock.Now()
	s.countInEnabled = countIn
	if countIn {
		s.countIn = 0
	} else {
		s.countIn = CountInBeats
	}
	s.cursor = -1
}

// Tick generates every slot whose time falls before now plus the lookahead
// horizon and returns how many it generated.
func (s *Scheduler) Tick() int {
	limit := s.clock.Now() + s.horizon
	n := 0
	for s.next < limit {
		s.slot()
		n++
	}
	return n
}

func (s *Scheduler) slot() {
	beat := 60.0 / float64(s.store.Tempo())

	if s.countInEnabled && s.countIn < CountInBeats {
		s.synth.Synthesize(pattern.Accent, s.next)
		s.push(queue.Event{Step: s.countIn, Time: s.next, CountIn: true})
		s.next += beat
		s.countIn++
		if s.countIn == CountInBeats {
			s.cursor = -1
		}
		return
	}

	s.cursor = (s.cursor + 1) % pattern.Steps
	s.synth.Synthesize(s.store.Step(s.cursor), s.next)
	s.push(queue.Event{Step: s.cursor, Time: s.next})
	s.next += beat / 4
}

func (s *Scheduler) push(ev queue.Event) {
	if s.events.Push(ev) {
		return
	}
	s.dropped.Add(1)
	s.log.WithFields(logrus.Fields{
		"step":     ev.Step,
		"time":     ev.Time,
		"count_in": ev.CountIn,
	}).Warn("event queue full, display event dropped")
}

// Run ticks at the cadence until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Next returns the time of the next unscheduled slot.
func (s *Scheduler) Next() float64 { return s.next }

// Dropped counts display events lost to a full queue.
func (s *Scheduler) Dropped() int64 { return s.dropped.Load() }
