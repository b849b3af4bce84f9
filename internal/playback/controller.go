package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/clock"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/queue"
	"github.com/cbegin/beatgrid-go/internal/scheduler"
)

// Output is the audio device whose clock the scheduler reads. Resume starts
// the clock if it is suspended and is called on every Start.
type Output interface {
	Resume() error
}

// Controller runs the Stopped -> active -> Stopped transitions. The
// scheduling goroutine and the audio thread never take its mutex.
type Controller struct {
	mu     sync.Mutex
	clock  clock.Clock
	output Output
	events *queue.EventQueue
	sched  *scheduler.Scheduler
	recon  *Reconciler
	log    logrus.FieldLogger

	countIn atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Controller)

func WithOutput(out Output) Option {
	return func(c *Controller) { c.output = out }
}

func WithCountIn(enabled bool) Option {
	return func(c *Controller) { c.countIn.Store(enabled) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = logging.Component(l, "playback") }
}

// NewController wires a scheduler and its event queue to a reconciler.
// events must be the queue sched writes to.
func NewController(clk clock.Clock, sched *scheduler.Scheduler, events *queue.EventQueue, opts ...Option) *Controller {
	c := &Controller{
		clock:  clk,
		events: events,
		sched:  sched,
		recon:  NewReconciler(events),
		log:    logging.Component(nil, "playback"),
	}
	c.countIn.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins playback. It is a no-op when already active.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil
	}
	if c.output != nil {
		if err := c.output.Resume(); err != nil {
			c.log.WithError(err).Error("audio output unavailable")
			return apperr.Wrap(err, apperr.AudioUnavailable,
				"resume audio output", "Audio output is not available")
		}
	}

	countIn := c.countIn.Load()
	c.events.Clear()
	c.sched.Reset(countIn)
	c.recon.Arm(countIn)
	c.sched.Tick()
	c.log.WithFields(logrus.Fields{
		"count_in": countIn,
		"at":       c.clock.Now(),
	}).Info("playback started")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.sched.Run(ctx)
	}()
	c.cancel, c.done = cancel, done
	return nil
}

// Stop halts the scheduler and clears the display at once. Tones already
// handed to the synthesizer still sound. Stopping twice is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
	c.recon.Clear()
	c.log.Info("playback stopped")
}

// Toggle starts when stopped and stops when active.
func (c *Controller) Toggle() error {
	if c.Active() {
		c.Stop()
		return nil
	}
	return c.Start()
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// SetCountIn takes effect at the next Start; a running count-in is unaffected.
func (c *Controller) SetCountIn(enabled bool) { c.countIn.Store(enabled) }

func (c *Controller) CountIn() bool { return c.countIn.Load() }

// Frame reconciles due events against the clock. Front-ends call it once per
// display refresh; it does nothing while stopped.
func (c *Controller) Frame() (Display, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return c.recon.State(), false
	}
	changed := c.recon.Frame(c.clock.Now())
	return c.recon.State(), changed
}

// Dropped counts display events the scheduler could not queue because
// nothing was draining it.
func (c *Controller) Dropped() int64 { return c.sched.Dropped() }

func (c *Controller) State() Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recon.State()
}
