// Package midiout mirrors scheduled tones to a MIDI output port as drum
// notes, so an external instrument can click along.
package midiout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/clock"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

const (
	// DefaultChannel is the General MIDI percussion channel (10, zero based).
	DefaultChannel = 9
	// GM hi and low wood block.
	DefaultAccentNote = 76
	DefaultNormalNote = 77

	pendingSize = 64
)

// Sender writes one message to a port.
type Sender func(midi.Message) error

type note struct {
	key, velocity uint8
	at            float64
}

// Mirror implements synth.Synthesizer. Synthesize never blocks; Run sends
// each note when the clock reaches its time.
type Mirror struct {
	clock   clock.Clock
	send    Sender
	channel uint8
	keys    [pattern.Accent + 1]uint8
	vels    [pattern.Accent + 1]uint8
	pending chan note
	log     logrus.FieldLogger

	sent    atomic.Int64
	dropped atomic.Int64
}

type Option func(*Mirror)

func WithChannel(ch uint8) Option {
	return func(m *Mirror) { m.channel = ch }
}

func WithNotes(normal, accent uint8) Option {
	return func(m *Mirror) {
		m.keys[pattern.Normal] = normal
		m.keys[pattern.Accent] = accent
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Mirror) { m.log = logging.Component(l, "midiout") }
}

func New(clk clock.Clock, send Sender, opts ...Option) *Mirror {
	m := &Mirror{
		clock:   clk,
		send:    send,
		channel: DefaultChannel,
		pending: make(chan note, pendingSize),
		log:     logging.Component(nil, "midiout"),
	}
	m.keys[pattern.Normal], m.keys[pattern.Accent] = DefaultNormalNote, DefaultAccentNote
	m.vels[pattern.Normal], m.vels[pattern.Accent] = 90, 127
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open finds an output port by name (a substring match, as the driver does)
// and returns a sender for it. A MIDI driver must be registered by a blank
// import in the main package.
func Open(portName string) (Sender, error) {
	out, err := midi.FindOutPort(portName)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.NotFound,
			fmt.Sprintf("find MIDI port %q", portName),
			fmt.Sprintf("No MIDI output named %q", portName))
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.NotFound,
			fmt.Sprintf("open MIDI port %q", portName),
			fmt.Sprintf("Could not open MIDI output %q", portName))
	}
	return send, nil
}

// Ports lists the available output port names.
func Ports() []string {
	var names []string
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

// CloseDriver releases the registered MIDI driver.
func CloseDriver() { midi.CloseDriver() }

func (m *Mirror) Synthesize(l pattern.Loudness, at float64) {
	if l == pattern.Silent || int(l) >= len(m.keys) {
		return
	}
	select {
	case m.pending <- note{key: m.keys[l], velocity: m.vels[l], at: at}:
	default:
		m.dropped.Add(1)
		m.log.WithField("at", at).Warn("midi note dropped, queue full")
	}
}

// Run sends queued notes at their clock time until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-m.pending:
			if wait := time.Duration((n.at - m.clock.Now()) * float64(time.Second)); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			m.trigger(n)
		}
	}
}

func (m *Mirror) trigger(n note) {
	if err := m.send(midi.NoteOn(m.channel, n.key, n.velocity)); err != nil {
		m.log.WithError(err).Warn("midi send failed")
		return
	}
	if err := m.send(midi.NoteOff(m.channel, n.key)); err != nil {
		m.log.WithError(err).Warn("midi send failed")
		return
	}
	m.sent.Add(1)
}

// Sent counts notes delivered to the port.
func (m *Mirror) Sent() int64 { return m.sent.Load() }

// Dropped counts notes lost to a full queue.
func (m *Mirror) Dropped() int64 { return m.dropped.Load() }
