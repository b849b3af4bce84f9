package synth

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/clock"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/pattern"
	"github.com/cbegin/beatgrid-go/internal/queue"
)

// Synthesizer produces a tone for a loudness class at an absolute clock time.
// It never blocks and never returns an error to the caller.
type Synthesizer interface {
	Synthesize(l pattern.Loudness, at float64)
}

// Fanout sends every tone to several synthesizers.
type Fanout []Synthesizer

func (f Fanout) Synthesize(l pattern.Loudness, at float64) {
	for _, s := range f {
		if s != nil {
			s.Synthesize(l, at)
		}
	}
}

const pendingSize = 64

type toneStart struct {
	class pattern.Loudness
	frame int64
}

type voice struct {
	active bool
	tone   []float32
	start  int64 // absolute frame of the first sample
	pos    int   // samples already rendered
}

// Mixer is the audio-thread side of the synthesizer. Synthesize records
// tone starts in a lock-free ring; Process renders them into interleaved
// stereo float32 at their exact frames and advances the frame clock.
type Mixer struct {
	clock   *clock.FrameClock
	params  Params
	tones   [pattern.Accent + 1][]float32
	pending *queue.Ring[toneStart]
	voices  []voice
	limiter *Limiter

	sampleTap func([]float32)
	onError   func(error)
	log       logrus.FieldLogger

	closed   atomic.Bool
	failures atomic.Int64
}

type MixerOption func(*Mixer)

// WithSampleTap installs a callback invoked with each rendered stereo buffer.
// It runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) MixerOption {
	return func(m *Mixer) { m.sampleTap = tap }
}

// WithErrorHandler receives synthesis failures. Called on the caller of Synthesize.
func WithErrorHandler(f func(error)) MixerOption {
	return func(m *Mixer) { m.onError = f }
}

// WithLimiter runs the mixed block through l before the tap sees it.
func WithLimiter(l *Limiter) MixerOption {
	return func(m *Mixer) { m.limiter = l }
}

func WithLogger(l logrus.FieldLogger) MixerOption {
	return func(m *Mixer) { m.log = logging.Component(l, "synth") }
}

func NewMixer(sampleRate int, params Params, opts ...MixerOption) *Mixer {
	if params.Voices <= 0 {
		params.Voices = DefaultParams().Voices
	}
	m := &Mixer{
		clock:   clock.NewFrameClock(sampleRate),
		params:  params,
		pending: queue.NewRing[toneStart](pendingSize),
		voices:  make([]voice, params.Voices),
		log:     logging.Component(nil, "synth"),
	}
	for _, l := range []pattern.Loudness{pattern.Normal, pattern.Accent} {
		m.tones[l] = renderTone(sampleRate, params.freq(l), params.gain(l), params)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Clock is the audio-domain clock driven by Process.
func (m *Mixer) Clock() *clock.FrameClock { return m.clock }

// Synthesize schedules a tone to start exactly at clock time at.
func (m *Mixer) Synthesize(l pattern.Loudness, at float64) {
	if l == pattern.Silent {
		return
	}
	if m.closed.Load() {
		m.fail(apperr.New(apperr.SynthesisFailure, "mixer closed", "Audio output is closed"))
		return
	}
	if int(l) >= len(m.tones) || m.tones[l] == nil {
		m.fail(apperr.New(apperr.SynthesisFailure,
			fmt.Sprintf("no tone for %v", l), "Unknown sound"))
		return
	}
	if !m.pending.Push(toneStart{class: l, frame: m.clock.FrameAt(at)}) {
		m.fail(apperr.New(apperr.SynthesisFailure,
			fmt.Sprintf("tone queue full, dropped %v at %.4fs", l, at), "Audio output is falling behind"))
	}
}

func (m *Mixer) fail(err error) {
	m.failures.Add(1)
	m.log.WithError(err).Warn("tone dropped")
	if m.onError != nil {
		m.onError(err)
	}
}

// Failures counts tones that could not be scheduled.
func (m *Mixer) Failures() int64 { return m.failures.Load() }

// Close makes further Synthesize calls fail. Process keeps rendering silence.
func (m *Mixer) Close() { m.closed.Store(true) }

// Process renders len(dst)/2 stereo frames.
func (m *Mixer) Process(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	frames := len(dst) / 2
	base := m.clock.Frames()
	end := base + int64(frames)

	m.pending.Drain(m.startVoice)

	for i := range m.voices {
		v := &m.voices[i]
		if !v.active || v.start >= end {
			continue
		}
		offset := 0
		if v.pos == 0 && v.start > base {
			offset = int(v.start - base)
		}
		n := len(v.tone) - v.pos
		if n > frames-offset {
			n = frames - offset
		}
		for k := 0; k < n; k++ {
			s := v.tone[v.pos+k]
			dst[(offset+k)*2] += s
			dst[(offset+k)*2+1] += s
		}
		v.pos += n
		if v.pos >= len(v.tone) {
			*v = voice{}
		}
	}

	if m.limiter != nil {
		m.limiter.ProcessBlock(dst)
	}
	if m.sampleTap != nil {
		m.sampleTap(dst)
	}
	m.clock.Advance(frames)
}

func (m *Mixer) startVoice(ts toneStart) {
	slot := -1
	for i := range m.voices {
		if !m.voices[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		// steal the voice that started first
		slot = 0
		for i := range m.voices {
			if m.voices[i].start < m.voices[slot].start {
				slot = i
			}
		}
	}
	m.voices[slot] = voice{active: true, tone: m.tones[ts.class], start: ts.frame}
}

// ActiveVoices returns the number of voices still sounding or waiting to start.
// Audio thread only.
func (m *Mixer) ActiveVoices() int {
	n := 0
	for i := range m.voices {
		if m.voices[i].active {
			n++
		}
	}
	return n
}
