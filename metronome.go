// Package beatgrid is a 16-step visual metronome. Tones are scheduled a
// short lookahead ahead of the audio clock, and a per-frame reconciliation
// step turns already-scheduled beats into display state.
package beatgrid

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	intaudio "github.com/cbegin/beatgrid-go/internal/audio"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/midiout"
	"github.com/cbegin/beatgrid-go/internal/pattern"
	"github.com/cbegin/beatgrid-go/internal/playback"
	"github.com/cbegin/beatgrid-go/internal/queue"
	"github.com/cbegin/beatgrid-go/internal/record"
	"github.com/cbegin/beatgrid-go/internal/scheduler"
	"github.com/cbegin/beatgrid-go/internal/synth"
)

const DefaultSampleRate = 48000

type (
	Pattern  = pattern.Pattern
	Loudness = pattern.Loudness
	Display  = playback.Display
	Phase    = playback.Phase
	Take     = record.Take
)

const (
	Silent = pattern.Silent
	Normal = pattern.Normal
	Accent = pattern.Accent

	Stopped    = playback.Stopped
	CountingIn = playback.CountingIn
	Playing    = playback.Playing
)

// SampleSource is what an output device pulls interleaved stereo frames from.
type SampleSource = intaudio.SampleSource

// Device is an opened audio output.
type Device = intaudio.Device

// OutputFactory opens the audio device on the first Start.
type OutputFactory func(sampleRate int, src SampleSource) (Device, error)

// EbitenOutput plays through the ebiten audio context.
func EbitenOutput() OutputFactory {
	return func(sampleRate int, src SampleSource) (Device, error) {
		return intaudio.NewPlayer(sampleRate, src, intaudio.DefaultBufferSize)
	}
}

type Option func(*config)

type config struct {
	sampleRate  int
	tempo       int
	countIn     bool
	pattern     Pattern
	output      OutputFactory
	sampleTap   func([]float32)
	onError     func(error)
	logger      logrus.FieldLogger
	midi        midiout.Sender
	midiChannel uint8
	recorder    bool
	presets     *pattern.Presets
	params      synth.Params
}

func defaultConfig() config {
	return config{
		sampleRate:  DefaultSampleRate,
		tempo:       pattern.DefaultTempo,
		countIn:     true,
		pattern:     pattern.Fill(pattern.Normal),
		output:      EbitenOutput(),
		midiChannel: midiout.DefaultChannel,
		params:      synth.DefaultParams(),
	}
}

func WithSampleRate(sr int) Option {
	return func(cfg *config) { cfg.sampleRate = sr }
}

func WithTempo(bpm int) Option {
	return func(cfg *config) { cfg.tempo = bpm }
}

func WithCountIn(enabled bool) Option {
	return func(cfg *config) { cfg.countIn = enabled }
}

func WithPattern(p Pattern) Option {
	return func(cfg *config) { cfg.pattern = p }
}

func WithOutput(f OutputFactory) Option {
	return func(cfg *config) { cfg.output = f }
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *config) { cfg.sampleTap = tap }
}

// WithErrorHandler receives synthesis failures, which never stop playback.
func WithErrorHandler(f func(error)) Option {
	return func(cfg *config) { cfg.onError = f }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithMIDI mirrors every audible tone to send as a drum note on channel
// (zero based).
func WithMIDI(send midiout.Sender, channel uint8) Option {
	return func(cfg *config) {
		cfg.midi = send
		cfg.midiChannel = channel
	}
}

// WithRecorder enables StartRecording. Front-ends that cannot offer
// recording leave it off.
func WithRecorder() Option {
	return func(cfg *config) { cfg.recorder = true }
}

func WithPresets(ps *pattern.Presets) Option {
	return func(cfg *config) { cfg.presets = ps }
}

func WithSynthParams(p synth.Params) Option {
	return func(cfg *config) { cfg.params = p }
}

type Metronome struct {
	cfg     config
	log     logrus.FieldLogger
	store   *pattern.Store
	presets *pattern.Presets
	mixer   *synth.Mixer
	ctrl    *playback.Controller
	rec     *record.Recorder
	mirror  *midiout.Mirror

	mirrorCancel context.CancelFunc
	mirrorDone   chan struct{}

	mu     sync.Mutex
	output Device
	closed bool
}

// resumeFunc adapts the lazy device opener to playback.Output.
type resumeFunc func() error

func (f resumeFunc) Resume() error { return f() }

func New(opts ...Option) (*Metronome, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, apperr.New(apperr.InvalidInput, "sample rate must be positive", "Invalid sample rate")
	}
	if cfg.presets == nil {
		cfg.presets = pattern.DefaultPresets()
	}
	store, err := pattern.NewStore(cfg.pattern, cfg.tempo)
	if err != nil {
		return nil, err
	}

	m := &Metronome{
		cfg:     cfg,
		log:     logging.Component(cfg.logger, "metronome"),
		store:   store,
		presets: cfg.presets,
	}
	if cfg.recorder {
		m.rec = record.New(cfg.sampleRate, record.WithLogger(cfg.logger))
	}

	m.mixer = synth.NewMixer(cfg.sampleRate, cfg.params,
		synth.WithLimiter(synth.DefaultLimiter(cfg.sampleRate)),
		synth.WithSampleTap(m.tap),
		synth.WithErrorHandler(cfg.onError),
		synth.WithLogger(cfg.logger),
	)
	clk := m.mixer.Clock()

	var sy synth.Synthesizer = m.mixer
	if cfg.midi != nil {
		m.mirror = midiout.New(clk, cfg.midi,
			midiout.WithChannel(cfg.midiChannel),
			midiout.WithLogger(cfg.logger),
		)
		ctx, cancel := context.WithCancel(context.Background())
		m.mirrorCancel, m.mirrorDone = cancel, make(chan struct{})
		go func() {
			defer close(m.mirrorDone)
			m.mirror.Run(ctx)
		}()
		sy = synth.Fanout{m.mixer, m.mirror}
	}

	events := queue.NewEventQueue(queue.DefaultCapacity)
	sched := scheduler.New(clk, store, sy, events, scheduler.WithLogger(cfg.logger))
	m.ctrl = playback.NewController(clk, sched, events,
		playback.WithOutput(resumeFunc(m.resume)),
		playback.WithCountIn(cfg.countIn),
		playback.WithLogger(cfg.logger),
	)
	return m, nil
}

func (m *Metronome) tap(buf []float32) {
	if m.rec != nil {
		m.rec.Tap(buf)
	}
	if m.cfg.sampleTap != nil {
		m.cfg.sampleTap(buf)
	}
}

// resume opens the output on first use and starts it pulling audio.
func (m *Metronome) resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return apperr.New(apperr.AudioUnavailable, "metronome closed", "The metronome has been shut down")
	}
	if m.output == nil {
		out, err := m.cfg.output(m.cfg.sampleRate, m.mixer)
		if err != nil {
			return err
		}
		m.output = out
		m.log.WithField("sample_rate", m.cfg.sampleRate).Info("audio output opened")
	}
	return m.output.Resume()
}

// Start begins playback, with a count-in if enabled. It returns an
// AudioUnavailable error when the output cannot be opened or resumed.
func (m *Metronome) Start() error { return m.ctrl.Start() }

// Stop halts scheduling and clears the display. Idempotent.
func (m *Metronome) Stop() { m.ctrl.Stop() }

func (m *Metronome) Toggle() error { return m.ctrl.Toggle() }

func (m *Metronome) Active() bool { return m.ctrl.Active() }

// Frame reconciles beats that have reached the audio clock. Call it once per
// display refresh; it reports whether the display changed.
func (m *Metronome) Frame() (Display, bool) { return m.ctrl.Frame() }

func (m *Metronome) State() Display { return m.ctrl.State() }

// Now is the audio clock time in seconds.
func (m *Metronome) Now() float64 { return m.mixer.Clock().Now() }

func (m *Metronome) Pattern() Pattern { return m.store.Pattern() }

// ToggleStep cycles step i through silent, normal, accent.
func (m *Metronome) ToggleStep(i int) (Loudness, error) { return m.store.Toggle(i) }

func (m *Metronome) SetStep(i int, l Loudness) error { return m.store.SetStep(i, l) }

func (m *Metronome) SetPattern(p Pattern) { m.store.Replace(p) }

func (m *Metronome) Tempo() int { return m.store.Tempo() }

// SetTempo applies from the next scheduled step; already scheduled beats keep
// their times.
func (m *Metronome) SetTempo(bpm int) error { return m.store.SetTempo(bpm) }

// SetCountIn applies at the next Start.
func (m *Metronome) SetCountIn(enabled bool) { m.ctrl.SetCountIn(enabled) }

func (m *Metronome) CountIn() bool { return m.ctrl.CountIn() }

func (m *Metronome) Presets() *pattern.Presets { return m.presets }

// LoadPreset replaces the whole pattern with a named preset.
func (m *Metronome) LoadPreset(name string) error {
	p, err := m.presets.Lookup(name)
	if err != nil {
		return err
	}
	m.store.Replace(p)
	m.log.WithField("preset", name).Debug("preset loaded")
	return nil
}

// SynthFailures counts tones that could not be scheduled.
func (m *Metronome) SynthFailures() int64 { return m.mixer.Failures() }

// DroppedEvents counts display events lost because Frame was not called often
// enough to drain the event queue.
func (m *Metronome) DroppedEvents() int64 { return m.ctrl.Dropped() }

func (m *Metronome) CanRecord() bool { return m.rec != nil }

func (m *Metronome) recorder() (*record.Recorder, error) {
	if m.rec == nil {
		return nil, apperr.New(apperr.RecordingUnsupported, "recorder not enabled",
			"Recording is not available here")
	}
	return m.rec, nil
}

// StartRecording captures the mixed output at bitDepth (8 or 16).
func (m *Metronome) StartRecording(bitDepth int) error {
	rec, err := m.recorder()
	if err != nil {
		return err
	}
	return rec.Start(bitDepth)
}

func (m *Metronome) StopRecording() (Take, error) {
	rec, err := m.recorder()
	if err != nil {
		return Take{}, err
	}
	return rec.Stop()
}

func (m *Metronome) Recording() bool {
	return m.rec != nil && m.rec.Recording()
}

// SaveRecording writes the last finished take to path as WAV.
func (m *Metronome) SaveRecording(path string) error {
	rec, err := m.recorder()
	if err != nil {
		return err
	}
	return rec.Save(path)
}

// Close stops playback and releases the audio and MIDI outputs.
func (m *Metronome) Close() error {
	m.Stop()
	m.mixer.Close()
	if m.mirrorCancel != nil {
		m.mirrorCancel()
		<-m.mirrorDone
		m.mirrorCancel = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.output != nil {
		return m.output.Close()
	}
	return nil
}
