// Package record captures the mixed output from the sample tap and exports
// it as a WAV file.
package record

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/youpy/go-wav"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/queue"
)

// DefaultMaxDuration bounds memory held by one take.
const DefaultMaxDuration = 10 * time.Minute

// Take is a finished recording.
type Take struct {
	SampleRate int
	BitDepth   int
	Samples    []float32 // interleaved stereo
}

func (t Take) Frames() int { return len(t.Samples) / 2 }

func (t Take) Duration() time.Duration {
	if t.SampleRate == 0 {
		return 0
	}
	return time.Duration(t.Frames()) * time.Second / time.Duration(t.SampleRate)
}

// Tapped audio travels from the audio thread to the recorder in fixed blocks.
// The pool is allocated once; Tap never locks or allocates.
const (
	blockSamples = 4096
	blockCount   = 64
	drainEvery   = 10 * time.Millisecond
)

// Recorder buffers tapped audio between Start and Stop.
type Recorder struct {
	sampleRate int
	maxFrames  int
	log        logrus.FieldLogger

	recording atomic.Bool
	filled    *queue.Ring[[]float32] // Tap -> drain
	free      *queue.Ring[[]float32] // drain -> Tap
	overruns  atomic.Int64

	mu        sync.Mutex
	truncated bool
	bitDepth  int
	buf       []float32
	last      *Take
	stop      chan struct{}
	done      chan struct{}
}

type Option func(*Recorder)

func WithMaxDuration(d time.Duration) Option {
	return func(r *Recorder) { r.maxFrames = int(d.Seconds() * float64(r.sampleRate)) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Recorder) { r.log = logging.Component(l, "record") }
}

func New(sampleRate int, opts ...Option) *Recorder {
	r := &Recorder{
		sampleRate: sampleRate,
		log:        logging.Component(nil, "record"),
		filled:     queue.NewRing[[]float32](blockCount),
		free:       queue.NewRing[[]float32](blockCount),
	}
	r.maxFrames = int(DefaultMaxDuration.Seconds() * float64(sampleRate))
	for _, opt := range opts {
		opt(r)
	}
	for i := 0; i < blockCount; i++ {
		r.free.Push(make([]float32, 0, blockSamples))
	}
	return r
}

// Supported reports whether bitDepth can be exported.
func Supported(bitDepth int) bool {
	return bitDepth == 8 || bitDepth == 16
}

// Start begins a new take. A take in progress is discarded.
func (r *Recorder) Start(bitDepth int) error {
	if !Supported(bitDepth) {
		return apperr.New(apperr.RecordingUnsupported,
			fmt.Sprintf("unsupported bit depth %d", bitDepth),
			"Recording supports 8 or 16 bit WAV only")
	}
	r.halt()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.filled.Drain(func(b []float32) { r.free.Push(b) })
	r.overruns.Store(0)
	r.truncated = false
	r.bitDepth = bitDepth
	r.buf = r.buf[:0]
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.recording.Store(true)
	go r.run(r.stop, r.done)
	r.log.WithField("bits", bitDepth).Info("recording started")
	return nil
}

// Tap hands one interleaved stereo buffer to the recorder. Install it as the
// mixer's sample tap. When every block is in flight the buffer is dropped and
// counted as an overrun.
func (r *Recorder) Tap(samples []float32) {
	if !r.recording.Load() {
		return
	}
	for len(samples) > 0 {
		b, ok := r.free.Pop()
		if !ok {
			r.overruns.Add(1)
			return
		}
		n := min(len(samples), cap(b))
		r.filled.Push(append(b[:0], samples[:n]...))
		samples = samples[n:]
	}
}

func (r *Recorder) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(drainEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			r.mu.Lock()
			r.drainLocked()
			r.mu.Unlock()
		}
	}
}

// drainLocked moves filled blocks into the take and returns them to the pool.
func (r *Recorder) drainLocked() {
	r.filled.Drain(func(b []float32) {
		if !r.truncated {
			room := r.maxFrames*2 - len(r.buf)
			if room < len(b) {
				b = b[:room]
				r.truncated = true
			}
			r.buf = append(r.buf, b...)
		}
		r.free.Push(b[:0])
	})
}

// halt stops the drain goroutine and waits for it to exit.
func (r *Recorder) halt() {
	r.mu.Lock()
	r.recording.Store(false)
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

// Stop ends the take and keeps it for Export.
func (r *Recorder) Stop() (Take, error) {
	if !r.recording.Load() {
		return Take{}, apperr.New(apperr.InvalidInput, "not recording", "Recording has not started")
	}
	r.halt()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.drainLocked()
	take := Take{
		SampleRate: r.sampleRate,
		BitDepth:   r.bitDepth,
		Samples:    append([]float32(nil), r.buf...),
	}
	r.last = &take
	entry := r.log.WithField("duration", take.Duration())
	if n := r.overruns.Swap(0); n > 0 {
		entry.WithField("dropped_buffers", n).Warn("recorder fell behind, take has gaps")
	}
	if r.truncated {
		entry.Warn("recording stopped, take was truncated")
	} else {
		entry.Info("recording stopped")
	}
	return take, nil
}

func (r *Recorder) Recording() bool {
	return r.recording.Load()
}

// Last returns the most recent finished take.
func (r *Recorder) Last() (Take, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Take{}, false
	}
	return *r.last, true
}

// Export writes the most recent take to w as WAV.
func (r *Recorder) Export(w io.Writer) error {
	take, ok := r.Last()
	if !ok {
		return apperr.New(apperr.NotFound, "no finished take", "Nothing has been recorded yet")
	}
	return WriteWAV(w, take.Samples, take.SampleRate, take.BitDepth)
}

// Save exports the most recent take to path; "~" is expanded.
func (r *Recorder) Save(path string) error {
	full, err := homedir.Expand(path)
	if err != nil {
		return apperr.Wrap(err, apperr.InvalidInput, "expand path", "Invalid file path")
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	if err := r.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteWAV encodes interleaved stereo float32 samples as 8 or 16 bit PCM.
func WriteWAV(w io.Writer, samples []float32, sampleRate, bitDepth int) error {
	if !Supported(bitDepth) {
		return apperr.New(apperr.RecordingUnsupported,
			fmt.Sprintf("unsupported bit depth %d", bitDepth),
			"Recording supports 8 or 16 bit WAV only")
	}
	frames := len(samples) / 2
	out := make([]wav.Sample, frames)
	for i := range out {
		out[i].Values[0] = quantize(samples[i*2], bitDepth)
		out[i].Values[1] = quantize(samples[i*2+1], bitDepth)
	}
	ww := wav.NewWriter(w, uint32(frames), 2, uint32(sampleRate), uint16(bitDepth))
	return ww.WriteSamples(out)
}

// quantize maps [-1, 1] to signed 16 bit or unsigned 8 bit PCM.
func quantize(v float32, bitDepth int) int {
	f := math.Max(-1, math.Min(1, float64(v)))
	if bitDepth == 8 {
		return int(math.Round(f*127)) + 128
	}
	return int(math.Round(f * 32767))
}
