package beatgrid

import (
	"io"
	"math"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/pattern"
	"github.com/cbegin/beatgrid-go/internal/queue"
	"github.com/cbegin/beatgrid-go/internal/record"
	"github.com/cbegin/beatgrid-go/internal/scheduler"
	"github.com/cbegin/beatgrid-go/internal/synth"
)

const renderBlockFrames = 256

// RenderPattern plays p for seconds without an audio device and returns
// interleaved stereo samples. The scheduler ticks once per block against the
// rendered-frame clock, so every tone lands on its exact frame.
func RenderPattern(p Pattern, bpm int, countIn bool, sampleRate int, seconds float64) ([]float32, error) {
	if sampleRate <= 0 || seconds < 0 || math.IsNaN(seconds) {
		return nil, apperr.New(apperr.InvalidInput, "invalid render length or sample rate", "Invalid render settings")
	}
	store, err := pattern.NewStore(p, bpm)
	if err != nil {
		return nil, err
	}
	mixer := synth.NewMixer(sampleRate, synth.DefaultParams())
	events := queue.NewEventQueue(queue.DefaultCapacity)
	sched := scheduler.New(mixer.Clock(), store, mixer, events)
	sched.Reset(countIn)

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	discard := func(queue.Event) {}
	for start := 0; start < frames; start += renderBlockFrames {
		end := start + renderBlockFrames
		if end > frames {
			end = frames
		}
		sched.Tick()
		mixer.Process(out[start*2 : end*2])
		events.PopDue(mixer.Clock().Now(), discard)
	}
	return out, nil
}

// EncodeWAV writes interleaved stereo samples as 16-bit PCM WAV.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	return record.WriteWAV(w, samples, sampleRate, 16)
}
