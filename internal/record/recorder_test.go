package record

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/youpy/go-wav"

	"github.com/cbegin/beatgrid-go/internal/apperr"
)

func TestStartRejectsUnsupportedDepth(t *testing.T) {
	r := New(48000)
	for _, bits := range []int{0, 12, 24, 32} {
		if err := r.Start(bits); !apperr.Is(err, apperr.RecordingUnsupported) {
			t.Fatalf("Start(%d) err = %v", bits, err)
		}
	}
	if r.Recording() {
		t.Fatalf("recording after rejected start")
	}
}

func TestTapOnlyCapturesWhileRecording(t *testing.T) {
	r := New(1000)
	r.Tap([]float32{1, 1})
	if err := r.Start(16); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Tap([]float32{0.5, -0.5, 0.25, -0.25})
	take, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	r.Tap([]float32{1, 1})

	if take.Frames() != 2 || take.Samples[0] != 0.5 || take.Samples[3] != -0.25 {
		t.Fatalf("take = %+v", take)
	}
	if take.Duration() != 2*time.Millisecond {
		t.Fatalf("duration = %v", take.Duration())
	}
}

func TestTakeIsTruncatedAtMaxDuration(t *testing.T) {
	r := New(1000, WithMaxDuration(3*time.Millisecond))
	_ = r.Start(16)
	r.Tap(make([]float32, 4))
	r.Tap(make([]float32, 4))
	r.Tap(make([]float32, 4))
	take, _ := r.Stop()
	if take.Frames() != 3 {
		t.Fatalf("frames = %d, want 3", take.Frames())
	}
}

func TestStopAndExportErrors(t *testing.T) {
	r := New(48000)
	if _, err := r.Stop(); !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("stop err = %v", err)
	}
	if err := r.Export(io.Discard); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("export err = %v", err)
	}
}

func TestExportRoundTrip16(t *testing.T) {
	r := New(44100)
	_ = r.Start(16)
	r.Tap([]float32{0, 0, 1, -1, 0.5, -0.5, 2, -2})
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var buf bytes.Buffer
	if err := r.Export(&buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	rd := wav.NewReader(bytes.NewReader(buf.Bytes()))
	format, err := rd.Format()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if format.NumChannels != 2 || format.SampleRate != 44100 || format.BitsPerSample != 16 {
		t.Fatalf("format = %+v", format)
	}

	var got []int
	for {
		samples, err := rd.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for _, s := range samples {
			got = append(got, rd.IntValue(s, 0), rd.IntValue(s, 1))
		}
	}
	want := []int{0, 0, 32767, -32767, 16384, -16384, 32767, -32767}
	if len(got) != len(want) {
		t.Fatalf("read %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("value %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWriteWAV8BitHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0, 0, 1, -1}, 8000, 8); err != nil {
		t.Fatalf("write: %v", err)
	}
	format, err := wav.NewReader(bytes.NewReader(buf.Bytes())).Format()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if format.BitsPerSample != 8 || format.BlockAlign != 2 {
		t.Fatalf("format = %+v", format)
	}
	// 44 byte header plus two frames of two bytes
	if buf.Len() != 48 {
		t.Fatalf("file size = %d, want 48", buf.Len())
	}
}

func TestSave(t *testing.T) {
	r := New(8000)
	_ = r.Start(16)
	r.Tap([]float32{0.1, 0.1})
	_, _ = r.Stop()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := r.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestTapSplitsLargeBuffersAcrossBlocks(t *testing.T) {
	r := New(48000)
	_ = r.Start(16)
	in := make([]float32, 3*blockSamples+10)
	for i := range in {
		in[i] = float32(i%100) / 100
	}
	r.Tap(in)
	take, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(take.Samples) != len(in) {
		t.Fatalf("captured %d samples, want %d", len(take.Samples), len(in))
	}
	for i := range in {
		if take.Samples[i] != in[i] {
			t.Fatalf("sample %d = %v, want %v", i, take.Samples[i], in[i])
		}
	}
}

func TestTapDoesNotWaitForRecorderLock(t *testing.T) {
	r := New(48000)
	_ = r.Start(16)
	block := make([]float32, blockSamples)

	// Holding the lock stalls the drain goroutine, so the pool runs dry.
	r.mu.Lock()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < blockCount+5; i++ {
			r.Tap(block)
		}
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		r.mu.Unlock()
		t.Fatalf("Tap blocked on the recorder lock")
	}
	if got := r.overruns.Load(); got != 5 {
		r.mu.Unlock()
		t.Fatalf("overruns = %d, want 5", got)
	}
	r.mu.Unlock()

	take, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if want := blockCount * blockSamples / 2; take.Frames() != want {
		t.Fatalf("frames = %d, want %d", take.Frames(), want)
	}
}

func TestRestartDiscardsPendingBlocks(t *testing.T) {
	r := New(1000)
	_ = r.Start(16)
	r.Tap([]float32{1, 1, 1, 1})
	_ = r.Start(8)
	r.Tap([]float32{0.5, 0.5})
	take, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if take.Frames() != 1 || take.BitDepth != 8 {
		t.Fatalf("take = %d frames at %d bits, want 1 at 8", take.Frames(), take.BitDepth)
	}
}
