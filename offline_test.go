package beatgrid

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/youpy/go-wav"

	"github.com/cbegin/beatgrid-go/internal/pattern"
)

const offlineRate = 8000

// onsets returns the frames where the left channel leaves silence.
func onsets(samples []float32) []int {
	var out []int
	silent := true
	quiet := 0
	for f := 0; f < len(samples)/2; f++ {
		v := samples[f*2]
		if v != 0 {
			if silent {
				// tones begin with a zero sample
				out = append(out, f-1)
			}
			silent = false
			quiet = 0
			continue
		}
		quiet++
		if quiet > 4 {
			silent = true
		}
	}
	return out
}

func TestRenderCountInThenPattern(t *testing.T) {
	samples, err := RenderPattern(pattern.Fill(Normal), 60, true, offlineRate, 5.9)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := onsets(samples)
	var want []int
	for beat := 0; beat < 4; beat++ {
		want = append(want, beat*offlineRate)
	}
	for k := 0; k < 8; k++ {
		want = append(want, 4*offlineRate+k*offlineRate/4)
	}
	if len(got) != len(want) {
		t.Fatalf("onsets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("onset %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRenderSilentStepsStaySilent(t *testing.T) {
	var p Pattern
	p[0] = Accent
	samples, err := RenderPattern(p, 120, false, offlineRate, 2.1)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got := onsets(samples)
	if len(got) != 2 || got[0] != 0 || got[1] != 2*offlineRate {
		t.Fatalf("onsets = %v, want [0 %d]", got, 2*offlineRate)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	p, err := pattern.DefaultPresets().Lookup("bossa-nova")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	hash := func() [32]byte {
		samples, err := RenderPattern(p, 132, true, 48000, 3)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		var buf bytes.Buffer
		if err := EncodeWAV(&buf, samples, 48000); err != nil {
			t.Fatalf("encode: %v", err)
		}
		return sha256.Sum256(buf.Bytes())
	}
	if hash() != hash() {
		t.Fatalf("two renders of the same pattern differ")
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	if _, err := RenderPattern(pattern.Fill(Normal), 300, false, offlineRate, 1); err == nil {
		t.Fatalf("tempo 300 accepted")
	}
	if _, err := RenderPattern(pattern.Fill(Normal), 100, false, 0, 1); err == nil {
		t.Fatalf("sample rate 0 accepted")
	}
}

func TestEncodeWAV(t *testing.T) {
	samples, err := RenderPattern(pattern.Fill(Accent), 200, false, offlineRate, 0.5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, samples, offlineRate); err != nil {
		t.Fatalf("encode: %v", err)
	}
	rd := wav.NewReader(bytes.NewReader(buf.Bytes()))
	format, err := rd.Format()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if format.SampleRate != offlineRate || format.NumChannels != 2 || format.BitsPerSample != 16 {
		t.Fatalf("format = %+v", format)
	}
	frames := 0
	for {
		s, err := rd.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		frames += len(s)
	}
	if frames != len(samples)/2 {
		t.Fatalf("frames = %d, want %d", frames, len(samples)/2)
	}
}
