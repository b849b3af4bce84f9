package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/config"
)

type nopDevice struct{}

func (nopDevice) Resume() error { return nil }
func (nopDevice) Close() error  { return nil }

func newTestEnv(t *testing.T, opts ...beatgrid.Option) (*env, *bytes.Buffer) {
	t.Helper()
	opts = append([]beatgrid.Option{
		beatgrid.WithSampleRate(8000),
		beatgrid.WithOutput(func(int, beatgrid.SampleSource) (beatgrid.Device, error) {
			return nopDevice{}, nil
		}),
	}, opts...)
	m, err := beatgrid.New(opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	var out bytes.Buffer
	return &env{m: m, out: &out, recordBits: 16}, &out
}

func TestEvalEditsPattern(t *testing.T) {
	e, out := newTestEnv(t)
	for _, line := range []string{"bpm 96", "toggle 1", "step 5 silent", "countin off"} {
		if err := e.eval(line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if e.m.Tempo() != 96 || e.m.CountIn() {
		t.Fatalf("tempo = %d countIn = %v", e.m.Tempo(), e.m.CountIn())
	}
	p := e.m.Pattern()
	if p[0] != beatgrid.Accent || p[4] != beatgrid.Silent {
		t.Fatalf("pattern = %v", p)
	}
	if !strings.Contains(out.String(), "step 1: accent") {
		t.Fatalf("toggle output = %q", out.String())
	}
}

func TestEvalSetAndShow(t *testing.T) {
	e, out := newTestEnv(t)
	if err := e.eval("set X... x... x... x..."); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := e.eval("show"); err != nil {
		t.Fatalf("show: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "60 bpm, count-in on, stopped") {
		t.Fatalf("show = %q", got)
	}
	if e.m.Pattern()[0] != beatgrid.Accent || e.m.Pattern()[1] != beatgrid.Silent {
		t.Fatalf("pattern = %v", e.m.Pattern())
	}
}

func TestEvalErrors(t *testing.T) {
	e, _ := newTestEnv(t)
	cases := map[string]string{
		"bpm":          "wrong number of arguments",
		"bpm fast":     "not a number",
		"bpm 300":      "bpm:",
		"toggle 0":     "Step must be 1-16",
		"toggle 17":    "Step must be 1-16",
		"step 2 loud":  "Use silent, normal or accent",
		"countin soon": "Use on or off",
		"preset polka": "preset:",
		"set X..":      "set:",
		"dance":        "unknown command",
		"record stop":  "record:",
	}
	for line, want := range cases {
		err := e.eval(line)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("%q err = %v, want %q", line, err, want)
		}
	}
}

func TestEvalPlayStop(t *testing.T) {
	e, _ := newTestEnv(t)
	if err := e.eval("play"); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !e.m.Active() {
		t.Fatalf("not active after play")
	}
	if err := e.eval("stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if e.m.Active() {
		t.Fatalf("active after stop")
	}
}

func TestEvalRecordNeedsRecorder(t *testing.T) {
	e, _ := newTestEnv(t)
	err := e.eval("record start")
	if err == nil || !strings.HasPrefix(err.Error(), "record:") {
		t.Fatalf("err = %v", err)
	}

	e, out := newTestEnv(t, beatgrid.WithRecorder())
	if err := e.eval("record start 8"); err != nil {
		t.Fatalf("record start: %v", err)
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := e.eval("record stop " + path); err != nil {
		t.Fatalf("record stop: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("no file: %v", err)
	}
	if !strings.Contains(out.String(), "saved") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestQuitAndHelp(t *testing.T) {
	e, out := newTestEnv(t)
	if err := e.eval("help"); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "countin") {
		t.Fatalf("help = %q", out.String())
	}
	if err := e.eval("quit"); !errors.Is(err, errQuit) {
		t.Fatalf("quit err = %v", err)
	}
	if err := e.eval("   "); err != nil {
		t.Fatalf("blank line err = %v", err)
	}
}

func TestRunFileStopsAtQuit(t *testing.T) {
	e, _ := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "setup.txt")
	script := "# warm up\nbpm 72\n\npreset son-clave\nquit\nbpm 200\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := runFile(e, path); !errors.Is(err, errQuit) {
		t.Fatalf("run err = %v", err)
	}
	if e.m.Tempo() != 72 {
		t.Fatalf("tempo = %d, want 72", e.m.Tempo())
	}
}

func TestMergeOverridesConfig(t *testing.T) {
	cfg := cliArgs{BPM: 150, NoCountIn: true, Backend: config.BackendPortAudio}.merge(config.Default())
	if cfg.Tempo != 150 || cfg.CountIn || cfg.Backend != config.BackendPortAudio || cfg.LogLevel != "info" {
		t.Fatalf("merged = %+v", cfg)
	}
}

func TestDescribe(t *testing.T) {
	if got := describe(beatgrid.Display{Phase: beatgrid.CountingIn, Count: 3, Step: -1}); got != "  count 3" {
		t.Fatalf("count-in = %q", got)
	}
	if got := describe(beatgrid.Display{Phase: beatgrid.Playing, Step: 4}); got != "  step  5" {
		t.Fatalf("playing = %q", got)
	}
	if got := describe(beatgrid.Display{Step: -1}); got != "" {
		t.Fatalf("stopped = %q", got)
	}
}

func TestDisplayLoopDrainsQueueWithoutFollow(t *testing.T) {
	var src beatgrid.SampleSource
	m, err := beatgrid.New(
		beatgrid.WithSampleRate(8000),
		beatgrid.WithTempo(240),
		beatgrid.WithCountIn(false),
		beatgrid.WithOutput(func(_ int, s beatgrid.SampleSource) (beatgrid.Device, error) {
			src = s
			return nopDevice{}, nil
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconcile(ctx, m, nil, time.Millisecond)

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 20 seconds of audio at 240 bpm is 320 steps, more than the queue holds.
	block := make([]float32, 2*800)
	for i := 0; i < 200; i++ {
		src.Process(block)
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()

	if n := m.DroppedEvents(); n != 0 {
		t.Fatalf("dropped events = %d, want 0", n)
	}
}

func TestRunReportsInvalidSettings(t *testing.T) {
	args := cliArgs{Config: filepath.Join(t.TempDir(), "none.json"), BPM: 300}
	if err := run(args); err == nil {
		t.Fatalf("run accepted 300 bpm")
	}
	args = cliArgs{Config: filepath.Join(t.TempDir(), "none.json"), Backend: "alsa"}
	if err := run(args); err == nil {
		t.Fatalf("run accepted backend alsa")
	}
}
