package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/logging"
)

type nopDevice struct{}

func (nopDevice) Resume() error { return nil }
func (nopDevice) Close() error  { return nil }

func newTestModel(t *testing.T) model {
	t.Helper()
	m, err := beatgrid.New(
		beatgrid.WithSampleRate(8000),
		beatgrid.WithOutput(func(int, beatgrid.SampleSource) (beatgrid.Device, error) {
			return nopDevice{}, nil
		}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return newModel(m, logging.Discard())
}

func press(t *testing.T, md model, keys ...tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = md.Update(k)
		md = next.(model)
	}
	return md, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestCursorWrapsAroundGrid(t *testing.T) {
	md := newTestModel(t)
	md, _ = press(t, md, tea.KeyMsg{Type: tea.KeyLeft})
	if md.cursor != 15 {
		t.Fatalf("cursor = %d, want 15", md.cursor)
	}
	md, _ = press(t, md, tea.KeyMsg{Type: tea.KeyDown})
	if md.cursor != 3 {
		t.Fatalf("cursor = %d, want 3", md.cursor)
	}
	md, _ = press(t, md, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyRight})
	if md.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", md.cursor)
	}
}

func TestSpaceTogglesStepUnderCursor(t *testing.T) {
	md := newTestModel(t)
	md, _ = press(t, md, tea.KeyMsg{Type: tea.KeyRight}, tea.KeyMsg{Type: tea.KeySpace})
	if got := md.m.Pattern()[1]; got != beatgrid.Accent {
		t.Fatalf("step 1 = %v, want accent", got)
	}
	if !strings.Contains(md.View(), "[X]") {
		t.Fatalf("view missing accent cell:\n%s", md.View())
	}
}

func TestTempoKeysClamp(t *testing.T) {
	md := newTestModel(t)
	md, _ = press(t, md, runes("+"), runes("]"))
	if md.m.Tempo() != 71 {
		t.Fatalf("tempo = %d, want 71", md.m.Tempo())
	}
	for i := 0; i < 5; i++ {
		md, _ = press(t, md, runes("["))
	}
	if md.m.Tempo() != 40 {
		t.Fatalf("tempo = %d, want 40", md.m.Tempo())
	}
	if md.failed {
		t.Fatalf("clamped tempo reported an error: %s", md.status)
	}
}

func TestPlayArmsFrameLoopOnce(t *testing.T) {
	md := newTestModel(t)
	md, cmd := press(t, md, runes("p"))
	if !md.m.Active() || cmd == nil || !md.ticking {
		t.Fatalf("active=%v cmd=%v ticking=%v", md.m.Active(), cmd != nil, md.ticking)
	}
	if !strings.Contains(md.View(), "counting-in") {
		t.Fatalf("view:\n%s", md.View())
	}

	md, _ = press(t, md, runes("p"))
	md, cmd = press(t, md, runes("p"))
	if cmd != nil {
		t.Fatalf("second frame loop armed while one is pending")
	}

	md, _ = press(t, md, runes("p"))
	next, cmd := md.Update(frameMsg{})
	md = next.(model)
	if cmd != nil || md.ticking {
		t.Fatalf("frame loop kept running after stop")
	}
}

func TestCountInAndPresetKeys(t *testing.T) {
	md := newTestModel(t)
	md, _ = press(t, md, runes("c"), runes("n"))
	if md.m.CountIn() {
		t.Fatalf("count-in still on")
	}
	first := md.m.Presets().Names()[0]
	if md.preset != first || !strings.Contains(md.View(), first) {
		t.Fatalf("preset = %q, want %q", md.preset, first)
	}
	if !strings.Contains(md.View(), "count-in off") {
		t.Fatalf("view:\n%s", md.View())
	}
}

func TestRecordKeyIgnoredWithoutRecorder(t *testing.T) {
	md := newTestModel(t)
	md, _ = press(t, md, runes("r"))
	if md.m.Recording() || md.failed {
		t.Fatalf("recording=%v failed=%v", md.m.Recording(), md.failed)
	}
}

func TestQuit(t *testing.T) {
	md := newTestModel(t)
	_, cmd := press(t, md, runes("q"))
	if cmd == nil {
		t.Fatalf("no command for q")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("q did not quit")
	}
}

func TestSettingsApplyFlags(t *testing.T) {
	cfg, err := tuiArgs{Config: filepath.Join(t.TempDir(), "none.json"), BPM: 120, LogLevel: "debug"}.settings()
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if cfg.Tempo != 120 || cfg.LogLevel != "debug" {
		t.Fatalf("tempo = %d level = %q", cfg.Tempo, cfg.LogLevel)
	}
}

func TestRunReturnsSettingsError(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "tui.log")
	err := run(tuiArgs{Config: filepath.Join(dir, "none.json"), BPM: 500, LogFile: logFile})
	if err == nil {
		t.Fatalf("run accepted 500 bpm")
	}
	if _, statErr := os.Stat(logFile); !os.IsNotExist(statErr) {
		t.Fatalf("log file opened before settings were checked: %v", statErr)
	}
}
