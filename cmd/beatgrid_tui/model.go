package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

const frameInterval = time.Second / 60

var (
	silentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	normalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6fa8dc"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f6b26b")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#444"))
	currentStyle = lipgloss.NewStyle().Reverse(true)
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Bold(true).Padding(0, 2)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e06666"))
)

type frameMsg struct{}

func nextFrame() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

type model struct {
	m          *beatgrid.Metronome
	log        logrus.FieldLogger
	recordable bool
	recordDir  string

	display beatgrid.Display
	cursor  int
	preset  string
	status  string
	failed  bool
	ticking bool
}

func newModel(m *beatgrid.Metronome, log logrus.FieldLogger) model {
	return model{
		m:          m,
		log:        log,
		recordable: m.CanRecord(),
		recordDir:  "~",
		display:    m.State(),
		status:     "p play  space edit  +/- tempo  c count-in  n preset  q quit",
	}
}

func (md model) Init() tea.Cmd { return nil }

func (md model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return md.key(msg)
	case frameMsg:
		md.display, _ = md.m.Frame()
		if md.m.Active() {
			return md, nextFrame()
		}
		md.ticking = false
	}
	return md, nil
}

func (md model) key(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return md, tea.Quit
	case "left", "h":
		md.cursor = (md.cursor + pattern.Steps - 1) % pattern.Steps
	case "right", "l":
		md.cursor = (md.cursor + 1) % pattern.Steps
	case "up", "k":
		md.cursor = (md.cursor + pattern.Steps - 4) % pattern.Steps
	case "down", "j":
		md.cursor = (md.cursor + 4) % pattern.Steps
	case " ", "enter":
		if _, err := md.m.ToggleStep(md.cursor); err != nil {
			md.fail(err)
		}
	case "p":
		if err := md.m.Toggle(); err != nil {
			md.fail(err)
			return md, nil
		}
		md.display = md.m.State()
		if md.m.Active() {
			md.ok("Playing")
			return md.startTicking()
		}
		md.ok("Stopped")
	case "+", "=":
		md.nudgeTempo(1)
	case "-", "_":
		md.nudgeTempo(-1)
	case "]":
		md.nudgeTempo(10)
	case "[":
		md.nudgeTempo(-10)
	case "c":
		md.m.SetCountIn(!md.m.CountIn())
	case "n":
		md.nextPreset()
	case "r":
		if md.recordable {
			md.toggleRecording()
		}
	}
	return md, nil
}

// startTicking arms the frame loop unless one is already pending.
func (md model) startTicking() (tea.Model, tea.Cmd) {
	if md.ticking {
		return md, nil
	}
	md.ticking = true
	return md, nextFrame()
}

func (md *model) nudgeTempo(delta int) {
	bpm := min(max(md.m.Tempo()+delta, pattern.MinTempo), pattern.MaxTempo)
	if err := md.m.SetTempo(bpm); err != nil {
		md.fail(err)
	}
}

func (md *model) nextPreset() {
	name := md.m.Presets().After(md.preset)
	if err := md.m.LoadPreset(name); err != nil {
		md.fail(err)
		return
	}
	md.preset = name
	md.ok("Preset " + name)
}

func (md *model) toggleRecording() {
	if !md.m.Recording() {
		if err := md.m.StartRecording(16); err != nil {
			md.fail(err)
			return
		}
		md.ok("Recording, r to save")
		return
	}
	if _, err := md.m.StopRecording(); err != nil {
		md.fail(err)
		return
	}
	path := filepath.Join(md.recordDir, "beatgrid-"+time.Now().Format("20060102-150405")+".wav")
	if err := md.m.SaveRecording(path); err != nil {
		md.fail(err)
		return
	}
	md.ok("Saved " + path)
}

func (md *model) fail(err error) {
	md.log.WithError(err).Warn("action failed")
	md.status = apperr.UserMessage(err)
	md.failed = true
}

func (md *model) ok(msg string) {
	md.status = msg
	md.failed = false
}

func (md model) View() string {
	var b strings.Builder

	countIn := "off"
	if md.m.CountIn() {
		countIn = "on"
	}
	header := fmt.Sprintf("%d bpm  count-in %s  %v", md.m.Tempo(), countIn, md.display.Phase)
	if md.preset != "" {
		header += "  " + md.preset
	}
	if md.m.Recording() {
		header += "  REC"
	}
	b.WriteString(header + "\n\n")

	p := md.m.Pattern()
	hi := md.display.Highlighted()
	for row := 0; row < 4; row++ {
		cells := make([]string, 4)
		for col := 0; col < 4; col++ {
			i := row*4 + col
			cells[col] = cellStyle(p[i], i == hi, i == md.cursor).Render(cellGlyph(p[i]))
		}
		line := strings.Join(cells, " ")
		if row == 1 && md.display.ShowCount() {
			line += countStyle.Render(fmt.Sprintf("count %d", md.display.Count))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if md.failed {
		b.WriteString(errorStyle.Render(md.status))
	} else {
		b.WriteString(statusStyle.Render(md.status))
	}
	b.WriteString("\n")
	return b.String()
}

func cellGlyph(l pattern.Loudness) string {
	switch l {
	case pattern.Accent:
		return "[X]"
	case pattern.Normal:
		return "[x]"
	}
	return "[.]"
}

func cellStyle(l pattern.Loudness, current, cursor bool) lipgloss.Style {
	style := silentStyle
	switch l {
	case pattern.Normal:
		style = normalStyle
	case pattern.Accent:
		style = accentStyle
	}
	if cursor {
		style = style.Inherit(cursorStyle)
	}
	if current {
		style = style.Inherit(currentStyle)
	}
	return style
}
