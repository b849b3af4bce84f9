package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/config"
	"github.com/cbegin/beatgrid-go/internal/gridview"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

const (
	windowW = 720
	windowH = 860
)

type uiArgs struct {
	Config   string `arg:"-c,--config" help:"settings file (default ~/.config/beatgrid/config.json)"`
	BPM      int    `arg:"--bpm" help:"tempo in beats per minute, 40-240"`
	Preset   string `arg:"--preset" help:"start with a named preset"`
	LogLevel string `arg:"--log-level" help:"trace, debug, info, warn or error"`
}

type game struct {
	m          *beatgrid.Metronome
	log        logrus.FieldLogger
	scope      *scope
	scopeImg   *ebiten.Image
	recordable bool
	recordDir  string

	display beatgrid.Display
	preset  string

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	g.display, _ = g.m.Frame()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layout()

	g.drawButton(screen, l.Play, gridview.PlayLabel(g.display), g.m.Active())
	g.drawButton(screen, l.TempoDown, "-", false)
	g.drawSunkenPanel(screen, l.Tempo)
	g.drawCentered(screen, fmt.Sprintf("%d BPM", g.m.Tempo()), l.Tempo, textScale)
	g.drawButton(screen, l.TempoUp, "+", false)
	countIn := "[ ] Count-in"
	if g.m.CountIn() {
		countIn = "[x] Count-in"
	}
	g.drawButton(screen, l.CountIn, countIn, false)
	g.drawButton(screen, l.Preset, g.presetLabel(), false)
	if g.recordable {
		label := "Record"
		if g.m.Recording() {
			label = "Save"
		}
		g.drawButton(screen, l.Record, label, g.m.Recording())
	}

	g.drawGrid(screen, l)
	g.drawScope(screen, l.Scope)

	g.drawSunkenPanel(screen, l.Status)
	if g.statusErr {
		fillRect(screen, l.Status.Inset(3), errorColor)
	}
	g.drawText(screen, g.status, l.Status.Min.X+10, l.Status.Min.Y+6, textScale)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, gridview.MinWidth)
	g.viewH = max(outsideH, gridview.MinHeight)
	return g.viewW, g.viewH
}

func (g *game) layout() gridview.Layout {
	return gridview.Compute(g.viewW, g.viewH, g.recordable)
}

func (g *game) drawGrid(screen *ebiten.Image, l gridview.Layout) {
	p := g.m.Pattern()
	hi := g.display.Highlighted()
	for i, r := range l.Cells {
		fillRect(screen, r, gridview.CellColor(p[i], i == hi))
		if i == hi {
			drawSunkenBorder(screen, r)
		} else {
			drawBorder(screen, r)
		}
	}
	if g.display.ShowCount() {
		fillRect(screen, l.Grid, overlayColor)
		g.drawCentered(screen, fmt.Sprint(g.display.Count), l.Grid, 12)
	}
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	g.drawSunkenPanel(screen, rect)
	inner := rect.Inset(3)
	if inner.Empty() {
		return
	}
	if g.scopeImg == nil || g.scopeImg.Bounds().Size() != inner.Size() {
		g.scopeImg = ebiten.NewImage(inner.Dx(), inner.Dy())
	}
	g.scopeImg.Clear()
	g.scope.draw(g.scopeImg, g.scope.Snapshot(4096))
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

func (g *game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.togglePlay()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.nudgeTempo(+1)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.nudgeTempo(-1)
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.m.SetCountIn(!g.m.CountIn())
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		g.nextPreset()
	}
}

func (g *game) handleMouse() {
	if !inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		return
	}
	mx, my := ebiten.CursorPosition()
	l := g.layout()
	if i := l.StepAt(mx, my); i >= 0 {
		if _, err := g.m.ToggleStep(i); err != nil {
			g.setError(err)
		}
		return
	}
	switch l.ButtonAt(mx, my) {
	case gridview.PlayButton:
		g.togglePlay()
	case gridview.TempoDownButton:
		g.nudgeTempo(-1)
	case gridview.TempoUpButton:
		g.nudgeTempo(+1)
	case gridview.CountInButton:
		g.m.SetCountIn(!g.m.CountIn())
	case gridview.PresetButton:
		g.nextPreset()
	case gridview.RecordButton:
		g.toggleRecording()
	}
}

func (g *game) togglePlay() {
	if err := g.m.Toggle(); err != nil {
		g.setError(err)
		return
	}
	if g.m.Active() {
		g.setStatus("Playing")
	} else {
		g.setStatus("Stopped")
	}
}

func (g *game) nudgeTempo(delta int) {
	bpm := g.m.Tempo() + delta
	if !pattern.ValidTempo(bpm) {
		return
	}
	if err := g.m.SetTempo(bpm); err != nil {
		g.setError(err)
	}
}

func (g *game) nextPreset() {
	name := g.m.Presets().After(g.preset)
	if name == "" {
		return
	}
	if err := g.m.LoadPreset(name); err != nil {
		g.setError(err)
		return
	}
	g.preset = name
	g.setStatus("Preset " + name)
}

func (g *game) presetLabel() string {
	if g.preset == "" {
		return "Preset..."
	}
	return g.preset
}

func (g *game) toggleRecording() {
	if !g.m.Recording() {
		if err := g.m.StartRecording(16); err != nil {
			g.setError(err)
			return
		}
		g.setStatus("Recording")
		return
	}
	if _, err := g.m.StopRecording(); err != nil {
		g.setError(err)
		return
	}
	path := filepath.Join(g.recordDir, "beatgrid-"+time.Now().Format("20060102-150405")+".wav")
	if err := g.m.SaveRecording(path); err != nil {
		g.setError(err)
		return
	}
	g.setStatus("Saved " + path)
}

func (g *game) setError(err error) {
	g.log.WithError(err).Warn("action failed")
	g.status = apperr.UserMessage(err)
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func main() {
	var args uiArgs
	arg.MustParse(&args)
	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, "beatgrid_ui:", err)
		os.Exit(1)
	}
}

func (a uiArgs) settings() (config.Config, error) {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return cfg, err
	}
	if a.BPM != 0 {
		cfg.Tempo = a.BPM
	}
	if a.Preset != "" {
		cfg.Preset = a.Preset
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	return cfg, cfg.Validate()
}

// run returns instead of exiting so the metronome is closed on every path.
func run(args uiArgs) error {
	cfg, err := args.settings()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	g, err := newGame(cfg, log)
	if err != nil {
		return err
	}
	defer g.m.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(gridview.MinWidth, gridview.MinHeight, -1, -1)
	ebiten.SetWindowTitle("beatgrid")
	if err := ebiten.RunGame(g); err != nil {
		log.WithError(err).Error("window closed with error")
		return err
	}
	return nil
}

func newGame(cfg config.Config, log *logrus.Logger) (*game, error) {
	sc := newScope()
	recordable := gridview.Recordable(runtime.GOOS)
	opts := []beatgrid.Option{
		beatgrid.WithSampleRate(cfg.SampleRate),
		beatgrid.WithTempo(cfg.Tempo),
		beatgrid.WithCountIn(cfg.CountIn),
		beatgrid.WithLogger(log),
		beatgrid.WithSampleTap(sc.Tap),
	}
	if recordable {
		opts = append(opts, beatgrid.WithRecorder())
	}
	m, err := beatgrid.New(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.PresetsFile != "" {
		if _, err := m.Presets().LoadFile(cfg.PresetsFile); err != nil {
			m.Close()
			return nil, err
		}
	}
	g := &game{
		m:          m,
		log:        logging.Component(log, "ui"),
		scope:      sc,
		recordable: recordable,
		recordDir:  "~",
		display:    m.State(),
		status:     "Space plays, click a step to change it",
		textCache:  make(map[string]*ebiten.Image, 64),
		viewW:      windowW,
		viewH:      windowH,
	}
	if cfg.Preset != "" {
		if err := m.LoadPreset(cfg.Preset); err != nil {
			m.Close()
			return nil, err
		}
		g.preset = cfg.Preset
	}
	if cfg.Pattern != "" {
		p, err := pattern.Parse(cfg.Pattern)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.SetPattern(p)
	}
	return g, nil
}
