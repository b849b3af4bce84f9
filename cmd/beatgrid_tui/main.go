package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/alexflint/go-arg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/config"
	"github.com/cbegin/beatgrid-go/internal/gridview"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

type tuiArgs struct {
	Config   string `arg:"-c,--config" help:"settings file (default ~/.config/beatgrid/config.json)"`
	BPM      int    `arg:"--bpm" help:"tempo in beats per minute, 40-240"`
	Preset   string `arg:"--preset" help:"start with a named preset"`
	LogFile  string `arg:"--log-file" help:"write logs here; the terminal is taken by the grid"`
	LogLevel string `arg:"--log-level" help:"trace, debug, info, warn or error"`
}

func main() {
	var args tuiArgs
	arg.MustParse(&args)
	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, "beatgrid_tui:", err)
		os.Exit(1)
	}
}

func (a tuiArgs) settings() (config.Config, error) {
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

// run returns instead of exiting so the log file and the metronome are
// closed on every path.
func run(args tuiArgs) error {
	cfg, err := args.settings()
	if err != nil {
		return err
	}

	var logOut io.Writer = io.Discard
	if args.LogFile != "" {
		f, err := os.OpenFile(args.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	log, err := logging.New(cfg.LogLevel, logOut)
	if err != nil {
		return err
	}

	m, err := newMetronome(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	md := newModel(m, logging.Component(log, "tui"))
	md.preset = cfg.Preset
	if _, err := tea.NewProgram(md, tea.WithAltScreen()).Run(); err != nil {
		log.WithError(err).Error("terminal program failed")
		return err
	}
	return nil
}

// newMetronome builds the metronome with the configured preset and pattern
// applied. It closes the metronome itself when either is rejected.
func newMetronome(cfg config.Config, log *logrus.Logger) (*beatgrid.Metronome, error) {
	opts := []beatgrid.Option{
		beatgrid.WithSampleRate(cfg.SampleRate),
		beatgrid.WithTempo(cfg.Tempo),
		beatgrid.WithCountIn(cfg.CountIn),
		beatgrid.WithLogger(log),
	}
	if gridview.Recordable(runtime.GOOS) {
		opts = append(opts, beatgrid.WithRecorder())
	}
	m, err := beatgrid.New(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Preset != "" {
		if err := m.LoadPreset(cfg.Preset); err != nil {
			m.Close()
			return nil, err
		}
	}
	if cfg.Pattern != "" {
		p, err := pattern.Parse(cfg.Pattern)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.SetPattern(p)
	}
	return m, nil
}
