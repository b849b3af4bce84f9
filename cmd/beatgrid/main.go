package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/audio/portaudio"
	"github.com/cbegin/beatgrid-go/internal/config"
	"github.com/cbegin/beatgrid-go/internal/logging"
	"github.com/cbegin/beatgrid-go/internal/midiout"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

type cliArgs struct {
	Config    string `arg:"-c,--config" help:"settings file (default ~/.config/beatgrid/config.json)"`
	BPM       int    `arg:"--bpm" help:"tempo in beats per minute, 40-240"`
	NoCountIn bool   `arg:"--no-count-in" help:"start the pattern without the four beat count-in"`
	Preset    string `arg:"--preset" help:"start with a named preset"`
	Pattern   string `arg:"--pattern" help:"start with a pattern such as X...x...x...x..."`
	Backend   string `arg:"--backend" help:"audio backend: ebiten or portaudio"`
	MIDIPort  string `arg:"--midi-port" help:"mirror clicks to this MIDI output"`
	LogLevel  string `arg:"--log-level" help:"trace, debug, info, warn or error"`
	Follow    bool   `arg:"-f,--follow" help:"print the count-in and steps as they sound"`
	Play      bool   `arg:"-p,--play" help:"start playing right away"`
	Run       string `arg:"--run" help:"run commands from a file before the prompt"`
}

func (cliArgs) Description() string {
	return "beatgrid is a 16-step metronome with a count-in.\n"
}

// merge applies command-line overrides to cfg.
func (a cliArgs) merge(cfg config.Config) config.Config {
	if a.BPM != 0 {
		cfg.Tempo = a.BPM
	}
	if a.NoCountIn {
		cfg.CountIn = false
	}
	if a.Preset != "" {
		cfg.Preset = a.Preset
	}
	if a.Pattern != "" {
		cfg.Pattern = a.Pattern
	}
	if a.Backend != "" {
		cfg.Backend = a.Backend
	}
	if a.MIDIPort != "" {
		cfg.MIDIPort = a.MIDIPort
	}
	if a.LogLevel != "" {
		cfg.LogLevel = a.LogLevel
	}
	return cfg
}

func outputFor(backend string) beatgrid.OutputFactory {
	if backend == config.BackendPortAudio {
		return func(sampleRate int, src beatgrid.SampleSource) (beatgrid.Device, error) {
			return portaudio.Open(sampleRate, src, portaudio.DefaultFramesPerBuffer)
		}
	}
	return beatgrid.EbitenOutput()
}

// displayRate is how often the REPL reconciles the display against the clock.
const displayRate = time.Second / 60

func main() {
	var args cliArgs
	arg.MustParse(&args)
	if err := run(args); err != nil {
		fmt.Fprintln(os.Stderr, "beatgrid:", err)
		os.Exit(1)
	}
}

// run owns every resource it opens so deferred cleanup happens before main
// exits.
func run(args cliArgs) error {
	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}
	cfg = args.merge(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	m, err := newMetronome(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	e := &env{m: m, out: rl.Stdout(), recordBits: cfg.RecordBits}
	if args.Run != "" {
		if err := runFile(e, args.Run); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
	if args.Play {
		if err := e.eval("play"); err != nil {
			fmt.Fprintln(rl.Stderr(), err)
		}
	}

	// The display loop always runs; it is what drains the event queue.
	// --follow only decides whether the steps are printed.
	var followOut io.Writer
	if args.Follow {
		followOut = rl.Stdout()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reconcile(ctx, m, followOut, displayRate)

	repl(rl, e)
	return nil
}

func newMetronome(cfg config.Config, log *logrus.Logger) (*beatgrid.Metronome, error) {
	presets := pattern.DefaultPresets()
	if cfg.PresetsFile != "" {
		if _, err := presets.LoadFile(cfg.PresetsFile); err != nil {
			return nil, err
		}
	}
	start := pattern.Fill(pattern.Normal)
	if cfg.Preset != "" {
		p, err := presets.Lookup(cfg.Preset)
		if err != nil {
			return nil, err
		}
		start = p
	}
	if cfg.Pattern != "" {
		p, err := pattern.Parse(cfg.Pattern)
		if err != nil {
			return nil, err
		}
		start = p
	}

	opts := []beatgrid.Option{
		beatgrid.WithSampleRate(cfg.SampleRate),
		beatgrid.WithTempo(cfg.Tempo),
		beatgrid.WithCountIn(cfg.CountIn),
		beatgrid.WithPattern(start),
		beatgrid.WithPresets(presets),
		beatgrid.WithOutput(outputFor(cfg.Backend)),
		beatgrid.WithLogger(log),
		beatgrid.WithRecorder(),
		beatgrid.WithErrorHandler(func(err error) {
			log.WithError(err).Debug("synthesis failure")
		}),
	}
	if cfg.MIDIPort != "" {
		send, err := midiout.Open(cfg.MIDIPort)
		if err != nil {
			return nil, err
		}
		opts = append(opts, beatgrid.WithMIDI(send, uint8(cfg.MIDIChannel-1)))
		log.WithField("port", cfg.MIDIPort).Info("mirroring clicks to MIDI")
	}
	return beatgrid.New(opts...)
}

func runFile(e *env, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := e.eval(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func repl(rl *readline.Instance, e *env) {
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}
		if err := e.eval(line); err != nil {
			if errors.Is(err, errQuit) {
				return
			}
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

// reconcile calls Frame every interval until ctx is done and prints each
// display change to out when out is not nil.
func reconcile(ctx context.Context, m *beatgrid.Metronome, out io.Writer, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d, changed := m.Frame()
			if !changed || out == nil {
				continue
			}
			if line := describe(d); line != "" {
				fmt.Fprintln(out, line)
			}
		}
	}
}

func describe(d beatgrid.Display) string {
	switch {
	case d.ShowCount():
		return fmt.Sprintf("  count %d", d.Count)
	case d.Highlighted() >= 0:
		return fmt.Sprintf("  step %2d", d.Highlighted()+1)
	}
	return ""
}
