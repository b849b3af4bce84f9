package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cbegin/beatgrid-go"
	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/midiout"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

var errQuit = errors.New("quit")

type env struct {
	m          *beatgrid.Metronome
	out        io.Writer
	recordBits int
}

type command struct {
	name  string
	usage string
	run   func(*env, []string) error
	arity int // -n means len(args) must be >= n
}

var commands []command

func init() {
	commands = []command{
		{"play", "start playing", playCommand, 0},
		{"stop", "stop playing", stopCommand, 0},
		{"bpm", "bpm N: set tempo (40-240)", bpmCommand, 1},
		{"toggle", "toggle I: cycle step I (1-16) through . x X", toggleCommand, 1},
		{"step", "step I silent|normal|accent", stepCommand, 2},
		{"countin", "countin on|off: count-in on next play", countInCommand, 1},
		{"preset", "preset NAME: load a preset", presetCommand, 1},
		{"presets", "list presets", presetsCommand, 0},
		{"load", "load FILE: add presets from a JSON file", loadCommand, 1},
		{"set", "set PATTERN: replace the pattern, e.g. X...x...x...x...", setCommand, -1},
		{"show", "show pattern, tempo and state", showCommand, 0},
		{"record", "record start [BITS] | record stop FILE", recordCommand, -1},
		{"ports", "list MIDI outputs", portsCommand, 0},
		{"help", "list commands", helpCommand, 0},
		{"quit", "exit", quitCommand, 0},
	}
}

func (e *env) eval(input string) error {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if cmd.arity < 0 {
			arity := -cmd.arity
			if len(args) < arity {
				return fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v",
					cmd.name, arity, len(args))
			}
		} else if len(args) != cmd.arity {
			return fmt.Errorf("%s: wrong number of arguments: want %v, got %v",
				cmd.name, cmd.arity, len(args))
		}
		if err := cmd.run(e, args); err != nil {
			if errors.Is(err, errQuit) {
				return err
			}
			return fmt.Errorf("%s: %s", cmd.name, apperr.UserMessage(err))
		}
		return nil
	}
	return fmt.Errorf("unknown command: %s (try help)", name)
}

func playCommand(e *env, _ []string) error {
	return e.m.Start()
}

func stopCommand(e *env, _ []string) error {
	e.m.Stop()
	return nil
}

func bpmCommand(e *env, args []string) error {
	bpm, err := strconv.Atoi(args[0])
	if err != nil {
		return apperr.Wrap(err, apperr.InvalidInput, "parse bpm", fmt.Sprintf("%q is not a number", args[0]))
	}
	return e.m.SetTempo(bpm)
}

// stepIndex converts a 1-based step number to an index.
func stepIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > pattern.Steps {
		return 0, apperr.New(apperr.InvalidInput, fmt.Sprintf("bad step %q", s),
			fmt.Sprintf("Step must be 1-%d", pattern.Steps))
	}
	return n - 1, nil
}

func toggleCommand(e *env, args []string) error {
	i, err := stepIndex(args[0])
	if err != nil {
		return err
	}
	l, err := e.m.ToggleStep(i)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "step %d: %v\n", i+1, l)
	return nil
}

func stepCommand(e *env, args []string) error {
	i, err := stepIndex(args[0])
	if err != nil {
		return err
	}
	var l beatgrid.Loudness
	switch word := args[1]; {
	case word == "." || strings.EqualFold(word, "silent"):
		l = beatgrid.Silent
	case word == "x" || strings.EqualFold(word, "normal"):
		l = beatgrid.Normal
	case word == "X" || strings.EqualFold(word, "accent"):
		l = beatgrid.Accent
	default:
		return apperr.New(apperr.InvalidInput, "bad loudness "+args[1], "Use silent, normal or accent")
	}
	return e.m.SetStep(i, l)
}

func countInCommand(e *env, args []string) error {
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		e.m.SetCountIn(true)
	case "off", "false", "0":
		e.m.SetCountIn(false)
	default:
		return apperr.New(apperr.InvalidInput, "bad count-in "+args[0], "Use on or off")
	}
	return nil
}

func presetCommand(e *env, args []string) error {
	return e.m.LoadPreset(args[0])
}

func presetsCommand(e *env, _ []string) error {
	ps := e.m.Presets()
	for _, name := range ps.Names() {
		p, _ := ps.Lookup(name)
		fmt.Fprintf(e.out, "%-12s %s\n", name, p)
	}
	return nil
}

func loadCommand(e *env, args []string) error {
	n, err := e.m.Presets().LoadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "loaded %d presets\n", n)
	return nil
}

func setCommand(e *env, args []string) error {
	p, err := pattern.Parse(strings.Join(args, ""))
	if err != nil {
		return err
	}
	e.m.SetPattern(p)
	return nil
}

func showCommand(e *env, _ []string) error {
	s := e.m.State()
	countIn := "off"
	if e.m.CountIn() {
		countIn = "on"
	}
	fmt.Fprintf(e.out, "%s\n%d bpm, count-in %s, %v\n", e.m.Pattern(), e.m.Tempo(), countIn, s.Phase)
	if failures := e.m.SynthFailures(); failures > 0 {
		fmt.Fprintf(e.out, "%d tones dropped\n", failures)
	}
	if dropped := e.m.DroppedEvents(); dropped > 0 {
		fmt.Fprintf(e.out, "%d display events dropped\n", dropped)
	}
	return nil
}

func recordCommand(e *env, args []string) error {
	switch args[0] {
	case "start":
		bits := e.recordBits
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return apperr.Wrap(err, apperr.InvalidInput, "parse bits", "Bit depth must be a number")
			}
			bits = n
		}
		return e.m.StartRecording(bits)
	case "stop":
		if len(args) != 2 {
			return apperr.New(apperr.InvalidInput, "record stop needs a file", "Usage: record stop FILE")
		}
		take, err := e.m.StopRecording()
		if err != nil {
			return err
		}
		if err := e.m.SaveRecording(args[1]); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "saved %v to %s\n", take.Duration().Round(1e6), args[1])
		return nil
	default:
		return apperr.New(apperr.InvalidInput, "bad record verb "+args[0], "Usage: record start [BITS] | record stop FILE")
	}
}

func portsCommand(e *env, _ []string) error {
	for _, name := range midiout.Ports() {
		fmt.Fprintln(e.out, name)
	}
	return nil
}

func helpCommand(e *env, _ []string) error {
	for _, cmd := range commands {
		fmt.Fprintf(e.out, "  %-8s %s\n", cmd.name, cmd.usage)
	}
	return nil
}

func quitCommand(*env, []string) error { return errQuit }
