// Package config loads the user's settings file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/beatgrid-go/internal/apperr"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "~/.config/beatgrid/config.json"

const (
	BackendEbiten    = "ebiten"
	BackendPortAudio = "portaudio"
)

type Config struct {
	Tempo       int    `json:"tempo"`
	CountIn     bool   `json:"countIn"`
	Preset      string `json:"preset,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	SampleRate  int    `json:"sampleRate"`
	Backend     string `json:"backend"`
	MIDIPort    string `json:"midiPort,omitempty"`
	MIDIChannel int    `json:"midiChannel"`
	LogLevel    string `json:"logLevel"`
	PresetsFile string `json:"presetsFile,omitempty"`
	RecordBits  int    `json:"recordBits"`
}

func Default() Config {
	return Config{
		Tempo:       pattern.DefaultTempo,
		CountIn:     true,
		SampleRate:  48000,
		Backend:     BackendEbiten,
		MIDIChannel: 10,
		LogLevel:    "info",
		RecordBits:  16,
	}
}

// Load reads path over the defaults. An empty path means DefaultPath; a
// missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	full, err := homedir.Expand(path)
	if err != nil {
		return Config{}, apperr.Wrap(err, apperr.InvalidInput, "expand config path", "Invalid config path")
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads JSON over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, apperr.Wrap(err, apperr.InvalidInput, "decode config", "Config file is not valid JSON")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, creating parent directories.
func Save(path string, cfg Config) error {
	if path == "" {
		path = DefaultPath
	}
	full, err := homedir.Expand(path)
	if err != nil {
		return apperr.Wrap(err, apperr.InvalidInput, "expand config path", "Invalid config path")
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(full, append(data, '\n'), 0o644)
}

func (c Config) Validate() error {
	var problems []string
	if !pattern.ValidTempo(c.Tempo) {
		problems = append(problems, fmt.Sprintf("tempo %d outside %d..%d", c.Tempo, pattern.MinTempo, pattern.MaxTempo))
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		problems = append(problems, fmt.Sprintf("sample rate %d outside 8000..192000", c.SampleRate))
	}
	switch c.Backend {
	case BackendEbiten, BackendPortAudio:
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.MIDIChannel < 1 || c.MIDIChannel > 16 {
		problems = append(problems, fmt.Sprintf("midi channel %d outside 1..16", c.MIDIChannel))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log level %q", c.LogLevel))
	}
	if c.RecordBits != 8 && c.RecordBits != 16 {
		problems = append(problems, fmt.Sprintf("record bits %d, want 8 or 16", c.RecordBits))
	}
	if c.Pattern != "" {
		if _, err := pattern.Parse(c.Pattern); err != nil {
			problems = append(problems, fmt.Sprintf("pattern %q", c.Pattern))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	msg := "invalid config: " + strings.Join(problems, "; ")
	return apperr.New(apperr.InvalidInput, msg, msg)
}
