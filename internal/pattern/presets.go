package pattern

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"

	"github.com/cbegin/beatgrid-go/internal/apperr"
)

// Preset is a named whole-pattern replacement.
type Preset struct {
	Name    string
	Pattern Pattern
}

type presetFile struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

var builtinPresets = []struct {
	name, steps string
}{
	{"swing", ".X.x|.X.x|.X.x|.X.x"},
	{"bossa-nova", "X.x.|x.xX|.x.x|.x.."},
	{"samba", "Xx.x|Xx.x|Xx.x|Xx.x"},
	{"funk", "X.x.|x.X.|X.x.|x.X."},
	{"reggae", "..X.|..X.|..X.|..X."},
	{"son-clave", "X..x|.x..|X.x.|X..."},
	{"shuffle", "X.xX|.xX.|xX.x|X.xX"},
	{"boom-bap", "X..x|X..x|X..x|X..x"},
	{"quarters", "X...|x...|x...|x..."},
	{"silent", "....|....|....|...."},
}

// Presets is an ordered, concurrency-safe registry of named patterns.
type Presets struct {
	mu     sync.RWMutex
	byName map[string]Pattern
	order  []string
}

// DefaultPresets returns a registry holding the built-in patterns.
func DefaultPresets() *Presets {
	ps := &Presets{byName: make(map[string]Pattern)}
	for _, b := range builtinPresets {
		p, err := Parse(b.steps)
		if err != nil {
			panic(fmt.Sprintf("builtin preset %s: %v", b.name, err))
		}
		ps.Add(Preset{Name: b.name, Pattern: p})
	}
	return ps
}

// Add registers p, replacing an existing preset of the same name.
func (ps *Presets) Add(p Preset) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	key := strings.ToLower(p.Name)
	if _, exists := ps.byName[key]; !exists {
		ps.order = append(ps.order, key)
	}
	ps.byName[key] = p.Pattern
}

// Lookup finds a preset by case-insensitive name.
func (ps *Presets) Lookup(name string) (Pattern, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Pattern{}, apperr.New(apperr.NotFound,
			fmt.Sprintf("unknown preset %q", name),
			fmt.Sprintf("No preset named %q", name))
	}
	return p, nil
}

// Names lists presets in registration order.
func (ps *Presets) Names() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return append([]string(nil), ps.order...)
}

// After returns the preset name following name, wrapping around.
// An unknown name yields the first preset.
func (ps *Presets) After(name string) string {
	names := ps.Names()
	if len(names) == 0 {
		return ""
	}
	key := strings.ToLower(name)
	for i, n := range names {
		if n == key {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

// Load decodes a JSON array of {"name", "pattern"} objects into ps.
func (ps *Presets) Load(r io.Reader) (int, error) {
	var entries []presetFile
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return 0, apperr.Wrap(err, apperr.InvalidInput, "decode presets", "Preset file is not valid JSON")
	}
	parsed := make([]Preset, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return 0, apperr.New(apperr.InvalidInput, "preset without a name", "Every preset needs a name")
		}
		p, err := Parse(e.Pattern)
		if err != nil {
			return 0, apperr.Wrap(err, apperr.InvalidInput,
				fmt.Sprintf("preset %s", e.Name),
				fmt.Sprintf("Preset %q has an invalid pattern", e.Name))
		}
		parsed = append(parsed, Preset{Name: e.Name, Pattern: p})
	}
	for _, p := range parsed {
		ps.Add(p)
	}
	return len(parsed), nil
}

// LoadFile reads a preset file; a leading ~ in path is expanded.
func (ps *Presets) LoadFile(path string) (int, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.InvalidInput, "expand preset path", "Preset path is invalid")
	}
	f, err := os.Open(full)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.NotFound, "open presets", fmt.Sprintf("Cannot open %s", full))
	}
	defer f.Close()
	return ps.Load(f)
}
