package pattern

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/cbegin/beatgrid-go/internal/apperr"
)

// Steps is the number of sixteenth-note slots in a pattern.
const Steps = 16

const (
	MinTempo     = 40
	MaxTempo     = 240
	DefaultTempo = 60
)

// Loudness is the sound class of a step.
type Loudness uint8

const (
	Silent Loudness = iota
	Normal
	Accent
)

// Next cycles Silent -> Normal -> Accent -> Silent.
func (l Loudness) Next() Loudness {
	switch l {
	case Silent:
		return Normal
	case Normal:
		return Accent
	default:
		return Silent
	}
}

func (l Loudness) String() string {
	switch l {
	case Silent:
		return "silent"
	case Normal:
		return "normal"
	case Accent:
		return "accent"
	default:
		return fmt.Sprintf("loudness(%d)", uint8(l))
	}
}

// Pattern is a full 16-step pattern. It is a value type: assigning it copies.
type Pattern [Steps]Loudness

// Fill returns a pattern with every step set to l.
func Fill(l Loudness) Pattern {
	var p Pattern
	for i := range p {
		p[i] = l
	}
	return p
}

// String renders the pattern in its text form: '.' silent, 'x' normal, 'X' accent,
// with a '|' between beats.
func (p Pattern) String() string {
	var b strings.Builder
	for i, l := range p {
		if i > 0 && i%4 == 0 {
			b.WriteByte('|')
		}
		switch l {
		case Normal:
			b.WriteByte('x')
		case Accent:
			b.WriteByte('X')
		default:
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Parse reads the text form produced by String. Spaces and '|' are ignored.
func Parse(s string) (Pattern, error) {
	var p Pattern
	n := 0
	for i, r := range s {
		var l Loudness
		switch r {
		case ' ', '\t', '|':
			continue
		case '.', '-', '0':
			l = Silent
		case 'x', 'n', '1':
			l = Normal
		case 'X', 'A', 'a', '2':
			l = Accent
		default:
			return p, apperr.New(apperr.InvalidInput,
				fmt.Sprintf("pattern: unexpected character %q at %d", r, i),
				"Pattern may only contain '.', 'x' and 'X'")
		}
		if n == Steps {
			return p, apperr.New(apperr.InvalidInput,
				fmt.Sprintf("pattern: more than %d steps in %q", Steps, s),
				"Pattern must have exactly 16 steps")
		}
		p[n] = l
		n++
	}
	if n != Steps {
		return p, apperr.New(apperr.InvalidInput,
			fmt.Sprintf("pattern: got %d steps, want %d", n, Steps),
			"Pattern must have exactly 16 steps")
	}
	return p, nil
}

// ValidTempo reports whether bpm is inside [MinTempo, MaxTempo].
func ValidTempo(bpm int) bool {
	return bpm >= MinTempo && bpm <= MaxTempo
}

// Store holds the active pattern and tempo. Writers replace whole snapshots,
// so readers on the scheduling goroutine always see the latest complete value
// without taking a lock.
type Store struct {
	pattern atomic.Pointer[Pattern]
	tempo   atomic.Int32
}

func NewStore(p Pattern, bpm int) (*Store, error) {
	if !ValidTempo(bpm) {
		return nil, tempoError(bpm)
	}
	s := &Store{}
	s.pattern.Store(&p)
	s.tempo.Store(int32(bpm))
	return s, nil
}

// Pattern returns a copy of the current pattern.
func (s *Store) Pattern() Pattern {
	return *s.pattern.Load()
}

// Step returns the loudness of step i (taken modulo Steps).
func (s *Store) Step(i int) Loudness {
	p := s.pattern.Load()
	return p[((i%Steps)+Steps)%Steps]
}

func (s *Store) Tempo() int {
	return int(s.tempo.Load())
}

func (s *Store) SetTempo(bpm int) error {
	if !ValidTempo(bpm) {
		return tempoError(bpm)
	}
	s.tempo.Store(int32(bpm))
	return nil
}

// Toggle advances step i to its next loudness and returns the new value.
func (s *Store) Toggle(i int) (Loudness, error) {
	if i < 0 || i >= Steps {
		return Silent, apperr.New(apperr.InvalidInput,
			fmt.Sprintf("pattern: step %d out of range", i),
			"Step must be between 1 and 16")
	}
	for {
		old := s.pattern.Load()
		next := *old
		next[i] = next[i].Next()
		if s.pattern.CompareAndSwap(old, &next) {
			return next[i], nil
		}
	}
}

// SetStep sets step i to l.
func (s *Store) SetStep(i int, l Loudness) error {
	if i < 0 || i >= Steps {
		return apperr.New(apperr.InvalidInput,
			fmt.Sprintf("pattern: step %d out of range", i),
			"Step must be between 1 and 16")
	}
	for {
		old := s.pattern.Load()
		next := *old
		next[i] = l
		if s.pattern.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// Replace swaps in a whole pattern at once.
func (s *Store) Replace(p Pattern) {
	s.pattern.Store(&p)
}

func tempoError(bpm int) error {
	return apperr.New(apperr.InvalidInput,
		fmt.Sprintf("tempo %d outside %d..%d", bpm, MinTempo, MaxTempo),
		fmt.Sprintf("Tempo must be between %d and %d BPM", MinTempo, MaxTempo))
}
