package synth

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cbegin/beatgrid-go/internal/pattern"
)

const twoPi = 2 * math.Pi

// Params shapes the click tones.
type Params struct {
	NormalFreq float64
	AccentFreq float64
	NormalGain float64
	AccentGain float64
	AttackSec  float64 // silence to peak
	LengthSec  float64 // whole tone; the envelope is back at zero here
	Voices     int
}

func DefaultParams() Params {
	return Params{
		NormalFreq: 1000,
		AccentFreq: 1500,
		NormalGain: 0.5,
		AccentGain: 0.5,
		AttackSec:  0.01,
		LengthSec:  0.1,
		Voices:     8,
	}
}

func (p Params) freq(l pattern.Loudness) float64 {
	if l == pattern.Accent {
		return p.AccentFreq
	}
	return p.NormalFreq
}

func (p Params) gain(l pattern.Loudness) float64 {
	if l == pattern.Accent {
		return p.AccentGain
	}
	return p.NormalGain
}

// renderTone builds one mono tone: a sine block multiplied by a triangular
// envelope (linear ramp up over the attack, linear ramp down to zero).
func renderTone(sampleRate int, freq, gain float64, p Params) []float32 {
	sr := float64(sampleRate)
	n := int(math.Round(p.LengthSec * sr))
	attack := int(math.Round(p.AttackSec * sr))
	if attack < 1 {
		attack = 1
	}
	if attack > n {
		attack = n
	}
	osc := make([]float64, n)
	env := make([]float64, n)
	phaseDelta := twoPi * freq / sr
	for i := range osc {
		osc[i] = gain * math.Sin(phaseDelta*float64(i))
	}
	decay := n - attack
	for i := range env {
		if i < attack {
			env[i] = float64(i) / float64(attack)
			continue
		}
		env[i] = float64(n-i) / float64(decay)
	}
	vecmath.MulBlockInPlace(osc, env)

	out := make([]float32, n)
	for i, v := range osc {
		out[i] = float32(v)
	}
	return out
}
