package synth

import "math"

// Limiter keeps the mixed output under full scale when tones overlap. It
// follows the peak envelope of each channel and compresses anything above
// the threshold by ratio; whatever still exceeds 1 is clipped.
type Limiter struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	envL      float32
	envR      float32
}

// NewLimiter builds a limiter. thresholdDB is relative to full scale.
func NewLimiter(sampleRate int, thresholdDB, ratio, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

// DefaultLimiter starts 1 dB below full scale. A single tone never reaches it.
func DefaultLimiter(sampleRate int) *Limiter {
	return NewLimiter(sampleRate, -1, 20, 0.1, 50)
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	c.envL = follow(c.envL, l, c.attack, c.release)
	c.envR = follow(c.envR, r, c.attack, c.release)
	return clip(l * c.gain(c.envL)), clip(r * c.gain(c.envR))
}

// ProcessBlock limits interleaved stereo samples in place.
func (c *Limiter) ProcessBlock(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.Process(buf[i], buf[i+1])
	}
}

func (c *Limiter) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1/c.ratio-1)))
}

func follow(env, x, attack, release float32) float32 {
	if x < 0 {
		x = -x
	}
	if x > env {
		return env + attack*(x-env)
	}
	return env + release*(x-env)
}

func clip(x float32) float32 {
	return max(-1, min(1, x))
}
