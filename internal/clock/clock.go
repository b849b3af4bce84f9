// Package clock provides the audio-domain time source that all scheduling is
// measured against.
package clock

import (
	"math"
	"sync/atomic"
)

// Clock reports monotonic time in seconds.
type Clock interface {
	Now() float64
}

// FrameClock counts audio frames handed to the output device. Its time only
// moves while the device is pulling audio, so it is "suspended" until the
// output is resumed.
type FrameClock struct {
	sampleRate float64
	frames     atomic.Int64
}

func NewFrameClock(sampleRate int) *FrameClock {
	return &FrameClock{sampleRate: float64(sampleRate)}
}

func (c *FrameClock) Now() float64 {
	return float64(c.frames.Load()) / c.sampleRate
}

// Frames returns the number of frames rendered so far.
func (c *FrameClock) Frames() int64 { return c.frames.Load() }

// Advance moves the clock forward by n frames. Only the audio thread calls it.
func (c *FrameClock) Advance(n int) {
	c.frames.Add(int64(n))
}

func (c *FrameClock) SampleRate() int { return int(c.sampleRate) }

// FrameAt converts a clock time to the nearest absolute frame.
func (c *FrameClock) FrameAt(t float64) int64 {
	return int64(math.Round(t * c.sampleRate))
}

// Manual is a clock moved by hand. Safe for concurrent use.
type Manual struct {
	bits atomic.Uint64
}

func NewManual(start float64) *Manual {
	m := &Manual{}
	m.Set(start)
	return m
}

func (m *Manual) Now() float64 {
	return math.Float64frombits(m.bits.Load())
}

func (m *Manual) Set(t float64) {
	m.bits.Store(math.Float64bits(t))
}

// Add moves the clock forward by d seconds.
func (m *Manual) Add(d float64) {
	for {
		old := m.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + d)
		if m.bits.CompareAndSwap(old, next) {
			return
		}
	}
}
