package main

import (
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const scopeRingLen = 16384

// scope keeps the most recent mono output for the waveform view.
type scope struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
	peak     float64
}

func newScope() *scope {
	return &scope{ring: make([]float32, scopeRingLen)}
}

// Tap runs on the audio thread: copy and return.
func (s *scope) Tap(samples []float32) {
	s.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		s.ring[s.writePos] = (samples[i] + samples[i+1]) * 0.5
		s.writePos = (s.writePos + 1) % scopeRingLen
	}
	s.mu.Unlock()
}

// Snapshot copies the newest n samples.
func (s *scope) Snapshot(n int) []float32 {
	n = min(n, scopeRingLen)
	out := make([]float32, n)
	s.mu.Lock()
	start := (s.writePos - n + scopeRingLen) % scopeRingLen
	for i := range out {
		out[i] = s.ring[(start+i)%scopeRingLen]
	}
	s.mu.Unlock()
	return out
}

// draw renders samples across dst with a slow-release auto gain.
func (s *scope) draw(dst *ebiten.Image, samples []float32) {
	width, height := dst.Bounds().Dx(), dst.Bounds().Dy()
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	ebitenutil.DrawRect(dst, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	peak := 0.0
	for _, v := range samples {
		peak = max(peak, float64(abs32(v)))
	}
	target := max(peak, 0.05)
	if target > s.peak {
		s.peak = s.peak*0.3 + target*0.7
	} else {
		s.peak = s.peak*0.99 + target*0.01
	}
	gain := float64(midY-2) / max(s.peak, 0.05)

	waveColor := color.RGBA{80, 200, 255, 220}
	prevY := midY - int(float64(samples[0])*gain)
	for px := 1; px < width; px++ {
		si := min(px*len(samples)/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(px-1), float64(prevY), float64(px), float64(y), waveColor)
		prevY = y
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
