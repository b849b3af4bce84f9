// Package gridview lays out the step grid and its controls for pixel
// front-ends and maps pointer positions back to steps and buttons.
package gridview

import (
	"image"
	"image/color"

	"github.com/cbegin/beatgrid-go/internal/pattern"
	"github.com/cbegin/beatgrid-go/internal/playback"
)

const (
	MinWidth  = 600
	MinHeight = 640

	pad     = 20
	rowH    = 44
	rowGap  = 12
	cellGap = 10
	scopeH  = 100
	statusH = 40
)

// Button identifies a clickable control.
type Button int

const (
	NoButton Button = iota
	PlayButton
	TempoDownButton
	TempoUpButton
	CountInButton
	PresetButton
	RecordButton
)

// Layout holds every rectangle of the window for one size.
type Layout struct {
	Play, TempoDown, Tempo, TempoUp image.Rectangle
	CountIn, Preset, Record         image.Rectangle
	Grid                            image.Rectangle
	Cells                           [pattern.Steps]image.Rectangle
	Scope, Status                   image.Rectangle
	recordable                      bool
}

// Compute lays out a w by h window. The record button is left out when
// recordable is false.
func Compute(w, h int, recordable bool) Layout {
	w = max(w, MinWidth)
	h = max(h, MinHeight)

	var l Layout
	l.recordable = recordable

	y := pad
	l.Play = image.Rect(pad, y, pad+130, y+rowH)
	l.TempoDown = image.Rect(l.Play.Max.X+rowGap, y, l.Play.Max.X+rowGap+rowH, y+rowH)
	l.Tempo = image.Rect(l.TempoDown.Max.X+4, y, l.TempoDown.Max.X+4+120, y+rowH)
	l.TempoUp = image.Rect(l.Tempo.Max.X+4, y, l.Tempo.Max.X+4+rowH, y+rowH)

	y += rowH + rowGap
	l.CountIn = image.Rect(pad, y, pad+200, y+rowH)
	l.Preset = image.Rect(l.CountIn.Max.X+rowGap, y, l.CountIn.Max.X+rowGap+200, y+rowH)
	if recordable {
		l.Record = image.Rect(l.Preset.Max.X+rowGap, y, l.Preset.Max.X+rowGap+130, y+rowH)
	}

	l.Status = image.Rect(pad, h-pad-statusH, w-pad, h-pad)
	l.Scope = image.Rect(pad, l.Status.Min.Y-rowGap-scopeH, w-pad, l.Status.Min.Y-rowGap)

	top := y + rowH + rowGap
	bottom := l.Scope.Min.Y - rowGap
	size := min(w-2*pad, bottom-top)
	left := (w - size) / 2
	l.Grid = image.Rect(left, top, left+size, top+size)

	cell := (size - 3*cellGap) / 4
	for i := range l.Cells {
		row, col := i/4, i%4
		x0 := left + col*(cell+cellGap)
		y0 := top + row*(cell+cellGap)
		l.Cells[i] = image.Rect(x0, y0, x0+cell, y0+cell)
	}
	return l
}

// StepAt returns the step under (x, y), or -1.
func (l Layout) StepAt(x, y int) int {
	for i, r := range l.Cells {
		if Contains(r, x, y) {
			return i
		}
	}
	return -1
}

// ButtonAt returns the control under (x, y).
func (l Layout) ButtonAt(x, y int) Button {
	switch {
	case Contains(l.Play, x, y):
		return PlayButton
	case Contains(l.TempoDown, x, y):
		return TempoDownButton
	case Contains(l.TempoUp, x, y):
		return TempoUpButton
	case Contains(l.CountIn, x, y):
		return CountInButton
	case Contains(l.Preset, x, y):
		return PresetButton
	case l.recordable && Contains(l.Record, x, y):
		return RecordButton
	}
	return NoButton
}

func Contains(r image.Rectangle, x, y int) bool {
	return x >= r.Min.X && x < r.Max.X && y >= r.Min.Y && y < r.Max.Y
}

var (
	silentColor    = color.RGBA{48, 52, 64, 255}
	normalColor    = color.RGBA{90, 140, 200, 255}
	accentColor    = color.RGBA{240, 170, 60, 255}
	highlightColor = color.RGBA{255, 255, 255, 255}
)

// CellColor is the fill for a step. The highlighted step is lightened
// halfway to white so its loudness stays readable.
func CellColor(l pattern.Loudness, highlighted bool) color.RGBA {
	c := silentColor
	switch l {
	case pattern.Normal:
		c = normalColor
	case pattern.Accent:
		c = accentColor
	}
	if highlighted {
		c = color.RGBA{
			R: uint8((uint16(c.R) + uint16(highlightColor.R)) / 2),
			G: uint8((uint16(c.G) + uint16(highlightColor.G)) / 2),
			B: uint8((uint16(c.B) + uint16(highlightColor.B)) / 2),
			A: 255,
		}
	}
	return c
}

// PlayLabel is the text of the play button for a display state.
func PlayLabel(d playback.Display) string {
	if d.Phase == playback.Stopped {
		return "Play"
	}
	return "Stop"
}

// Recordable reports whether recording is offered on goos. Touch platforms
// get no record control.
func Recordable(goos string) bool {
	switch goos {
	case "android", "ios", "js":
		return false
	}
	return true
}
