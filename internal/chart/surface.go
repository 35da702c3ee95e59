// Package chart draws candle sequences as candlestick, line or volume charts
// onto a Surface. Rendering is a pure function of the request and the surface
// size: identical inputs always produce identical draw calls.
package chart

import "image/color"

// Align is the horizontal anchoring of a text run.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Point is a surface coordinate.
type Point struct {
	X, Y float64
}

// Stroke describes how a line or outline is drawn.
type Stroke struct {
	Color color.Color
	Width float64
	Round bool // round caps and joins
}

// TextStyle describes a text run. Y is the text baseline.
type TextStyle struct {
	Color color.Color
	Align Align
	Size  float64
	Bold  bool
}

// Surface is the drawing port the renderer paints on. Implementations must
// tolerate degenerate geometry (zero or negative sizes) without failing.
type Surface interface {
	Size() (width, height float64)
	StrokeLine(x1, y1, x2, y2 float64, s Stroke)
	StrokePolyline(pts []Point, s Stroke)
	StrokeRect(x, y, w, h float64, s Stroke)
	FillRect(x, y, w, h float64, fill color.Color)
	FillCircle(cx, cy, r float64, fill color.Color)
	StrokeCircle(cx, cy, r float64, s Stroke)
	Text(text string, x, y float64, style TextStyle)
}
