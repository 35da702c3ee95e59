package chart

import (
	"bytes"
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
)

// ImageSurface rasterizes draw calls onto an in-memory RGBA image.
type ImageSurface struct {
	dc *gg.Context
}

// NewImageSurface allocates a width×height surface. Non-positive sizes are
// clamped to one pixel so that degenerate requests still produce an image.
func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{dc: gg.NewContext(max(1, width), max(1, height))}
}

func (s *ImageSurface) Size() (float64, float64) {
	return float64(s.dc.Width()), float64(s.dc.Height())
}

// Image returns the rendered image.
func (s *ImageSurface) Image() image.Image { return s.dc.Image() }

// EncodePNG writes the surface as PNG.
func (s *ImageSurface) EncodePNG(w io.Writer) error { return s.dc.EncodePNG(w) }

// PNG returns the surface encoded as PNG.
func (s *ImageSurface) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ImageSurface) stroke(st Stroke) {
	s.dc.SetColor(st.Color)
	s.dc.SetLineWidth(st.Width)
	if st.Round {
		s.dc.SetLineCap(gg.LineCapRound)
		s.dc.SetLineJoin(gg.LineJoinRound)
	} else {
		s.dc.SetLineCap(gg.LineCapButt)
		s.dc.SetLineJoin(gg.LineJoinBevel)
	}
	s.dc.Stroke()
}

func (s *ImageSurface) StrokeLine(x1, y1, x2, y2 float64, st Stroke) {
	s.dc.DrawLine(x1, y1, x2, y2)
	s.stroke(st)
}

func (s *ImageSurface) StrokePolyline(pts []Point, st Stroke) {
	if len(pts) == 0 {
		return
	}
	s.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
	s.stroke(st)
}

func (s *ImageSurface) StrokeRect(x, y, w, h float64, st Stroke) {
	s.dc.DrawRectangle(x, y, w, h)
	s.stroke(st)
}

func (s *ImageSurface) FillRect(x, y, w, h float64, fill color.Color) {
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *ImageSurface) FillCircle(cx, cy, r float64, fill color.Color) {
	s.dc.DrawCircle(cx, cy, r)
	s.dc.SetColor(fill)
	s.dc.Fill()
}

func (s *ImageSurface) StrokeCircle(cx, cy, r float64, st Stroke) {
	s.dc.DrawCircle(cx, cy, r)
	s.stroke(st)
}

func (s *ImageSurface) Text(text string, x, y float64, style TextStyle) {
	s.dc.SetFontFace(faceFor(style))
	s.dc.SetColor(style.Color)
	var ax float64
	switch style.Align {
	case AlignCenter:
		ax = 0.5
	case AlignRight:
		ax = 1
	}
	s.dc.DrawStringAnchored(text, x, y, ax, 0)
}

// faceFor picks a bitmap face: bold titles use Inconsolata 8x16, everything
// else the 7x13 basic face.
func faceFor(style TextStyle) font.Face {
	if style.Bold || style.Size >= 16 {
		if style.Bold {
			return inconsolata.Bold8x16
		}
		return inconsolata.Regular8x16
	}
	return basicfont.Face7x13
}
