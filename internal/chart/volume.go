package chart

import "math"

// drawVolume colours each bar by the close relative to the previous candle's
// close; the first bar counts as up.
func drawVolume(s Surface, l layout, ax axis, p palette, req Request) {
	barW := math.Max(1, l.plotW/float64(l.n)-2)
	for i, c := range req.Candles {
		x := l.x(i)
		barH := float64(c.Volume) / ax.span() * l.plotH
		barY := l.bottom() - barH

		up := i == 0 || c.Close >= req.Candles[i-1].Close
		s.FillRect(x-barW/2, barY, barW, barH, directionColor(p, up))

		if highlighted(req, c) {
			s.StrokeRect(x-barW/2-2, barY-2, barW+4, barH+4, Stroke{Color: p.highlight, Width: 3})
		}
	}
}
