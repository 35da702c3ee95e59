package chart

import "math"

func drawCandles(s Surface, l layout, ax axis, p palette, req Request) {
	for i, c := range req.Candles {
		x := l.x(i)
		openY := ax.y(l, c.Open)
		closeY := ax.y(l, c.Close)
		col := directionColor(p, c.Bullish())

		s.StrokeLine(x, ax.y(l, c.High), x, ax.y(l, c.Low), Stroke{Color: col, Width: 1})

		bodyY := math.Min(openY, closeY)
		bodyH := math.Max(1, math.Abs(closeY-openY))
		s.FillRect(x-bodyWidth/2, bodyY, bodyWidth, bodyH, col)

		if highlighted(req, c) {
			s.StrokeRect(x-bodyWidth/2-2, bodyY-2, bodyWidth+4, bodyH+4, Stroke{Color: p.highlight, Width: 3})
		}
	}
}
