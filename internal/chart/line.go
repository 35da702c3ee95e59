package chart

func drawLine(s Surface, l layout, ax axis, p palette, req Request) {
	pts := make([]Point, len(req.Candles))
	for i, c := range req.Candles {
		pts[i] = Point{X: l.x(i), Y: ax.y(l, c.Close)}
	}
	s.StrokePolyline(pts, Stroke{Color: p.line, Width: 3, Round: true})

	for i, pt := range pts {
		s.FillCircle(pt.X, pt.Y, 4, p.line)
		if highlighted(req, req.Candles[i]) {
			s.StrokeCircle(pt.X, pt.Y, 8, Stroke{Color: p.highlight, Width: 3})
		}
	}
}
