package chart

import (
	"fmt"
	"image/color"

	"candlescope/internal/model"
)

// Request is everything one render call depends on besides the surface.
type Request struct {
	Mode       Mode
	Candles    []model.Candle
	Highlight  *model.Candle // matched by Time label, never by identity
	Instrument string
	Date       string
}

// Renderer paints Requests onto Surfaces using its Theme.
type Renderer struct {
	Theme Theme

	// OnRender is called after every non-empty render (optional).
	OnRender func(mode Mode, candles int)
}

// NewRenderer creates a Renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// Render draws req onto s. An empty candle sequence draws nothing.
func (r *Renderer) Render(s Surface, req Request) {
	if len(req.Candles) == 0 {
		return
	}

	w, h := s.Size()
	l := newLayout(w, h, len(req.Candles))
	p := r.Theme.palette()

	s.FillRect(0, 0, w, h, p.background)
	drawGrid(s, l, p)

	var ax axis
	switch req.Mode {
	case ModeLine:
		ax = r.priceAxis(req.Candles)
		drawLine(s, l, ax, p, req)
	case ModeVolume:
		ax = volumeAxis(req.Candles)
		drawVolume(s, l, ax, p, req)
	default:
		ax = r.priceAxis(req.Candles)
		drawCandles(s, l, ax, p, req)
	}

	drawAxes(s, l, ax, p, req.Candles)
	s.Text(title(req), w/2, 20, TextStyle{Color: p.text, Align: AlignCenter, Size: 16, Bold: true})

	if r.OnRender != nil {
		r.OnRender(req.Mode, len(req.Candles))
	}
}

func title(req Request) string {
	return fmt.Sprintf("%s - %s - %s Chart", req.Instrument, req.Date, req.Mode.Title())
}

func highlighted(req Request, c model.Candle) bool {
	return req.Highlight != nil && req.Highlight.Time == c.Time
}

// priceAxis spans every wick with 0.1% headroom on both ends.
func (r *Renderer) priceAxis(cs []model.Candle) axis {
	lo, hi := cs[0].Low, cs[0].High
	for _, c := range cs[1:] {
		lo = min(lo, c.Low)
		hi = max(hi, c.High)
	}
	currency := r.Theme.Currency
	return axis{
		lo:     lo * 0.999,
		hi:     hi * 1.001,
		format: func(v float64) string { return formatPrice(currency, v) },
	}
}

// volumeAxis runs from zero to 110% of the largest volume.
func volumeAxis(cs []model.Candle) axis {
	var hi int64
	for _, c := range cs {
		hi = max(hi, c.Volume)
	}
	return axis{lo: 0, hi: float64(hi) * 1.1, format: formatVolume}
}

func drawGrid(s Surface, l layout, p palette) {
	grid := Stroke{Color: p.grid, Width: 1}
	for i := 0; i <= gridRows; i++ {
		y := l.row(i)
		s.StrokeLine(Padding, y, l.width-Padding, y, grid)
	}
	for i := 0; i < l.n; i += l.step(vGridTarget) {
		x := l.x(i)
		s.StrokeLine(x, Padding, x, l.bottom(), grid)
	}
}

func drawAxes(s Surface, l layout, ax axis, p palette, cs []model.Candle) {
	yStyle := TextStyle{Color: p.text, Align: AlignRight, Size: 12}
	for i := 0; i <= gridRows; i++ {
		s.Text(ax.label(i), Padding-10, l.row(i)+4, yStyle)
	}

	xStyle := TextStyle{Color: p.text, Align: AlignCenter, Size: 12}
	for i := 0; i < l.n; i += l.step(xLabelTarget) {
		s.Text(cs[i].Time, l.x(i), l.height-20, xStyle)
	}
}

func directionColor(p palette, up bool) color.Color {
	if up {
		return p.bullish
	}
	return p.bearish
}
