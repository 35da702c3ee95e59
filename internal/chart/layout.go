package chart

// Padding is the fixed margin kept on every side of the plot area.
const Padding = 60.0

const (
	gridRows     = 5 // six horizontal lines: 0..gridRows
	vGridTarget  = 10
	xLabelTarget = 8
	bodyWidth    = 8.0
)

// layout maps candle indices and axis values onto surface coordinates.
// plotW and plotH may be zero or negative on undersized surfaces; every
// mapping stays finite in that case.
type layout struct {
	width, height float64
	plotW, plotH  float64
	n             int
}

func newLayout(width, height float64, n int) layout {
	return layout{
		width:  width,
		height: height,
		plotW:  width - 2*Padding,
		plotH:  height - 2*Padding,
		n:      n,
	}
}

// x interpolates candle i across the plot width. A single candle sits on the
// left edge.
func (l layout) x(i int) float64 {
	if l.n <= 1 {
		return Padding
	}
	return Padding + float64(i)*l.plotW/float64(l.n-1)
}

// row is the y coordinate of horizontal grid line i.
func (l layout) row(i int) float64 {
	return Padding + float64(i)*l.plotH/gridRows
}

func (l layout) bottom() float64 {
	return l.height - Padding
}

// step returns max(1, n/target), the stride for sparse grid lines and labels.
func (l layout) step(target int) int {
	return max(1, l.n/target)
}

// axis is a linear value range drawn top (hi) to bottom (lo).
type axis struct {
	lo, hi float64
	format func(float64) string
}

func (a axis) span() float64 {
	if s := a.hi - a.lo; s > 0 {
		return s
	}
	return 1
}

// y maps v onto the plot, hi at the top edge.
func (a axis) y(l layout, v float64) float64 {
	return Padding + (a.hi-v)/a.span()*l.plotH
}

// label is the value shown next to horizontal grid line i.
func (a axis) label(i int) string {
	return a.format(a.hi - float64(i)*(a.hi-a.lo)/gridRows)
}
