package chart

import "image/color"

// Call is one recorded draw operation.
type Call struct {
	Op    string    `json:"op"`
	Args  []float64 `json:"args,omitempty"`
	Color string    `json:"color,omitempty"`
	Width float64   `json:"width,omitempty"`
	Text  string    `json:"text,omitempty"`
	Align Align     `json:"align,omitempty"`
	Bold  bool      `json:"bold,omitempty"`
}

// Recorder is a Surface that records draw calls instead of painting pixels.
type Recorder struct {
	width, height float64
	calls         []Call
}

// NewRecorder creates a Recorder reporting the given size.
func NewRecorder(width, height float64) *Recorder {
	return &Recorder{width: width, height: height}
}

func (r *Recorder) Size() (float64, float64) { return r.width, r.height }

// Calls returns the recorded calls in draw order.
func (r *Recorder) Calls() []Call { return r.calls }

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Texts returns every text run drawn, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, c := range r.calls {
		if c.Op == "text" {
			out = append(out, c.Text)
		}
	}
	return out
}

func (r *Recorder) add(c Call) { r.calls = append(r.calls, c) }

func (r *Recorder) StrokeLine(x1, y1, x2, y2 float64, s Stroke) {
	r.add(Call{Op: "line", Args: []float64{x1, y1, x2, y2}, Color: Hex(s.Color), Width: s.Width})
}

func (r *Recorder) StrokePolyline(pts []Point, s Stroke) {
	args := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		args = append(args, p.X, p.Y)
	}
	r.add(Call{Op: "polyline", Args: args, Color: Hex(s.Color), Width: s.Width})
}

func (r *Recorder) StrokeRect(x, y, w, h float64, s Stroke) {
	r.add(Call{Op: "strokeRect", Args: []float64{x, y, w, h}, Color: Hex(s.Color), Width: s.Width})
}

func (r *Recorder) FillRect(x, y, w, h float64, fill color.Color) {
	r.add(Call{Op: "fillRect", Args: []float64{x, y, w, h}, Color: Hex(fill)})
}

func (r *Recorder) FillCircle(cx, cy, rad float64, fill color.Color) {
	r.add(Call{Op: "fillCircle", Args: []float64{cx, cy, rad}, Color: Hex(fill)})
}

func (r *Recorder) StrokeCircle(cx, cy, rad float64, s Stroke) {
	r.add(Call{Op: "strokeCircle", Args: []float64{cx, cy, rad}, Color: Hex(s.Color), Width: s.Width})
}

func (r *Recorder) Text(text string, x, y float64, style TextStyle) {
	r.add(Call{Op: "text", Args: []float64{x, y}, Color: Hex(style.Color), Text: text, Align: style.Align, Bold: style.Bold})
}
