package chart

import (
	"fmt"
	"image/color"
	"strings"
)

// Theme holds the chart palette as hex colour strings ("#RRGGBB").
type Theme struct {
	Background string `yaml:"background" json:"background"`
	Grid       string `yaml:"grid" json:"grid"`
	Text       string `yaml:"text" json:"text"`
	Bullish    string `yaml:"bullish" json:"bullish"`
	Bearish    string `yaml:"bearish" json:"bearish"`
	Highlight  string `yaml:"highlight" json:"highlight"`
	Line       string `yaml:"line" json:"line"`
	Currency   string `yaml:"currency" json:"currency"`
}

// DefaultTheme is the stock palette: green/red candles, blue price line and an
// orange highlight.
func DefaultTheme() Theme {
	return Theme{
		Background: "#FFFFFF",
		Grid:       "#E0E0E0",
		Text:       "#333333",
		Bullish:    "#4CAF50",
		Bearish:    "#F44336",
		Highlight:  "#FF9800",
		Line:       "#2196F3",
		Currency:   "₹",
	}
}

// Validate checks every palette entry parses.
func (t Theme) Validate() error {
	for name, v := range map[string]string{
		"background": t.Background,
		"grid":       t.Grid,
		"text":       t.Text,
		"bullish":    t.Bullish,
		"bearish":    t.Bearish,
		"highlight":  t.Highlight,
		"line":       t.Line,
	} {
		if _, err := ParseHex(v); err != nil {
			return fmt.Errorf("theme.%s: %w", name, err)
		}
	}
	return nil
}

type palette struct {
	background, grid, text, bullish, bearish, highlight, line color.RGBA
}

// palette resolves the theme, falling back to the default colour for any
// entry that does not parse.
func (t Theme) palette() palette {
	def := DefaultTheme()
	pick := func(v, fallback string) color.RGBA {
		if c, err := ParseHex(v); err == nil {
			return c
		}
		c, _ := ParseHex(fallback)
		return c
	}
	return palette{
		background: pick(t.Background, def.Background),
		grid:       pick(t.Grid, def.Grid),
		text:       pick(t.Text, def.Text),
		bullish:    pick(t.Bullish, def.Bullish),
		bearish:    pick(t.Bearish, def.Bearish),
		highlight:  pick(t.Highlight, def.Highlight),
		line:       pick(t.Line, def.Line),
	}
}

// ParseHex parses "#RGB" or "#RRGGBB" into an opaque colour.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("bad hex colour %q", s)
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("bad hex colour %q", s)
		}
		r, g, b = r*17, g*17, b*17
	default:
		return color.RGBA{}, fmt.Errorf("bad hex colour %q", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Hex formats an opaque colour as "#RRGGBB".
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}
