package chart

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects one of the three chart renderings.
type Mode int

const (
	ModeCandlestick Mode = iota
	ModeLine
	ModeVolume
)

// ErrUnknownMode is returned by ParseMode for unrecognised names.
var ErrUnknownMode = errors.New("chart: unknown mode")

// Modes lists every chart mode.
var Modes = []Mode{ModeCandlestick, ModeLine, ModeVolume}

// ParseMode maps "candlestick", "line" or "volume" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "candlestick", "":
		return ModeCandlestick, nil
	case "line":
		return ModeLine, nil
	case "volume":
		return ModeVolume, nil
	}
	return ModeCandlestick, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModeLine:
		return "line"
	case ModeVolume:
		return "volume"
	default:
		return "candlestick"
	}
}

// Title is the capitalised mode name used in the chart title.
func (m Mode) Title() string {
	switch m {
	case ModeLine:
		return "Line"
	case ModeVolume:
		return "Volume"
	default:
		return "Candlestick"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
