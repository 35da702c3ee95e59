package model

// PatternName identifies a candlestick shape pattern.
type PatternName string

const (
	Hammer             PatternName = "Hammer"
	DragonflyDoji      PatternName = "Dragonfly Doji"
	RisingWindow       PatternName = "Rising Window"
	ThreeWhiteSoldiers PatternName = "Three White Soldiers"

	// EveningStar has a classification entry but no detector emits it.
	EveningStar PatternName = "Evening Star"
)

// SignalClass is the coarse direction attached to a pattern name.
type SignalClass string

const (
	Bullish SignalClass = "BULLISH"
	Bearish SignalClass = "BEARISH"
	Unknown SignalClass = "UNKNOWN"
)

// PatternMatch annotates one candle position with a detected pattern.
type PatternMatch struct {
	Index   int         `json:"index"`
	Time    string      `json:"time"`
	Pattern PatternName `json:"pattern"`
	Signal  SignalClass `json:"signal"`
}

var signals = map[PatternName]SignalClass{
	Hammer:             Bullish,
	DragonflyDoji:      Bullish,
	RisingWindow:       Bullish,
	ThreeWhiteSoldiers: Bullish,
	EveningStar:        Bearish,
}

var descriptions = map[PatternName]string{
	Hammer:             "Bullish reversal pattern with long lower shadow",
	DragonflyDoji:      "Bullish reversal with very small body and long lower shadow",
	RisingWindow:       "Bullish gap indicating strong upward momentum",
	EveningStar:        "Bearish reversal pattern with three candles",
	ThreeWhiteSoldiers: "Strong bullish trend continuation",
}

// SignalOf returns the signal class of a pattern name, Unknown if unlisted.
func SignalOf(name PatternName) SignalClass {
	if s, ok := signals[name]; ok {
		return s
	}
	return Unknown
}

// DescriptionOf returns the human-readable description of a pattern.
func DescriptionOf(name PatternName) string {
	if d, ok := descriptions[name]; ok {
		return d
	}
	return "Pattern detected"
}

// PatternColor is the display colour of a pattern name. Every pattern is
// shown in the same green regardless of its signal class.
func PatternColor(PatternName) string {
	return "#28a745"
}

// SignalColors returns the (text, background) colours of a signal badge.
func SignalColors(s SignalClass) (fg, bg string) {
	switch s {
	case Bullish:
		return "#fff", "#28a745"
	case Bearish:
		return "#fff", "#dc3545"
	default:
		return "#6c757d", "#6c757d"
	}
}
