// Package pattern classifies candle shapes. Every detector is a pure function
// of the candles it is given: no state survives between calls and no detector
// looks at candles after the index it evaluates.
package pattern

import "candlescope/internal/model"

// IsHammer reports a small body near the top of a long lower shadow.
func IsHammer(c model.Candle) bool {
	body := c.Body()
	return body < c.Range()*0.3 &&
		c.LowerShadow() > body*2 &&
		c.UpperShadow() < body
}

// IsDragonflyDoji reports an almost-flat body at the top of the range.
func IsDragonflyDoji(c model.Candle) bool {
	rng := c.Range()
	return c.Body() < rng*0.1 &&
		c.LowerShadow() > rng*0.6 &&
		c.UpperShadow() < rng*0.1
}

// IsRisingWindow reports a gap up: the candle at i trades entirely above the
// previous candle's high. Index 0 never matches.
func IsRisingWindow(cs []model.Candle, i int) bool {
	if i < 1 || i >= len(cs) {
		return false
	}
	return cs[i].Low > cs[i-1].High
}

// IsThreeWhiteSoldiers reports three rising bullish candles ending at i, each
// opening inside the previous body. Indices below 2 never match.
func IsThreeWhiteSoldiers(cs []model.Candle, i int) bool {
	if i < 2 || i >= len(cs) {
		return false
	}
	first, second, third := cs[i-2], cs[i-1], cs[i]

	allBullish := first.Close > first.Open &&
		second.Close > second.Open &&
		third.Close > third.Open

	opensInBody := second.Open > first.Open && second.Open < first.Close &&
		third.Open > second.Open && third.Open < second.Close

	closesHigher := second.Close > first.Close &&
		third.Close > second.Close

	return allBullish && opensInBody && closesHigher
}

// detector pairs a pattern with its test; the slice order is the order
// patterns are reported for a single candle.
type detector struct {
	name  model.PatternName
	match func(cs []model.Candle, i int) bool
}

var detectors = []detector{
	{model.Hammer, func(cs []model.Candle, i int) bool { return IsHammer(cs[i]) }},
	{model.DragonflyDoji, func(cs []model.Candle, i int) bool { return IsDragonflyDoji(cs[i]) }},
	{model.RisingWindow, IsRisingWindow},
	{model.ThreeWhiteSoldiers, IsThreeWhiteSoldiers},
}

// Names lists the detectable patterns in evaluation order.
func Names() []model.PatternName {
	names := make([]model.PatternName, len(detectors))
	for i, d := range detectors {
		names[i] = d.name
	}
	return names
}

// At returns the patterns matching at index i, in evaluation order.
func At(cs []model.Candle, i int) []model.PatternName {
	var out []model.PatternName
	for _, d := range detectors {
		if d.match(cs, i) {
			out = append(out, d.name)
		}
	}
	return out
}

// Detect returns, for each candle index, the patterns matching there.
// Entries with no match are nil.
func Detect(cs []model.Candle) [][]model.PatternName {
	out := make([][]model.PatternName, len(cs))
	for i := range cs {
		out[i] = At(cs, i)
	}
	return out
}

// Matches flattens Detect into annotated matches ordered by index, then by
// evaluation order within an index.
func Matches(cs []model.Candle) []model.PatternMatch {
	var out []model.PatternMatch
	for i := range cs {
		for _, name := range At(cs, i) {
			out = append(out, model.PatternMatch{
				Index:   i,
				Time:    cs[i].Time,
				Pattern: name,
				Signal:  model.SignalOf(name),
			})
		}
	}
	return out
}

// MatchesInWindow runs detection over the trailing window candles only, as the
// chart view does. Indices in the result refer to the full slice. A window of
// zero, or of at least len(cs), covers every candle.
func MatchesInWindow(cs []model.Candle, window int) []model.PatternMatch {
	offset := 0
	if window > 0 && window < len(cs) {
		offset = len(cs) - window
	}
	matches := Matches(cs[offset:])
	for i := range matches {
		matches[i].Index += offset
	}
	return matches
}
