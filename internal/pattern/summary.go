package pattern

import (
	"fmt"
	"sort"

	"candlescope/internal/model"
)

// Labels renders matches as "<prefix><time> - <pattern>" display strings.
// The prefix is typically empty or a session date followed by a space.
func Labels(matches []model.PatternMatch, prefix string) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = fmt.Sprintf("%s%s - %s", prefix, m.Time, m.Pattern)
	}
	return out
}

// Count is the number of times one pattern was matched.
type Count struct {
	Pattern model.PatternName `json:"pattern"`
	Count   int               `json:"count"`
}

// Tally counts matches per pattern, most frequent first. Ties keep the order
// in which patterns first appeared.
func Tally(matches []model.PatternMatch) []Count {
	idx := make(map[model.PatternName]int)
	counts := []Count{}
	for _, m := range matches {
		i, ok := idx[m.Pattern]
		if !ok {
			i = len(counts)
			idx[m.Pattern] = i
			counts = append(counts, Count{Pattern: m.Pattern})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(a, b int) bool { return counts[a].Count > counts[b].Count })
	return counts
}

// MostCommon describes the most frequent pattern as "<name> (<n> times)", or
// "None" when there are no matches.
func MostCommon(matches []model.PatternMatch) string {
	counts := Tally(matches)
	if len(counts) == 0 {
		return "None"
	}
	return fmt.Sprintf("%s (%d times)", counts[0].Pattern, counts[0].Count)
}

// Summary is the day-level OHLCV digest of an aggregated session.
type Summary struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Summarize digests candles into first open, max high, min low, last close
// and total volume. The zero Summary is returned for no candles.
func Summarize(cs []model.Candle) Summary {
	if len(cs) == 0 {
		return Summary{}
	}
	s := Summary{
		Open:  cs[0].Open,
		High:  cs[0].High,
		Low:   cs[0].Low,
		Close: cs[len(cs)-1].Close,
	}
	for _, c := range cs {
		s.High = max(s.High, c.High)
		s.Low = min(s.Low, c.Low)
		s.Volume += c.Volume
	}
	return s
}
