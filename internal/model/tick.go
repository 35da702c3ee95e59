package model

import "math"

// Tick is one raw intraday observation as supplied by the upstream source.
// Fields the source could not parse arrive as NaN; they are not filtered
// upstream so that aggregation can skip the whole record.
type Tick struct {
	Time   string  `json:"time"` // "HH:MM" or "HH:MM:SS"
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Finite reports whether every OHLCV field is a finite number.
func (t Tick) Finite() bool {
	return finite(t.Open) && finite(t.High) && finite(t.Low) && finite(t.Close) && finite(t.Volume)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
