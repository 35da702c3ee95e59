package model

// Candle is one OHLCV aggregation bucket of an intraday session.
// Candles are values: consumers never mutate them in place.
type Candle struct {
	Time   string  `json:"time"` // bucket start, "HH:MM"
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Ticks  int     `json:"ticks"` // number of ticks merged into the bucket
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.Close >= c.Open
}

// Body is the absolute open/close distance.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range is the high/low distance.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// LowerShadow is the distance from the bottom of the body to the low.
func (c Candle) LowerShadow() float64 {
	return min(c.Open, c.Close) - c.Low
}

// UpperShadow is the distance from the high to the top of the body.
func (c Candle) UpperShadow() float64 {
	return c.High - max(c.Open, c.Close)
}
