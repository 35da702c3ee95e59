// Package agg resamples an ordered intraday tick series into fixed-width
// OHLCV candles.
package agg

import (
	"candlescope/internal/model"
)

// SkipReason explains why a tick did not contribute to any candle.
type SkipReason string

const (
	SkipMissingTime SkipReason = "missing_time"
	SkipBadTime     SkipReason = "bad_time"
	SkipNonFinite   SkipReason = "non_finite"
	SkipNegativeVol SkipReason = "negative_volume"
)

// bucketState holds the candle being built for the current interval.
type bucketState struct {
	start  int // minutes since midnight
	candle model.Candle
}

// Aggregator builds interval candles from ticks in a single pass.
// It carries no state between calls, so one value may be shared freely.
type Aggregator struct {
	// Hooks (optional, set externally)
	OnSkippedTick func(t model.Tick, reason SkipReason)
	OnCandle      func(c model.Candle)
}

// New creates a new Aggregator without hooks.
func New() *Aggregator {
	return &Aggregator{}
}

// Aggregate buckets ticks into intervalMinutes-wide candles using a default
// Aggregator.
func Aggregate(ticks []model.Tick, intervalMinutes int) []model.Candle {
	return New().Aggregate(ticks, intervalMinutes)
}

// Aggregate walks ticks once, assuming they are already in ascending
// time-of-day order. A tick whose bucket differs from the current one closes
// the current candle; malformed ticks are skipped without touching state.
// A non-positive interval yields no candles.
func (a *Aggregator) Aggregate(ticks []model.Tick, intervalMinutes int) []model.Candle {
	if intervalMinutes <= 0 || len(ticks) == 0 {
		return nil
	}

	out := make([]model.Candle, 0, len(ticks)/intervalMinutes+1)
	var cur *bucketState

	for _, t := range ticks {
		minutes, reason, ok := validate(t)
		if !ok {
			if a.OnSkippedTick != nil {
				a.OnSkippedTick(t, reason)
			}
			continue
		}

		start := (minutes / intervalMinutes) * intervalMinutes

		if cur != nil && start != cur.start {
			// New bucket: finalize the old candle first
			out = a.emit(out, cur.candle)
			cur = nil
		}

		if cur == nil {
			cur = &bucketState{
				start: start,
				candle: model.Candle{
					Time:   model.FormatTimeOfDay(start),
					Open:   t.Open,
					High:   t.High,
					Low:    t.Low,
					Close:  t.Close,
					Volume: int64(t.Volume),
					Ticks:  1,
				},
			}
			continue
		}

		// Same bucket: merge HLCV
		c := &cur.candle
		if t.High > c.High {
			c.High = t.High
		}
		if t.Low < c.Low {
			c.Low = t.Low
		}
		c.Close = t.Close
		c.Volume += int64(t.Volume)
		c.Ticks++
	}

	if cur != nil {
		out = a.emit(out, cur.candle)
	}
	return out
}

func (a *Aggregator) emit(out []model.Candle, c model.Candle) []model.Candle {
	if a.OnCandle != nil {
		a.OnCandle(c)
	}
	return append(out, c)
}

// validate returns the tick's minutes since midnight, or the reason it must
// be skipped.
func validate(t model.Tick) (int, SkipReason, bool) {
	if t.Time == "" {
		return 0, SkipMissingTime, false
	}
	if !t.Finite() {
		return 0, SkipNonFinite, false
	}
	if t.Volume < 0 {
		return 0, SkipNegativeVol, false
	}
	minutes, err := model.ParseTimeOfDay(t.Time)
	if err != nil {
		return 0, SkipBadTime, false
	}
	return minutes, "", true
}
