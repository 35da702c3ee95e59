package agg

import (
	"math"
	"reflect"
	"testing"

	"candlescope/internal/model"
)

func tick(ts string, open, high, low, close_, vol float64) model.Tick {
	return model.Tick{Time: ts, Open: open, High: high, Low: low, Close: close_, Volume: vol}
}

func TestAggregate_BasicBucket(t *testing.T) {
	ticks := []model.Tick{
		tick("09:15", 100, 101, 99, 100.5, 10),
		tick("09:16", 100.5, 103, 100, 102, 20),
		tick("09:19:30", 102, 102.5, 98, 99, 5),
		// Next 5-minute bucket
		tick("09:20", 99, 100, 97, 98, 15),
	}

	candles := Aggregate(ticks, 5)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	c := candles[0]
	if c.Time != "09:15" {
		t.Errorf("expected time=09:15, got %s", c.Time)
	}
	if c.Open != 100 {
		t.Errorf("expected open=100, got %v", c.Open)
	}
	if c.High != 103 {
		t.Errorf("expected high=103, got %v", c.High)
	}
	if c.Low != 98 {
		t.Errorf("expected low=98, got %v", c.Low)
	}
	if c.Close != 99 {
		t.Errorf("expected close=99, got %v", c.Close)
	}
	if c.Volume != 35 {
		t.Errorf("expected volume=35, got %d", c.Volume)
	}
	if c.Ticks != 3 {
		t.Errorf("expected ticks=3, got %d", c.Ticks)
	}

	if candles[1].Time != "09:20" || candles[1].Volume != 15 {
		t.Errorf("unexpected second candle: %+v", candles[1])
	}
}

func TestAggregate_BucketLabels(t *testing.T) {
	ticks := []model.Tick{
		tick("09:15", 1, 1, 1, 1, 1),
		tick("09:44", 1, 1, 1, 1, 1),
		tick("10:01", 1, 1, 1, 1, 1),
		tick("15:29", 1, 1, 1, 1, 1),
	}

	tests := []struct {
		interval int
		want     []string
	}{
		{1, []string{"09:15", "09:44", "10:01", "15:29"}},
		{15, []string{"09:15", "09:30", "10:00", "15:15"}},
		{30, []string{"09:00", "09:30", "10:00", "15:00"}},
		{60, []string{"09:00", "10:00", "15:00"}},
		{7, []string{"09:13", "09:41", "09:55", "15:24"}},
	}

	for _, tt := range tests {
		candles := Aggregate(ticks, tt.interval)
		got := make([]string, len(candles))
		for i, c := range candles {
			got[i] = c.Time
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("interval=%d: got labels %v, want %v", tt.interval, got, tt.want)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	if got := Aggregate(nil, 5); len(got) != 0 {
		t.Errorf("expected no candles for nil input, got %d", len(got))
	}
	if got := Aggregate([]model.Tick{}, 5); len(got) != 0 {
		t.Errorf("expected no candles for empty input, got %d", len(got))
	}
}

func TestAggregate_NonPositiveInterval(t *testing.T) {
	ticks := []model.Tick{tick("09:15", 1, 2, 0.5, 1.5, 1)}
	for _, k := range []int{0, -5} {
		if got := Aggregate(ticks, k); got != nil {
			t.Errorf("interval=%d: expected nil, got %v", k, got)
		}
	}
}

func TestAggregate_SkipsMalformedTicks(t *testing.T) {
	valid := []model.Tick{
		tick("09:15", 100, 102, 99, 101, 10),
		tick("09:16", 101, 104, 100, 103, 20),
	}

	malformed := []model.Tick{
		tick("09:17", 103, 500, 1, math.NaN(), 1000),     // non-numeric close
		tick("", 103, 500, 1, 200, 1000),                 // missing time
		tick("nine:fifteen", 103, 500, 1, 200, 1000),     // unparsable time
		tick("09:18", math.Inf(1), 500, 1, 200, 1000),    // infinite open
		tick("09:18", 103, 500, 1, 200, math.NaN()),      // non-numeric volume
		tick("09:18", 103, 500, 1, 200, -5),              // negative volume
		tick("07:00", math.NaN(), math.NaN(), 1, 200, 1), // would open an earlier bucket
	}

	mixed := []model.Tick{valid[0], malformed[0], malformed[1], valid[1]}
	mixed = append(mixed, malformed[2:]...)

	var skipped []SkipReason
	a := New()
	a.OnSkippedTick = func(_ model.Tick, r SkipReason) { skipped = append(skipped, r) }

	got := a.Aggregate(mixed, 5)
	want := Aggregate(valid, 5)

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("malformed ticks changed output:\n got  %+v\n want %+v", got, want)
	}
	if len(skipped) != len(malformed) {
		t.Fatalf("expected %d skipped ticks, got %d (%v)", len(malformed), len(skipped), skipped)
	}
	wantReasons := []SkipReason{
		SkipNonFinite, SkipMissingTime, SkipBadTime, SkipNonFinite,
		SkipNonFinite, SkipNegativeVol, SkipNonFinite,
	}
	if !reflect.DeepEqual(skipped, wantReasons) {
		t.Errorf("skip reasons = %v, want %v", skipped, wantReasons)
	}
}

func TestAggregate_Invariants(t *testing.T) {
	// Deterministic pseudo-random walk over a full session.
	var ticks []model.Tick
	price := 1500.0
	var totalVol int64
	for m := 9*60 + 15; m < 15*60+30; m++ {
		step := math.Sin(float64(m)) * 3
		open := price
		closeP := price + step
		high := math.Max(open, closeP) + math.Abs(math.Cos(float64(m)))
		low := math.Min(open, closeP) - math.Abs(math.Sin(float64(m*7)))
		vol := float64(1000 + m%37*11)
		ticks = append(ticks, tick(model.FormatTimeOfDay(m), open, high, low, closeP, vol))
		totalVol += int64(vol)
		price = closeP
	}

	for _, k := range []int{1, 5, 10, 15, 30, 60, 7} {
		candles := Aggregate(ticks, k)
		var sum int64
		for _, c := range candles {
			if c.Low > math.Min(c.Open, c.Close) || math.Max(c.Open, c.Close) > c.High {
				t.Fatalf("interval=%d: OHLC invariant broken for %+v", k, c)
			}
			sum += c.Volume
		}
		if sum != totalVol {
			t.Errorf("interval=%d: volume sum %d != tick volume %d", k, sum, totalVol)
		}
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	ticks := []model.Tick{
		tick("09:15", 10, 11, 9, 10.5, 1),
		tick("09:17", 10.5, 12, 10, 11, 2),
		tick("09:21", 11, 11.5, 10.2, 10.4, 3),
	}
	first := Aggregate(ticks, 5)
	second := Aggregate(ticks, 5)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation is not deterministic: %v vs %v", first, second)
	}
}

func TestAggregate_FinerIntervalIsPassThrough(t *testing.T) {
	// Already 5-minute candles re-aggregated at 1 minute stay one per tick.
	ticks := []model.Tick{
		tick("09:15", 1500.50, 1520.75, 1495.25, 1510.00, 125000),
		tick("09:20", 1510.00, 1535.50, 1508.00, 1525.25, 145000),
		tick("09:25", 1525.25, 1540.00, 1520.50, 1535.75, 135000),
	}
	candles := Aggregate(ticks, 1)
	if len(candles) != len(ticks) {
		t.Fatalf("expected %d candles, got %d", len(ticks), len(candles))
	}
	for i, c := range candles {
		tk := ticks[i]
		if c.Time != tk.Time || c.Open != tk.Open || c.High != tk.High ||
			c.Low != tk.Low || c.Close != tk.Close || c.Volume != int64(tk.Volume) {
			t.Errorf("candle %d is not a pass-through: %+v vs %+v", i, c, tk)
		}
	}

	// Re-aggregating at the same, aligned interval is a no-op.
	again := Aggregate(ticks, 5)
	for i := range again {
		again[i].Ticks = 1
	}
	if !reflect.DeepEqual(again, candles) {
		t.Errorf("aligned re-aggregation changed candles: %v", again)
	}
}

func TestAggregate_OnCandleHook(t *testing.T) {
	var emitted int
	a := New()
	a.OnCandle = func(model.Candle) { emitted++ }

	ticks := []model.Tick{
		tick("09:15", 1, 1, 1, 1, 1),
		tick("09:20", 1, 1, 1, 1, 1),
		tick("09:25", 1, 1, 1, 1, 1),
	}
	candles := a.Aggregate(ticks, 5)
	if emitted != len(candles) || emitted != 3 {
		t.Errorf("expected 3 emitted candles, got hook=%d out=%d", emitted, len(candles))
	}
}
