package model

import "context"

// ── Storage Port Interfaces ──
// These decouple the analysis pipeline from concrete stores (SQLite, Redis).

// TickSource supplies the ordered raw ticks of one instrument/day.
type TickSource interface {
	// Ticks returns the session's ticks in ascending time-of-day order.
	// Malformed fields are returned as NaN rather than dropped.
	Ticks(ctx context.Context, instrument, date string) ([]Tick, error)
}

// Catalog lists what a TickSource can serve.
type Catalog interface {
	Instruments(ctx context.Context) ([]string, error)
	Dates(ctx context.Context, instrument string) ([]string, error)
}

// AnalysisWriter persists aggregated candles and their pattern matches.
type AnalysisWriter interface {
	SaveAnalysis(ctx context.Context, instrument, date string, interval int, candles []Candle, matches []PatternMatch) error
}
