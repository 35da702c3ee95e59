// Package pipeline composes the interval aggregator, the pattern detector and
// the chart renderer into the request-level operations served over HTTP, the
// websocket gateway and the CLI.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"candlescope/internal/chart"
	"candlescope/internal/logger"
	"candlescope/internal/marketdata/agg"
	"candlescope/internal/metrics"
	"candlescope/internal/model"
	"candlescope/internal/pattern"
)

var (
	// ErrNoData is returned when a session has no ticks, the tick source
	// fails, or every tick is malformed.
	ErrNoData = errors.New("no data available")

	// ErrInvalidQuery wraps every rejected request parameter.
	ErrInvalidQuery = errors.New("invalid query")
)

// DefaultWindow asks Analyze to use the service's configured pattern window.
const DefaultWindow = -1

// maxChartSide bounds requested chart dimensions.
const maxChartSide = 4096

// Cache memoizes candles and rendered charts. Implemented by the Redis store.
type Cache interface {
	GetCandles(ctx context.Context, key string) ([]model.Candle, bool)
	SetCandles(ctx context.Context, key string, candles []model.Candle)
	GetChart(ctx context.Context, key string) ([]byte, bool)
	SetChart(ctx context.Context, key string, png []byte)
}

// KeyFunc builds cache keys; the Redis store's CandlesKey/ChartKey fit.
type KeyFunc struct {
	Candles func(instrument, date string, interval int) string
	Chart   func(instrument, date string, interval int, mode, highlight string, width, height int) string
}

// Config wires a Service. Only Source is required.
type Config struct {
	Source  model.TickSource
	Cache   Cache
	Keys    KeyFunc
	Sink    model.AnalysisWriter
	Metrics *metrics.Metrics

	Window int         // trailing candles scanned for patterns; 0 = all
	Width  int         // default chart width in pixels
	Height int         // default chart height in pixels
	Theme  chart.Theme // zero value uses chart.DefaultTheme
}

// Service runs analyses. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	cfg Config
}

// New creates a Service, filling unset sizes and theme with defaults.
func New(cfg Config) *Service {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 400
	}
	if cfg.Window < 0 {
		cfg.Window = 0
	}
	if cfg.Theme == (chart.Theme{}) {
		cfg.Theme = chart.DefaultTheme()
	}
	if cfg.Cache != nil && (cfg.Keys.Candles == nil || cfg.Keys.Chart == nil) {
		cfg.Cache = nil
	}
	return &Service{cfg: cfg}
}

// Query selects one instrument/day at one interval.
type Query struct {
	Instrument string `json:"instrument"`
	Date       string `json:"date"`
	Interval   int    `json:"interval"`
	Window     int    `json:"window"` // DefaultWindow, 0 = all, n = trailing n candles
}

func (q Query) validate() error {
	switch {
	case q.Instrument == "":
		return fmt.Errorf("%w: instrument is required", ErrInvalidQuery)
	case q.Date == "":
		return fmt.Errorf("%w: date is required", ErrInvalidQuery)
	case q.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidQuery, q.Interval)
	case q.Window < DefaultWindow:
		return fmt.Errorf("%w: window must be >= 0, got %d", ErrInvalidQuery, q.Window)
	}
	return nil
}

// Analysis is the result of one Analyze call.
type Analysis struct {
	Instrument string               `json:"instrument"`
	Date       string               `json:"date"`
	Interval   int                  `json:"interval"`
	Window     int                  `json:"window"`
	Candles    []model.Candle       `json:"candles"`
	Matches    []model.PatternMatch `json:"patterns"`
	Labels     []string             `json:"labels"`
	Counts     []pattern.Count      `json:"counts"`
	MostCommon string               `json:"most_common"`
	Summary    pattern.Summary      `json:"summary"`
}

// Analyze aggregates the session's ticks into candles and detects patterns
// over the trailing window.
func (s *Service) Analyze(ctx context.Context, q Query) (*Analysis, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	ctx = withTrace(ctx, q.Instrument)
	start := time.Now()

	candles, err := s.candles(ctx, q)
	if err != nil {
		return nil, err
	}

	window := q.Window
	if window == DefaultWindow {
		window = s.cfg.Window
	}
	matches := pattern.MatchesInWindow(candles, window)
	if matches == nil {
		matches = []model.PatternMatch{}
	}
	if m := s.cfg.Metrics; m != nil {
		for _, pm := range matches {
			m.PatternsTotal.WithLabelValues(string(pm.Pattern)).Inc()
		}
		m.AnalyzeDur.Observe(time.Since(start).Seconds())
	}

	if s.cfg.Sink != nil {
		if err := s.cfg.Sink.SaveAnalysis(ctx, q.Instrument, q.Date, q.Interval, candles, matches); err != nil {
			slog.Warn("save analysis failed", append(logger.LogWithTrace(ctx), "error", err)...)
		}
	}

	slog.Debug("analysis done", append(logger.LogWithTrace(ctx),
		"instrument", q.Instrument, "date", q.Date, "interval", q.Interval,
		"candles", len(candles), "patterns", len(matches),
		"elapsed", time.Since(start))...)

	return &Analysis{
		Instrument: q.Instrument,
		Date:       q.Date,
		Interval:   q.Interval,
		Window:     window,
		Candles:    candles,
		Matches:    matches,
		Labels:     pattern.Labels(matches, ""),
		Counts:     pattern.Tally(matches),
		MostCommon: pattern.MostCommon(matches),
		Summary:    pattern.Summarize(candles),
	}, nil
}

// candles loads ticks and aggregates them, consulting the cache first.
func (s *Service) candles(ctx context.Context, q Query) ([]model.Candle, error) {
	var key string
	if s.cfg.Cache != nil {
		key = s.cfg.Keys.Candles(q.Instrument, q.Date, q.Interval)
		if cs, ok := s.cfg.Cache.GetCandles(ctx, key); ok && len(cs) > 0 {
			return cs, nil
		}
	}

	ticks, err := s.cfg.Source.Ticks(ctx, q.Instrument, q.Date)
	if err != nil {
		slog.Warn("tick source failed", append(logger.LogWithTrace(ctx),
			"instrument", q.Instrument, "date", q.Date, "error", err)...)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNoData, q.Instrument, q.Date, err)
	}

	a := s.aggregator(ctx, q.Interval)
	candles := a.Aggregate(ticks, q.Interval)
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, q.Instrument, q.Date)
	}

	if s.cfg.Cache != nil {
		s.cfg.Cache.SetCandles(ctx, key, candles)
	}
	return candles, nil
}

func (s *Service) aggregator(ctx context.Context, interval int) *agg.Aggregator {
	a := agg.New()
	m := s.cfg.Metrics
	label := model.Itoa(interval)

	skipped := 0
	a.OnSkippedTick = func(t model.Tick, reason agg.SkipReason) {
		skipped++
		if skipped <= 3 {
			slog.Debug("tick skipped", append(logger.LogWithTrace(ctx), "time", t.Time, "reason", string(reason))...)
		}
		if m != nil {
			m.TicksTotal.Inc()
			m.SkippedTicks.WithLabelValues(string(reason)).Inc()
		}
	}
	if m != nil {
		a.OnCandle = func(c model.Candle) {
			m.TicksTotal.Add(float64(c.Ticks))
			m.CandlesTotal.WithLabelValues(label).Inc()
		}
	}
	return a
}

// ChartQuery selects a chart of one analysis.
type ChartQuery struct {
	Query
	Mode      chart.Mode `json:"mode"`
	Highlight string     `json:"highlight"` // candle time label, "" for none
	Width     int        `json:"width"`     // 0 = service default
	Height    int        `json:"height"`    // 0 = service default
}

// Chart renders the session's candles as a PNG. A highlight label that names
// no candle renders without emphasis.
func (s *Service) Chart(ctx context.Context, q ChartQuery) ([]byte, error) {
	if err := q.Query.validate(); err != nil {
		return nil, err
	}
	w, h := q.Width, q.Height
	if w == 0 {
		w = s.cfg.Width
	}
	if h == 0 {
		h = s.cfg.Height
	}
	if err := CheckChartSize(w, h); err != nil {
		return nil, err
	}
	ctx = withTrace(ctx, q.Instrument)

	var key string
	if s.cfg.Cache != nil {
		key = s.cfg.Keys.Chart(q.Instrument, q.Date, q.Interval, q.Mode.String(), q.Highlight, w, h)
		if png, ok := s.cfg.Cache.GetChart(ctx, key); ok {
			return png, nil
		}
	}

	candles, err := s.candles(ctx, q.Query)
	if err != nil {
		return nil, err
	}

	png, err := s.render(w, h, q.Mode, q.Instrument, q.Date, candles, q.Highlight)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}

	if s.cfg.Cache != nil {
		s.cfg.Cache.SetChart(ctx, key, png)
	}
	return png, nil
}

// CheckChartSize rejects chart dimensions outside [0, 4096] pixels.
func CheckChartSize(w, h int) error {
	if w < 0 || h < 0 || w > maxChartSide || h > maxChartSide {
		return fmt.Errorf("%w: chart size %dx%d out of range", ErrInvalidQuery, w, h)
	}
	return nil
}

// Render draws candles already in hand (e.g. from an Analysis) as a PNG.
func (s *Service) Render(a *Analysis, mode chart.Mode, highlight string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = s.cfg.Width
	}
	if height <= 0 {
		height = s.cfg.Height
	}
	return s.render(width, height, mode, a.Instrument, a.Date, a.Candles, highlight)
}

func (s *Service) render(w, h int, mode chart.Mode, instrument, date string, candles []model.Candle, highlight string) ([]byte, error) {
	if err := CheckChartSize(w, h); err != nil {
		return nil, err
	}
	start := time.Now()
	req := chart.Request{
		Mode:       mode,
		Candles:    candles,
		Instrument: instrument,
		Date:       date,
	}
	if highlight != "" {
		for i := range candles {
			if candles[i].Time == highlight {
				c := candles[i]
				req.Highlight = &c
				break
			}
		}
	}

	surface := chart.NewImageSurface(w, h)
	r := chart.NewRenderer()
	r.Theme = s.cfg.Theme
	if m := s.cfg.Metrics; m != nil {
		r.OnRender = func(mode chart.Mode, _ int) {
			m.RenderDur.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
		}
	}
	r.Render(surface, req)
	return surface.PNG()
}

func withTrace(ctx context.Context, instrument string) context.Context {
	if logger.TraceID(ctx) != "" {
		return ctx
	}
	return logger.WithTraceID(ctx, logger.GenerateTraceID(instrument, time.Now()))
}
