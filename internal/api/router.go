// Package api serves the analysis pipeline over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"candlescope/internal/chart"
	"candlescope/internal/logger"
	"candlescope/internal/model"
	"candlescope/internal/pattern"
	"candlescope/internal/pipeline"
	"candlescope/internal/session"
)

// Analyzer is the slice of pipeline.Service the router needs.
type Analyzer interface {
	Analyze(ctx context.Context, q pipeline.Query) (*pipeline.Analysis, error)
	Chart(ctx context.Context, q pipeline.ChartQuery) ([]byte, error)
}

// Deps wires the router. Health may be nil.
type Deps struct {
	Service   Analyzer
	Catalog   model.Catalog
	Health    interface{ Status() string }
	Intervals []int // offered intervals in minutes; empty = model.IntervalOptions
	Default   int   // default interval in minutes
}

// IntervalInfo is one entry of /api/v1/intervals.
type IntervalInfo struct {
	Label   string `json:"label"`
	Minutes int    `json:"value"`
	Default bool   `json:"default,omitempty"`
}

// PatternInfo is one entry of /api/v1/patterns.
type PatternInfo struct {
	Name        model.PatternName `json:"name"`
	Signal      model.SignalClass `json:"signal"`
	Description string            `json:"description"`
	Color       string            `json:"color"`
	SignalFG    string            `json:"signal_fg"`
	SignalBG    string            `json:"signal_bg"`
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
}

// NewRouter sets up HTTP routes for the API server on a fresh mux.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, d)
	return mux
}

// Register adds the /api/v1 routes to mux.
func Register(mux *http.ServeMux, d Deps) {
	if d.Default <= 0 {
		d.Default = model.DefaultInterval
	}
	h := &handlers{d: d}

	mux.Handle("/api/v1/health", h.wrap(h.health))
	mux.Handle("/api/v1/intervals", h.wrap(h.intervals))
	mux.Handle("/api/v1/patterns", h.wrap(h.patterns))
	mux.Handle("/api/v1/instruments", h.wrap(h.instruments))
	mux.Handle("/api/v1/dates", h.wrap(h.dates))
	mux.Handle("/api/v1/calendar", h.wrap(h.calendar))
	mux.Handle("/api/v1/analysis", h.wrap(h.analysis))
	mux.Handle("/api/v1/chart.png", h.wrap(h.chart))
}

type handlers struct {
	d Deps
}

// httpError carries a status code out of a handler.
type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// wrap adds CORS, trace IDs, method filtering, error mapping and a request log
// line around a handler.
func (h *handlers) wrap(fn func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		start := time.Now()
		tid := r.Header.Get("X-Request-ID")
		if tid == "" {
			tid = logger.GenerateTraceID("http", start)
		}
		ctx := logger.WithTraceID(r.Context(), tid)
		w.Header().Set("X-Request-ID", tid)

		err := fn(w, r.WithContext(ctx))
		status := http.StatusOK
		if err != nil {
			status = statusOf(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				slog.Error("request failed", append(logger.LogWithTrace(ctx), "path", r.URL.Path, "error", err)...)
				msg = "internal error"
			}
			writeJSON(w, status, map[string]string{"error": msg})
		}
		slog.Info("http request", append(logger.LogWithTrace(ctx),
			"path", r.URL.Path, "status", status, "elapsed", time.Since(start))...)
	})
}

func statusOf(err error) int {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status
	case errors.Is(err, pipeline.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidQuery), errors.Is(err, chart.ErrUnknownMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) error {
	status := "ok"
	if h.d.Health != nil {
		status = h.d.Health.Status()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
	return nil
}

func (h *handlers) intervals(w http.ResponseWriter, r *http.Request) error {
	var out []IntervalInfo
	if len(h.d.Intervals) == 0 {
		for _, o := range model.IntervalOptions {
			out = append(out, IntervalInfo{Label: o.Label, Minutes: o.Minutes, Default: o.Minutes == h.d.Default})
		}
	} else {
		for _, m := range h.d.Intervals {
			out = append(out, IntervalInfo{Label: intervalLabel(m), Minutes: m, Default: m == h.d.Default})
		}
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func intervalLabel(minutes int) string {
	for _, o := range model.IntervalOptions {
		if o.Minutes == minutes {
			return o.Label
		}
	}
	return strconv.Itoa(minutes) + " min"
}

func (h *handlers) patterns(w http.ResponseWriter, r *http.Request) error {
	names := append(pattern.Names(), model.EveningStar)
	out := make([]PatternInfo, 0, len(names))
	for _, n := range names {
		sig := model.SignalOf(n)
		fg, bg := model.SignalColors(sig)
		out = append(out, PatternInfo{
			Name:        n,
			Signal:      sig,
			Description: model.DescriptionOf(n),
			Color:       model.PatternColor(n),
			SignalFG:    fg,
			SignalBG:    bg,
		})
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *handlers) instruments(w http.ResponseWriter, r *http.Request) error {
	insts, err := h.d.Catalog.Instruments(r.Context())
	if err != nil {
		return fmt.Errorf("list instruments: %w", err)
	}
	writeJSON(w, http.StatusOK, insts)
	return nil
}

func (h *handlers) dates(w http.ResponseWriter, r *http.Request) error {
	inst := strings.TrimSpace(r.URL.Query().Get("instrument"))
	if inst == "" {
		return badRequest("instrument is required")
	}
	dates, err := h.d.Catalog.Dates(r.Context(), inst)
	if err != nil {
		return fmt.Errorf("list dates: %w", err)
	}
	writeJSON(w, http.StatusOK, dates)
	return nil
}

// calendar lists NSE trading days in [from, to] (DD-MM-YYYY).
func (h *handlers) calendar(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	from, err := session.ParseDate(q.Get("from"))
	if err != nil {
		return badRequest("from: %v", err)
	}
	to, err := session.ParseDate(q.Get("to"))
	if err != nil {
		return badRequest("to: %v", err)
	}
	days := session.TradingDays(from, to)
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
	return nil
}

func (h *handlers) query(r *http.Request) (pipeline.Query, error) {
	v := r.URL.Query()
	q := pipeline.Query{
		Instrument: strings.TrimSpace(v.Get("instrument")),
		Date:       strings.TrimSpace(v.Get("date")),
	}
	var err error
	if q.Interval, err = intParam(v.Get("interval"), h.d.Default); err != nil {
		return q, badRequest("interval: %v", err)
	}
	if q.Window, err = intParam(v.Get("window"), pipeline.DefaultWindow); err != nil {
		return q, badRequest("window: %v", err)
	}
	return q, nil
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func (h *handlers) analysis(w http.ResponseWriter, r *http.Request) error {
	q, err := h.query(r)
	if err != nil {
		return err
	}
	a, err := h.d.Service.Analyze(r.Context(), q)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

func (h *handlers) chart(w http.ResponseWriter, r *http.Request) error {
	q, err := h.query(r)
	if err != nil {
		return err
	}
	v := r.URL.Query()
	cq := pipeline.ChartQuery{Query: q, Highlight: strings.TrimSpace(v.Get("highlight"))}
	if cq.Mode, err = chart.ParseMode(v.Get("mode")); err != nil {
		return err
	}
	if cq.Width, err = intParam(v.Get("width"), 0); err != nil {
		return badRequest("width: %v", err)
	}
	if cq.Height, err = intParam(v.Get("height"), 0); err != nil {
		return badRequest("height: %v", err)
	}

	png, err := h.d.Service.Chart(r.Context(), cq)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
	return nil
}
