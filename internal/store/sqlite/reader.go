package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"candlescope/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the tick store. It implements
// model.TickSource and model.Catalog.
type Reader struct {
	db *sql.DB

	// OnQuery, if set, observes the latency of every tick query.
	OnQuery func(time.Duration)
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// Ticks returns the session's ticks in import order. NULL fields come back
// as NaN so the aggregator skips those ticks.
func (r *Reader) Ticks(ctx context.Context, instrument, date string) ([]model.Tick, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, `
		SELECT time, open, high, low, close, volume
		FROM ticks
		WHERE instrument = ? AND date = ?
		ORDER BY seq ASC
	`, instrument, date)
	if err != nil {
		return nil, fmt.Errorf("sqlite query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		var o, h, l, c, v sql.NullFloat64
		if err := rows.Scan(&t.Time, &o, &h, &l, &c, &v); err != nil {
			return nil, fmt.Errorf("sqlite scan ticks: %w", err)
		}
		t.Open, t.High, t.Low, t.Close, t.Volume = orNaN(o), orNaN(h), orNaN(l), orNaN(c), orNaN(v)
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if r.OnQuery != nil {
		r.OnQuery(time.Since(start))
	}
	return ticks, nil
}

func orNaN(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}

// Instruments lists every instrument with stored ticks, alphabetically.
func (r *Reader) Instruments(ctx context.Context) ([]string, error) {
	return r.strings(ctx, `SELECT DISTINCT instrument FROM ticks ORDER BY instrument ASC`)
}

// Dates lists the session dates stored for instrument, oldest first.
func (r *Reader) Dates(ctx context.Context, instrument string) ([]string, error) {
	return r.strings(ctx, `
		SELECT date FROM ticks
		WHERE instrument = ?
		GROUP BY date
		ORDER BY MIN(day) ASC
	`, instrument)
}

func (r *Reader) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
