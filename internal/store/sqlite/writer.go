package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"candlescope/internal/model"
	"candlescope/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 16
	defaultFlushDelay = 200 * time.Millisecond
	defaultQueueSize  = 256
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/ticks.db"
}

// Writer owns the schema and all writes: tick imports and saved analyses.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

// Ticks keep their import order in seq; day is the ISO form of date so
// listings sort chronologically. Price and volume columns are nullable:
// a NULL is a malformed field.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			instrument TEXT    NOT NULL,
			date       TEXT    NOT NULL,
			day        TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			time       TEXT    NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			PRIMARY KEY (instrument, date, seq)
		);

		CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT    NOT NULL,
			date       TEXT    NOT NULL,
			interval   INTEGER NOT NULL,
			idx        INTEGER NOT NULL,
			time       TEXT    NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     INTEGER NOT NULL,
			ticks      INTEGER NOT NULL,
			PRIMARY KEY (instrument, date, interval, idx)
		);

		CREATE TABLE IF NOT EXISTS patterns (
			instrument TEXT    NOT NULL,
			date       TEXT    NOT NULL,
			interval   INTEGER NOT NULL,
			idx        INTEGER NOT NULL,
			time       TEXT    NOT NULL,
			pattern    TEXT    NOT NULL,
			signal     TEXT    NOT NULL,
			PRIMARY KEY (instrument, date, interval, idx, pattern)
		);
	`)
	return err
}

// ImportTicks replaces the stored session of instrument/date with ticks, in
// the given order. Non-finite fields are stored as NULL. Returns the number
// of rows written.
func (w *Writer) ImportTicks(ctx context.Context, instrument, date string, ticks []model.Tick) (int, error) {
	d, err := session.ParseDate(date)
	if err != nil {
		return 0, err
	}
	day := d.Format("2006-01-02")

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ticks WHERE instrument = ? AND date = ?`, instrument, date); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("sqlite clear ticks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks (instrument, date, day, seq, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	for i, t := range ticks {
		_, err := stmt.ExecContext(ctx, instrument, date, day, i, t.Time,
			nullable(t.Open), nullable(t.High), nullable(t.Low), nullable(t.Close), nullable(t.Volume))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert tick %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Printf("[sqlite] imported %d ticks for %s %s", len(ticks), instrument, date)
	return len(ticks), nil
}

func nullable(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// SaveAnalysis replaces the stored candles and pattern matches of one
// instrument/date/interval in a single transaction.
func (w *Writer) SaveAnalysis(ctx context.Context, instrument, date string, interval int, candles []model.Candle, matches []model.PatternMatch) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveAnalysisTx(ctx, tx, instrument, date, interval, candles, matches); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveAnalysisTx(ctx context.Context, tx *sql.Tx, instrument, date string, interval int, candles []model.Candle, matches []model.PatternMatch) error {
	for _, table := range []string{"candles", "patterns"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE instrument = ? AND date = ? AND interval = ?`,
			instrument, date, interval); err != nil {
			return fmt.Errorf("sqlite clear %s: %w", table, err)
		}
	}

	cstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (instrument, date, interval, idx, time, open, high, low, close, volume, ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer cstmt.Close()
	// Unordered ticks can repeat a bucket label, so rows are keyed by position.
	for i, c := range candles {
		if _, err := cstmt.ExecContext(ctx, instrument, date, interval, i, c.Time,
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Ticks); err != nil {
			return fmt.Errorf("sqlite insert candle %s: %w", c.Time, err)
		}
	}

	pstmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (instrument, date, interval, idx, time, pattern, signal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer pstmt.Close()
	for _, m := range matches {
		if _, err := pstmt.ExecContext(ctx, instrument, date, interval, m.Index, m.Time,
			string(m.Pattern), string(m.Signal)); err != nil {
			return fmt.Errorf("sqlite insert pattern %s@%s: %w", m.Pattern, m.Time, err)
		}
	}
	return nil
}

// Analysis is one SaveAnalysis call queued for the background writer.
type Analysis struct {
	Instrument string
	Date       string
	Interval   int
	Candles    []model.Candle
	Matches    []model.PatternMatch
}

// Queue hands analyses to a background goroutine so request paths never wait
// on disk. It satisfies the same SaveAnalysis contract as Writer.
type Queue struct {
	w  *Writer
	ch chan Analysis

	// OnDrop is called when the queue is full and an analysis is discarded.
	OnDrop func(Analysis)
}

// NewQueue creates a queue of the given capacity (<= 0 uses the default).
func NewQueue(w *Writer, size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{w: w, ch: make(chan Analysis, size)}
}

// SaveAnalysis enqueues without blocking. A full queue drops the analysis;
// it will be recomputed and offered again on the next request.
func (q *Queue) SaveAnalysis(_ context.Context, instrument, date string, interval int, candles []model.Candle, matches []model.PatternMatch) error {
	a := Analysis{Instrument: instrument, Date: date, Interval: interval, Candles: candles, Matches: matches}
	select {
	case q.ch <- a:
	default:
		log.Printf("[sqlite] analysis queue full, dropping %s %s %dm", instrument, date, interval)
		if q.OnDrop != nil {
			q.OnDrop(a)
		}
	}
	return nil
}

// Run drains the queue and commits analyses in batched transactions.
// Flushes every defaultBatchSize analyses OR every defaultFlushDelay,
// whichever first. Blocks until ctx is cancelled, then flushes what is
// already queued.
func (q *Queue) Run(ctx context.Context) {
	batch := make([]Analysis, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := q.w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] analysis batch error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d analyses in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case a := <-q.ch:
					batch = append(batch, a)
				default:
					flush()
					return
				}
			}

		case a := <-q.ch:
			batch = append(batch, a)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch writes a batch of analyses in a single transaction. Each
// analysis runs under its own savepoint: a failing one is rolled back alone
// and reported, the rest of the batch still commits.
func (w *Writer) insertBatch(batch []Analysis) error {
	ctx := context.Background()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var failed []error
	for _, a := range batch {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT analysis`); err != nil {
			tx.Rollback()
			return err
		}
		if err := saveAnalysisTx(ctx, tx, a.Instrument, a.Date, a.Interval, a.Candles, a.Matches); err != nil {
			failed = append(failed, fmt.Errorf("%s %s %dm: %w", a.Instrument, a.Date, a.Interval, err))
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO analysis`); rbErr != nil {
				tx.Rollback()
				return errors.Join(append(failed, rbErr)...)
			}
		}
		if _, err := tx.ExecContext(ctx, `RELEASE analysis`); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return errors.Join(failed...)
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
