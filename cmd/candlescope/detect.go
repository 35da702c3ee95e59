package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"candlescope/config"
	"candlescope/internal/model"
	"candlescope/internal/pipeline"
	sqlitestore "candlescope/internal/store/sqlite"
)

// queryFlags are shared by detect and render.
type queryFlags struct {
	instrument string
	date       string
	interval   int
	window     int
	file       string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.instrument, "instrument", "i", "", "instrument symbol")
	cmd.Flags().StringVarP(&f.date, "date", "d", "", "session date DD-MM-YYYY")
	cmd.Flags().IntVarP(&f.interval, "interval", "n", 0, "candle interval in minutes (default DEFAULT_INTERVAL)")
	cmd.Flags().IntVarP(&f.window, "window", "w", pipeline.DefaultWindow, "trailing candles scanned for patterns, 0 = all (default PATTERN_WINDOW)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read ticks from a JSON file instead of SQLite")
}

func (f *queryFlags) query(cfg *config.Config) pipeline.Query {
	q := pipeline.Query{Instrument: f.instrument, Date: f.date, Interval: f.interval, Window: f.window}
	if q.Interval == 0 {
		q.Interval = cfg.DefaultInterval
	}
	// A file needs no lookup key; label it for titles and output.
	if f.file != "" {
		if q.Instrument == "" {
			q.Instrument = "FILE"
		}
		if q.Date == "" {
			q.Date = "-"
		}
	}
	return q
}

// service builds a pipeline over the file or the SQLite store. The returned
// func releases the store.
func (f *queryFlags) service(cfg *config.Config) (*pipeline.Service, func(), error) {
	pcfg := pipeline.Config{
		Window: cfg.PatternWindow,
		Width:  cfg.ChartWidth,
		Height: cfg.ChartHeight,
		Theme:  cfg.Theme,
	}
	if f.file != "" {
		ticks, err := readTicksFile(f.file)
		if err != nil {
			return nil, nil, err
		}
		pcfg.Source = fileSource{ticks: ticks}
		return pipeline.New(pcfg), func() {}, nil
	}
	r, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite reader: %w", err)
	}
	pcfg.Source = r
	return pipeline.New(pcfg), func() { r.Close() }, nil
}

func newDetectCmd() *cobra.Command {
	var (
		qf      queryFlags
		asJSON  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Aggregate a session and list detected candlestick patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, release, err := qf.service(cfg)
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := svc.Analyze(ctx, qf.query(cfg))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			printAnalysis(cmd.OutOrStdout(), aurora.NewAurora(!noColor), a)
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full analysis as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable terminal colours")
	return cmd
}

func printAnalysis(w io.Writer, au aurora.Aurora, a *pipeline.Analysis) {
	window := "all"
	if a.Window > 0 {
		window = fmt.Sprintf("last %d", a.Window)
	}
	fmt.Fprintf(w, "%s %s @ %dm: %d candles, %d patterns (%s)\n",
		au.Bold(a.Instrument), a.Date, a.Interval, len(a.Candles), len(a.Matches), window)

	for _, m := range a.Matches {
		fmt.Fprintf(w, "  %s  %-22s %s\n", m.Time, au.Bold(string(m.Pattern)), signalLabel(au, m.Signal))
	}

	s := a.Summary
	fmt.Fprintf(w, "Most common: %s\n", a.MostCommon)
	fmt.Fprintf(w, "Open %.2f  High %.2f  Low %.2f  Close %.2f  Volume %d\n", s.Open, s.High, s.Low, s.Close, s.Volume)
}

func signalLabel(au aurora.Aurora, s model.SignalClass) aurora.Value {
	switch s {
	case model.Bullish:
		return au.Green(s)
	case model.Bearish:
		return au.Red(s)
	default:
		return au.Yellow(s)
	}
}
