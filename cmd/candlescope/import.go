package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"candlescope/internal/model"
	"candlescope/internal/session"
	redisstore "candlescope/internal/store/redis"
	sqlitestore "candlescope/internal/store/sqlite"
)

func newImportCmd() *cobra.Command {
	var instrument, date string
	cmd := &cobra.Command{
		Use:   "import [ticks.json|-]",
		Short: "Import one instrument/day of ticks into SQLite",
		Long: `Import reads a JSON array of ticks ({"time","open","high","low","close","volume"})
and replaces the stored session for the instrument and date. A null or missing
price field is kept as a malformed tick; the aggregator skips it.

Cached candles and charts for the session are invalidated when REDIS_ADDR is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			ticks, err := decodeTicks(in)
			if err != nil {
				return err
			}

			w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
			if err != nil {
				return fmt.Errorf("sqlite init: %w", err)
			}
			defer w.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			n, err := w.ImportTicks(ctx, instrument, date, ticks)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d ticks for %s %s\n", n, instrument, date)
			if off := outOfSession(ticks); off > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %d ticks fall outside market hours\n", off)
			}

			if cfg.RedisAddr != "" {
				cache, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, TTL: cfg.CacheTTL})
				if err != nil {
					log.Printf("[import] WARNING: redis unavailable, cached results may be stale until TTL: %v", err)
					return nil
				}
				defer cache.Close()
				if _, err := cache.Invalidate(ctx, instrument, date); err != nil {
					log.Printf("[import] WARNING: cache invalidation failed: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "instrument symbol (required)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "session date DD-MM-YYYY (required)")
	cmd.MarkFlagRequired("instrument")
	cmd.MarkFlagRequired("date")
	return cmd
}

// outOfSession counts parsable ticks stamped outside regular market hours.
func outOfSession(ticks []model.Tick) int {
	n := 0
	for _, t := range ticks {
		m, err := model.ParseTimeOfDay(t.Time)
		if err == nil && !session.InSession(m) {
			n++
		}
	}
	return n
}
