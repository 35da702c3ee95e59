package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"candlescope/internal/session"
	sqlitestore "candlescope/internal/store/sqlite"
)

func newDatesCmd() *cobra.Command {
	var instrument, from, to string
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List stored session dates, or NSE trading days in a range",
		Long: `With --instrument, dates lists the sessions stored for that instrument.
Otherwise it lists NSE trading days between --from and --to (DD-MM-YYYY);
--to defaults to today and --from to 30 days before --to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if instrument != "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				r, err := sqlitestore.NewReader(cfg.SQLitePath)
				if err != nil {
					return fmt.Errorf("sqlite reader: %w", err)
				}
				defer r.Close()
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				dates, err := r.Dates(ctx, instrument)
				if err != nil {
					return err
				}
				for _, d := range dates {
					fmt.Fprintln(out, d)
				}
				return nil
			}

			days, err := tradingDays(from, to, time.Now())
			if err != nil {
				return err
			}
			for _, d := range days {
				fmt.Fprintln(out, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&instrument, "instrument", "i", "", "list stored dates for this instrument")
	cmd.Flags().StringVar(&from, "from", "", "first date DD-MM-YYYY")
	cmd.Flags().StringVar(&to, "to", "", "last date DD-MM-YYYY")
	return cmd
}

func tradingDays(from, to string, now time.Time) ([]string, error) {
	end := now.In(session.IST)
	if to != "" {
		t, err := session.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("--to: %w", err)
		}
		end = t
	}
	start := end.AddDate(0, 0, -30)
	if from != "" {
		t, err := session.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("--from: %w", err)
		}
		start = t
	}
	return session.TradingDays(start, end), nil
}
