package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"candlescope/internal/chart"
	"candlescope/internal/pipeline"
)

func newRenderCmd() *cobra.Command {
	var (
		qf            queryFlags
		mode          string
		highlight     string
		out           string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a session chart to PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := chart.ParseMode(mode)
			if err != nil {
				return err
			}
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
			png, err := svc.Chart(ctx, pipeline.ChartQuery{
				Query:     qf.query(cfg),
				Mode:      m,
				Highlight: highlight,
				Width:     width,
				Height:    height,
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(png))
			return nil
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVarP(&mode, "mode", "m", "candlestick", "chart mode: candlestick, line or volume")
	cmd.Flags().StringVar(&highlight, "highlight", "", "HH:MM label of the candle to emphasise")
	cmd.Flags().StringVarP(&out, "out", "o", "chart.png", "output PNG path")
	cmd.Flags().IntVar(&width, "width", 0, "width in pixels (default CHART_WIDTH)")
	cmd.Flags().IntVar(&height, "height", 0, "height in pixels (default CHART_HEIGHT)")
	return cmd
}
