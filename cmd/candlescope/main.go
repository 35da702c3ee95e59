// cmd/candlescope: intraday candle aggregation, pattern detection and chart
// rendering.
//
//	candlescope serve                       HTTP + websocket API
//	candlescope import -i TCS -d 02-01-2025 ticks.json
//	candlescope detect -i TCS -d 02-01-2025 -n 5
//	candlescope render -f ticks.json -m volume -o chart.png
//	candlescope dates  --from 01-03-2025 --to 31-03-2025
//
// Config comes from env vars (see config.Config) and the optional YAML file
// named by --config or CONFIG_FILE.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
