package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"candlescope/config"
	"candlescope/internal/api"
	"candlescope/internal/gateway"
	"candlescope/internal/metrics"
	"candlescope/internal/pipeline"
	"candlescope/internal/session"
	redisstore "candlescope/internal/store/redis"
	sqlitestore "candlescope/internal/store/sqlite"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	log.Println("[candlescope] starting...")

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics(nil)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- SQLite: tick source + analysis sink ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		return fmt.Errorf("sqlite init: %w", err)
	}
	defer sqlWriter.Close()
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("sqlite reader: %w", err)
	}
	defer reader.Close()
	reader.OnQuery = func(d time.Duration) { prom.SQLiteQueryDur.Observe(d.Seconds()) }
	health.SetSQLiteOK(true)

	queue := sqlitestore.NewQueue(sqlWriter, 0)
	queue.OnDrop = func(a sqlitestore.Analysis) {
		log.Printf("[candlescope] analysis queue full, dropped %s %s @%dm", a.Instrument, a.Date, a.Interval)
	}
	queueDone := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(queueDone)
	}()
	log.Println("[candlescope] sqlite ready")

	pcfg := pipeline.Config{
		Source:  reader,
		Sink:    queue,
		Metrics: prom,
		Window:  cfg.PatternWindow,
		Width:   cfg.ChartWidth,
		Height:  cfg.ChartHeight,
		Theme:   cfg.Theme,
	}

	// ---- Redis memo cache (optional) ----
	cache := openCache(cfg, prom, health)
	if cache != nil {
		defer cache.Close()
		pcfg.Cache = cache
		pcfg.Keys = pipeline.KeyFunc{Candles: redisstore.CandlesKey, Chart: redisstore.ChartKey}
		health.StartLivenessChecker(ctx, cache.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	svc := pipeline.New(pcfg)

	// ---- Websocket hub ----
	hub := gateway.NewHub(svc, gateway.HubConfig{DefaultInterval: cfg.DefaultInterval})
	hub.OnClientCount = func(n int) {
		prom.WSClients.Set(float64(n))
		health.SetWSClients(n)
	}
	go hub.StartStatusBroadcast(ctx, 30*time.Second)

	// ---- HTTP ----
	mux := http.NewServeMux()
	api.Register(mux, api.Deps{
		Service:   svc,
		Catalog:   reader,
		Health:    health,
		Intervals: cfg.ParseIntervals(),
		Default:   cfg.DefaultInterval,
	})
	gateway.RegisterRoutes(mux, hub)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	srvErr := make(chan error, 1)
	go func() {
		log.Printf("[candlescope] http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	st := hub.Status(time.Now())
	slog.Info("ready", "trading_day", st.TradingDay, "in_session", st.InSession,
		"redis", cache != nil, "window", cfg.PatternWindow, "default_interval", cfg.DefaultInterval,
		"today", session.FormatDate(time.Now().In(session.IST)))

	// ---- Wait for shutdown signal ----
	select {
	case <-ctx.Done():
		log.Println("[candlescope] shutdown signal received, cleaning up...")
	case err = <-srvErr:
		log.Printf("[candlescope] http server error: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	select {
	case <-queueDone:
	case <-shutdownCtx.Done():
		log.Println("[candlescope] analysis queue did not drain in time")
	}

	log.Println("[candlescope] shutdown complete.")
	return err
}

// openCache connects the Redis memo cache when REDIS_ADDR is set. A failed
// connection is logged and the service runs uncached.
func openCache(cfg *config.Config, prom *metrics.Metrics, health *metrics.HealthStatus) *redisstore.Cache {
	if cfg.RedisAddr == "" {
		return nil
	}
	health.SetRedisEnabled(true)
	cache, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})
	if err != nil {
		log.Printf("[candlescope] WARNING: redis init failed: %v (continuing without cache)", err)
		health.SetRedisConnected(false)
		return nil
	}
	health.SetRedisConnected(true)
	cache.OnHit = func(kind string) { prom.CacheHits.WithLabelValues(kind).Inc() }
	cache.OnMiss = func(kind string) { prom.CacheMisses.WithLabelValues(kind).Inc() }
	cache.Breaker().OnStateChange = func(from, to redisstore.State) {
		prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			prom.RedisCircuitBreakerTrips.Inc()
		}
		log.Printf("[candlescope] redis circuit breaker %s -> %s", from, to)
	}
	log.Printf("[candlescope] redis cache ready at %s (ttl %s)", cfg.RedisAddr, cfg.CacheTTL)
	return cache
}
