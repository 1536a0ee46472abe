package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendChannel/internal/collector"
	"TrendChannel/internal/config"
	"TrendChannel/internal/logger"
	"TrendChannel/internal/metrics"
	"TrendChannel/internal/notifier"
	"TrendChannel/internal/recorder"
	"TrendChannel/internal/scheduler"
	"TrendChannel/internal/trend"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Init(logger.Options{})
		logger.Error("[main] load config", logger.Err(err))
		os.Exit(1)
	}
	logger.Init(cfg.Log)
	defer logger.Sync()
	logger.Info("[main] TrendChannel starting...")

	if err := cfg.Validate(); err != nil {
		logger.Error("[main] config validation", logger.Err(err))
		os.Exit(1)
	}

	// Metrics
	m := metrics.NewMetrics()
	var metricsSrv *http.Server
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("[main] metrics server", logger.Err(err))
			}
		}()
		logger.Info("[main] metrics listening", logger.Pair("addr", cfg.Metrics.ListenAddr))
	}

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case config.ProviderAnalyser:
		fetcher = collector.NewAnalyserFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case config.ProviderMock:
		fetcher = &collector.MockFetcher{Price: 100}
	default:
		fetcher = collector.NewBinanceFetcher(cfg.DataSource.APIKey, cfg.DataSource.SecretKey, cfg.DataSource.BaseURL, cfg.Proxy)
	}
	if cfg.Redis.Addr != "" {
		cached := collector.NewCachedFetcher(fetcher, collector.CacheConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, m)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cached.Ping(pingCtx); err != nil {
			logger.Warn("[main] redis unreachable, cache will miss until it recovers", logger.Err(err))
		}
		cancelPing()
		defer cached.Close()
		fetcher = cached
	}
	logger.Info("[main] data source", logger.Pair("source", fetcher.Name()), logger.Pair("symbol", cfg.DataSource.Symbol))

	// Init collector
	col := collector.NewCollector(cfg.DataSource.Symbol, cfg.DataSource.AggregateMinutes, m, fetcher)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			logger.Warn("[main] init sqlite recorder failed, using noop", logger.Err(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)

	// Init trend engine
	engine := trend.NewEngine(cfg.TrendConfig(), m)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, engine, scheduler.Options{
		Strategy:       cfg.StrategyConfig(),
		ZigZagLookback: cfg.Strategy.ZigZag.Lookback,
		ZigZagPieces:   cfg.Strategy.ZigZag.Pieces,
		Prolong:        cfg.Trend.Prolong,
	}, tn, rec, m)
	if err := sched.RegisterAll(cfg.Schedule.TrendCron, cfg.Schedule.ZigZagCron); err != nil {
		logger.Error("[main] register cron tasks", logger.Err(err))
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	go tn.StartPolling(ctx, sched.HandleCommand)
	logger.Info("[main] telegram polling started")

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("[main] RUN_ON_START enabled, executing trend task now")
		go sched.RunTrendNow()
	}

	logger.Info("[main] TrendChannel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("[main] shutdown signal received, stopping...")
	cancel()
	if metricsSrv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[main] metrics shutdown", logger.Err(err))
		}
		cancelShutdown()
	}
	logger.Info("[main] TrendChannel stopped")
}
