package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsestack/pulse-engine/internal/api"
	"github.com/pulsestack/pulse-engine/internal/cache"
	"github.com/pulsestack/pulse-engine/internal/collector"
	"github.com/pulsestack/pulse-engine/internal/config"
	"github.com/pulsestack/pulse-engine/internal/metrics"
	"github.com/pulsestack/pulse-engine/internal/services"
	"github.com/pulsestack/pulse-engine/internal/store"
	"github.com/pulsestack/pulse-engine/internal/utils"
	"github.com/pulsestack/pulse-engine/internal/ws"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting pulse-engine", slog.String("address", cfg.Server.Address), slog.Int("clusters", len(cfg.Clusters)))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	assessmentCache := cache.NewAssessmentCache(cacheProvider, cfg.Cache.AssessmentTTL)
	defer assessmentCache.Close()

	assessments := store.New(100, time.Hour)
	hub := ws.New(assessments)

	monitor, err := services.NewMonitor(logger, cfg.Thresholds, cfg.Observer.WindowSize, cfg.Clusters, assessments, assessmentCache, hub)
	if err != nil {
		logger.Error("failed to create monitor", slog.Any("error", err))
		os.Exit(1)
	}

	collectorClient := collector.NewClient(
		cfg.Collector.BaseURL,
		cfg.Collector.ClusterSignalsPath,
		cfg.Collector.WorkerSignalsPath,
		cfg.Collector.Timeout,
	)

	clusterNames := make([]string, 0, len(cfg.Clusters))
	for _, cc := range cfg.Clusters {
		clusterNames = append(clusterNames, cc.Name)
	}
	observer := services.NewObserver(logger, collectorClient, monitor, cfg.Observer.Interval, clusterNames)

	handler := api.NewHandler(logger, monitor, assessments, hub)
	server, err := api.NewServer(cfg.Server, handler)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go observer.Run(ctx)

	if configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(updated *config.Config) {
				monitor.SetThresholds(updated.Thresholds)
			})
			if err != nil {
				logger.Warn("config watcher unavailable", slog.Any("error", err))
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("pulse-engine stopped")
}
