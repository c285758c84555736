package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"pinepulse/internal/config"
	"pinepulse/internal/ingest"
	"pinepulse/internal/insights"
	"pinepulse/internal/middleware"
	"pinepulse/internal/observability"
	"pinepulse/internal/server"
	"pinepulse/internal/services"
	"pinepulse/internal/storage"
	"pinepulse/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	metrics := observability.NewMetrics()

	analytics := services.NewAnalytics()
	analytics.SetMetrics(metrics)
	analytics.SetSegmentFraction(cfg.Report.SegmentFraction)

	var reportCache *storage.ReportCache
	if cfg.Cache.Enabled {
		reportCache, err = storage.OpenReportCache(cfg.Cache.Dir)
		if err != nil {
			logger.Error("failed to open report cache", "error", err, "dir", cfg.Cache.Dir)
			os.Exit(1)
		}
		analytics.SetCache(reportCache)
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), csvLoadTimeout)
	defer cancel()

	start := time.Now()
	if err := analytics.LoadFromCSV(loadCtx, cfg.Data.CSVFile); err != nil {
		logger.Error("failed to load CSV data", "error", err)
		os.Exit(1)
	}
	logger.Info("CSV data loaded successfully", "duration", time.Since(start))

	var consumer *ingest.Consumer
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if cfg.Kafka.Enabled {
		consumer = ingest.NewConsumer(cfg.Kafka, analytics, logger)
		go func() {
			if err := consumer.Run(consumerCtx); err != nil {
				logger.Error("sales feed consumer stopped", "error", err)
			}
		}()
		logger.Info("sales feed consumer started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	var advisor *insights.Advisor
	if cfg.Insights.Enabled() {
		advisor = insights.NewAdvisor(cfg.Insights, logger)
		advisor.SetMetrics(metrics)
		logger.Info("insight advisor enabled", "model", cfg.Insights.Model)
	} else {
		logger.Info("insight advisor disabled, no API key configured")
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, logger, templateHandlers, server.Options{
		Advisor:           advisor,
		MetricsHandler:    metrics.Handler(),
		DefaultWindowDays: cfg.Report.DefaultWindowDays,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.Metrics(metrics),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		stopConsumer()
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Warn("closing sales feed consumer", "error", err)
			}
		}
		if reportCache != nil {
			return reportCache.Close()
		}
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
