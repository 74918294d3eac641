package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/you/go-flight-calendar/internal/config"
	"github.com/you/go-flight-calendar/internal/httpx"
	"github.com/you/go-flight-calendar/internal/metrics"
	"github.com/you/go-flight-calendar/internal/providers"
	"github.com/you/go-flight-calendar/internal/service"
	"github.com/you/go-flight-calendar/internal/tracing"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		boot := setupLogger("info")
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log := setupLogger(cfg.LogLevel)
	defer func() {
		_ = log.Sync()
	}()
	if cfg.ConfigFile == "" {
		log.Info("no config file found, using defaults and env vars")
	} else {
		log.Info("config file loaded", zap.String("path", cfg.ConfigFile))
	}

	shutdownTracing, err := tracing.Init("flight-calendar", cfg.TracingEnabled, os.Stdout)
	if err != nil {
		log.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("failed to shutdown tracer provider", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	provider := providers.WithRetry(
		providers.NewSerpAPI(cfg),
		providers.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
		},
		log,
		m,
	)
	calendarSvc := service.NewCalendarService(log, provider, cfg.CalendarConcurrency, cfg.CalendarTimeout, m)
	handler := httpx.NewCalendarHandler(log, calendarSvc, service.Defaults{
		Currency: cfg.DefaultCurrency,
		Market:   cfg.DefaultMarket,
	}, cfg.PartialResults)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(log, handler, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.Int("concurrency", cfg.CalendarConcurrency),
			zap.Bool("partial_results", cfg.PartialResults),
		)
		errCh <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}
}

func setupLogger(level string) *zap.Logger {
	zapLevel := parseLogLevel(level)
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}

	return log
}

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
