package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"chara-match/internal/di"
	"chara-match/internal/infra/config"
	"chara-match/internal/infra/logger"
	"chara-match/internal/infra/telemetry"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Telemetry (no-op providers when disabled)
	shutdownTelemetry, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Error("telemetry_shutdown_failed", "error", err)
		}
	}()

	// 3. Logger
	log := logger.NewWithOTel(cfg.LogLevel, cfg.OTel.Enabled)
	slog.SetDefault(log)

	// 4. Wire components
	components, err := di.NewApplicationComponents(ctx, cfg, log)
	if err != nil {
		log.Error("failed to wire components", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	// 5. Warm the catalog in the background so readyz flips without
	// waiting for the first request.
	components.Warmer.Start()
	defer components.Warmer.Stop()

	// 6. Echo + middleware
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/v1/healthz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				log.InfoContext(rctx, "request_completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				log.ErrorContext(rctx, "request_failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// 7. Routes
	components.Handler.RegisterRoutes(e)

	// 8. Serve over h2c so HTTP/2 works without TLS inside the cluster.
	// The write timeout covers the worst allowed pipeline: both
	// generation stages with full retries plus the embedding call.
	pipelineBudget := 2*time.Duration(cfg.Gemini.Retry)*(cfg.Gemini.Timeout()+cfg.Gemini.Delay()) + cfg.Ollama.Timeout()
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h2c.NewHandler(e, &http2.Server{}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: pipelineBudget + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server_started",
			"addr", addr,
			"catalog_source", cfg.Catalog.Source,
			"gemini_model", cfg.Gemini.Model,
			"embed_model", cfg.Ollama.EmbedModel)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "error", err)
			os.Exit(1)
		}
	}()

	// 9. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", "error", err)
	}
}
