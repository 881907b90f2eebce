// Command animal-etl runs the full extract-transform-load pipeline once and
// exits 0 when the run produced statistics, 1 otherwise. Per-record failures
// are reported in the summary, not in the exit code.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/animal-etl/internal/config"
	"github.com/Sternrassler/animal-etl/pkg/client"
	"github.com/Sternrassler/animal-etl/pkg/logging"
	"github.com/Sternrassler/animal-etl/pkg/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	}).With().Str("component", "main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	apiClient, err := client.New(client.Config{
		BaseURL:         cfg.BaseURL,
		UserAgent:       "animal-etl/0.1.0",
		Timeout:         cfg.HTTPTimeout,
		MaxConns:        cfg.MaxConns,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
		Retry:           cfg.Retry,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create API client")
		return 1
	}
	defer apiClient.Close()

	if !apiClient.HealthCheck(ctx) {
		logger.Warn().Str("base_url", cfg.BaseURL).Msg("API health check failed, starting anyway")
	}

	p, err := pipeline.New(apiClient, pipeline.Config{
		Concurrency: cfg.Concurrency,
		BatchSize:   cfg.BatchSize,
		PerPage:     cfg.PerPage,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create pipeline")
		return 1
	}

	stats, err := p.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Pipeline run failed")
		return 1
	}

	logSummary(logger, stats)
	return 0
}

// logSummary emits the final run statistics, including a preview of the
// first recorded errors.
func logSummary(logger zerolog.Logger, stats *pipeline.Stats) {
	event := logger.Info()
	if stats.ErrorCount() > 0 {
		event = logger.Warn().Strs("first_errors", errorPreview(stats.Errors, 5))
	}
	event.Object("stats", stats).Msg("Pipeline execution summary")
}

// errorPreview returns at most n error messages.
func errorPreview(errors []string, n int) []string {
	if len(errors) <= n {
		return errors
	}
	return errors[:n]
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn().Err(err).Msg("Metrics listener stopped")
	}
}
