package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brewcast/ispindel/internal/config"
	"github.com/brewcast/ispindel/internal/httpserver"
	"github.com/brewcast/ispindel/internal/ingest"
	"github.com/brewcast/ispindel/internal/metrics"
	"github.com/brewcast/ispindel/internal/obs"
	"github.com/brewcast/ispindel/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args, os.Stderr)
	stop()
	if err != nil {
		obs.NewLogger(os.Stderr, "info").Error("exit", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is done or the server fails. Everything it opens is
// closed before it returns.
func run(ctx context.Context, args []string, logOut io.Writer) error {
	flags := config.Flags(args[0])
	if err := flags.Parse(args[1:]); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := obs.NewLogger(logOut, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("config: " + cfg.String())

	stats := obs.New()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	publisher, err := queue.Open(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("publisher: %w", err)
	}
	publisher = queue.ObservePublisher(publisher, stats)
	if c, ok := publisher.(queue.Closer); ok {
		defer c.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg, cfg.MetricsMaxDevices)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	handler, err := ingest.NewHandler(publisher, ingest.Options{
		ServiceName:           cfg.ServiceName,
		Topic:                 cfg.HistoryTopic,
		RejectZeroTemperature: cfg.RejectZeroTemperature,
		Logger:                logger,
		Stats:                 stats,
		Recorder:              recorder,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	logger.Info("setup iSpindel register endpoint", "topic", cfg.HistoryTopic, "key", cfg.ServiceName)

	srv := httpserver.New(cfg, handler, stats, reg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("http listening", "addr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return nil
}
