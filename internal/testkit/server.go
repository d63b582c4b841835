package testkit

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/brewcast/ispindel/internal/config"
	"github.com/brewcast/ispindel/internal/httpserver"
	"github.com/brewcast/ispindel/internal/ingest"
	"github.com/brewcast/ispindel/internal/metrics"
	"github.com/brewcast/ispindel/internal/obs"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	Publisher *RecordingPublisher
	Config    config.Config
	Stats     *obs.Stats
	Registry  *prometheus.Registry
	HTTP      *httptest.Server
}

// NewServer starts the full HTTP stack against a RecordingPublisher.
// mutate may adjust the config before the server is built.
func NewServer(t testing.TB, mutate func(*config.Config)) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		ServiceName:   "test_app",
		HistoryTopic:  "brewcast/history",
		HTTPAddr:      "127.0.0.1:0",
		MaxBodyBytes:  1 << 20,
		Bus:           config.BusMQTT,
		MQTTBroker:    "tcp://127.0.0.1:1883",
		LogLevel:      "info",
		EnableMetrics: true,

		MetricsMaxDevices: 8,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &RecordingPublisher{}
	stats := obs.New()
	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg, cfg.MetricsMaxDevices)
	if err != nil {
		t.Fatalf("metrics.NewRecorder: %v", err)
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
		t.Fatalf("ingest.NewHandler: %v", err)
	}

	srv := httpserver.New(cfg, handler, stats, reg, logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &Server{
		Publisher: publisher,
		Config:    cfg,
		Stats:     stats,
		Registry:  reg,
		HTTP:      ts,
	}
}
