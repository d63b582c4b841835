package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/brewcast/ispindel/internal/config"
	"github.com/brewcast/ispindel/internal/ingest"
	"github.com/brewcast/ispindel/internal/obs"
	"github.com/brewcast/ispindel/internal/openapi"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swgui "github.com/swaggest/swgui/v3"
)

// New builds the HTTP server. stats, gatherer and logger may be nil; the
// matching endpoints and middleware are then left out.
func New(cfg config.Config, handler *ingest.Handler, stats *obs.Stats, gatherer prometheus.Gatherer, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := "/" + cfg.ServiceName

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(logger))
	if stats != nil {
		router.Use(observabilityMiddleware(stats))
	}
	router.Use(maintenanceMiddleware(cfg.MaintenanceMode, prefix))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET(prefix+"/_service/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	spec := openapi.Spec(cfg.ServiceName)
	serveSpec := func(c *gin.Context) { c.JSON(http.StatusOK, spec) }
	router.GET("/openapi.json", serveSpec)
	router.GET(prefix+"/openapi.json", serveSpec)
	router.GET(prefix+"/api/doc/*any", gin.WrapH(swgui.New(cfg.ServiceName+" API", prefix+"/openapi.json", prefix+"/api/doc")))

	ingestHandler := ingest.ISpindelHandler(handler, cfg.MaxBodyBytes)
	router.POST("/ispindel", ingestHandler)
	router.POST(prefix+"/ispindel", ingestHandler)

	if gatherer != nil && cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.EnableDebugEndpoints {
		router.GET("/debug/metrics", debugMetricsHandler(stats))
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
