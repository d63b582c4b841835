package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/brewcast/ispindel/internal/obs"
	"github.com/gin-gonic/gin"
)

func observabilityMiddleware(stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		stats.ObserveHTTP(c.Writer.Status(), time.Since(start))
	}
}

func debugMetricsHandler(stats *obs.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		if stats == nil {
			respondErr(c, http.StatusNotImplemented, "stats not configured")
			return
		}
		respondOK(c, stats.Snapshot())
	}
}

// API response envelope.
//
// Success:
//
//	{"code":0,"data":...}
//
// Error:
//
//	{"code":<http status>,"err":"..."}
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": data,
	})
}

func respondErr(c *gin.Context, status int, errMsg string) {
	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		errMsg = http.StatusText(status)
	}
	c.JSON(status, gin.H{
		"code": status,
		"err":  errMsg,
	})
}
