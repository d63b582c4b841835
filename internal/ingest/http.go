package ingest

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var errBodyTooLarge = errors.New("request body too large")

// ISpindelHandler serves POST /ispindel. Responses carry no body.
func ISpindelHandler(h *Handler, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c, maxBody)
		if err != nil {
			if errors.Is(err, errBodyTooLarge) {
				c.Status(http.StatusRequestEntityTooLarge)
				return
			}
			c.Status(http.StatusBadRequest)
			return
		}

		err = h.Handle(c.Request.Context(), body)
		status := Status(err)
		if status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.Status(status)
	}
}

func readBody(c *gin.Context, limit int64) ([]byte, error) {
	defer c.Request.Body.Close()

	var rd io.Reader = c.Request.Body
	enc := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Encoding")))
	if strings.Contains(enc, "gzip") {
		zr, err := gzip.NewReader(io.LimitReader(rd, limit+1))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rd = zr
	}
	b, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errBodyTooLarge
	}
	return b, nil
}
