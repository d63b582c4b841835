package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brewcast/ispindel/internal/obs"
	"github.com/brewcast/ispindel/internal/queue"
)

var ErrPublish = errors.New("publish failed")

// Recorder receives the outcome of every report. Implementations must be
// safe for concurrent use.
type Recorder interface {
	ObserveAccepted(r Report)
	ObserveRejected(reason string)
}

type Options struct {
	// ServiceName is published as the event key.
	ServiceName string
	// Topic is the history topic every event is published to.
	Topic                 string
	RejectZeroTemperature bool

	Logger   *slog.Logger
	Stats    *obs.Stats
	Recorder Recorder
}

// Handler turns iSpindel reports into history events. It holds no mutable
// state and is safe for concurrent use.
type Handler struct {
	opts      Options
	publisher queue.Publisher
	logger    *slog.Logger
}

func NewHandler(publisher queue.Publisher, opts Options) (*Handler, error) {
	if publisher == nil {
		return nil, errors.New("ingest: publisher is nil")
	}
	opts.ServiceName = strings.TrimSpace(opts.ServiceName)
	opts.Topic = strings.TrimSpace(opts.Topic)
	if opts.ServiceName == "" {
		return nil, errors.New("ingest: service name is empty")
	}
	if opts.Topic == "" {
		return nil, errors.New("ingest: topic is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{opts: opts, publisher: publisher, logger: logger}, nil
}

// Handle validates one request body and publishes it. It returns nil when the
// event was published, an error wrapping ErrInvalidReport when the body was
// rejected (nothing is published), or an error wrapping ErrPublish.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	report, err := DecodeReport(body, h.opts.RejectZeroTemperature)
	if err != nil {
		h.logger.InfoContext(ctx, "bad request", "error", err, "body", string(body))
		h.opts.Stats.ObserveReport(false)
		if h.opts.Recorder != nil {
			h.opts.Recorder.ObserveRejected(rejectReason(err))
		}
		return err
	}

	payload, err := json.Marshal(NewEvent(h.opts.ServiceName, report))
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", ErrPublish, err)
	}
	if err := h.publisher.Publish(ctx, h.opts.Topic, payload); err != nil {
		return fmt.Errorf("%w: topic %s: %w", ErrPublish, h.opts.Topic, err)
	}

	h.opts.Stats.ObserveReport(true)
	if h.opts.Recorder != nil {
		h.opts.Recorder.ObserveAccepted(report)
	}
	h.logger.InfoContext(ctx, "iSpindel report published",
		"device", report.Name,
		"temperature", numberText(report.Temperature),
		"gravity", numberText(report.Gravity),
	)
	return nil
}

// Status maps the result of Handle onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidReport):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

func rejectReason(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Field + "_" + verr.Reason
	}
	return "malformed"
}

func numberText(n *Number) string {
	if n == nil {
		return "null"
	}
	return n.String()
}
