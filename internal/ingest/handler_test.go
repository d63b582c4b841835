package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/brewcast/ispindel/internal/obs"
	"github.com/gin-gonic/gin"
)

const bodyOK = `{"name":"iSpindel000","ID":4974097,"angle":83.49442,"temperature":21.4375,"temp_units":"C",` +
	`"battery":4.035453,"gravity":30.29128,"interval":60,"RSSI":-76}`

const eventOK = `{"key":"test_app","data":{"temperature":21.4375,"battery":4.035453,"angle":83.49442,"rssi":-76,"gravity":30.29128}}`

type published struct {
	topic string
	body  string
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, body: string(body)})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type recordingRecorder struct {
	mu       sync.Mutex
	accepted []string
	rejected []string
}

func (r *recordingRecorder) ObserveAccepted(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = append(r.accepted, rep.Name)
}

func (r *recordingRecorder) ObserveRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
}

func newTestHandler(t *testing.T, pub *recordingPublisher, mutate func(*Options)) *Handler {
	t.Helper()

	opts := Options{
		ServiceName: "test_app",
		Topic:       "brewcast/history",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	h, err := NewHandler(pub, opts)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func TestNewHandler_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, Options{ServiceName: "a", Topic: "b"}); err == nil {
		t.Fatalf("expected error for nil publisher")
	}
	if _, err := NewHandler(&recordingPublisher{}, Options{ServiceName: " ", Topic: "b"}); err == nil {
		t.Fatalf("expected error for empty service name")
	}
	if _, err := NewHandler(&recordingPublisher{}, Options{ServiceName: "a"}); err == nil {
		t.Fatalf("expected error for empty topic")
	}
}

func TestHandle_PublishesEvent(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	stats := obs.New()
	rec := &recordingRecorder{}
	h := newTestHandler(t, pub, func(o *Options) {
		o.Stats = stats
		o.Recorder = rec
	})

	if err := h.Handle(context.Background(), []byte(bodyOK)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	msgs := pub.all()
	if len(msgs) != 1 {
		t.Fatalf("expected one publish, got %d", len(msgs))
	}
	if msgs[0].topic != "brewcast/history" {
		t.Fatalf("unexpected topic %q", msgs[0].topic)
	}
	if msgs[0].body != eventOK {
		t.Fatalf("unexpected event:\n got %s\nwant %s", msgs[0].body, eventOK)
	}
	if strings.Contains(msgs[0].body, "RSSI") || strings.Contains(msgs[0].body, "iSpindel000") {
		t.Fatalf("event leaks device wire format: %s", msgs[0].body)
	}
	if snap := stats.Snapshot(); snap.Reports.Accepted != 1 || snap.Reports.Rejected != 0 {
		t.Fatalf("unexpected stats: %+v", snap.Reports)
	}
	if len(rec.accepted) != 1 || rec.accepted[0] != "iSpindel000" {
		t.Fatalf("unexpected recorder: %+v", rec.accepted)
	}
}

func TestHandle_TopicAndKeyIndependentOfDevice(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	h := newTestHandler(t, pub, nil)

	for _, body := range []string{
		`{"name":"red","temperature":20}`,
		`{"name":"blue","temperature":21}`,
		`{"name":"blue","temperature":21}`,
	} {
		if err := h.Handle(context.Background(), []byte(body)); err != nil {
			t.Fatalf("Handle(%s): %v", body, err)
		}
	}
	msgs := pub.all()
	if len(msgs) != 3 {
		t.Fatalf("expected duplicate reports to publish twice, got %d publishes", len(msgs))
	}
	for _, m := range msgs {
		if m.topic != "brewcast/history" {
			t.Fatalf("topic changed with device: %q", m.topic)
		}
		if !strings.HasPrefix(m.body, `{"key":"test_app",`) {
			t.Fatalf("expected service name key, got %s", m.body)
		}
	}
}

func TestHandle_RejectsWithoutPublishing(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	stats := obs.New()
	rec := &recordingRecorder{}
	h := newTestHandler(t, pub, func(o *Options) {
		o.Stats = stats
		o.Recorder = rec
	})

	for _, body := range []string{`{}`, `{"name":"x"}`, `not json`} {
		err := h.Handle(context.Background(), []byte(body))
		if !errors.Is(err, ErrInvalidReport) {
			t.Fatalf("Handle(%s): expected ErrInvalidReport, got %v", body, err)
		}
		if Status(err) != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, Status(err))
		}
	}
	if n := len(pub.all()); n != 0 {
		t.Fatalf("expected no publish, got %d", n)
	}
	if snap := stats.Snapshot(); snap.Reports.Rejected != 3 {
		t.Fatalf("unexpected stats: %+v", snap.Reports)
	}
	want := []string{"name_missing", "temperature_missing", "malformed"}
	if strings.Join(rec.rejected, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected reasons %v, want %v", rec.rejected, want)
	}
}

func TestHandle_ZeroTemperature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"name":"x","temperature":0}`)

	pub := &recordingPublisher{}
	h := newTestHandler(t, pub, nil)
	if err := h.Handle(context.Background(), body); err != nil {
		t.Fatalf("expected zero temperature accepted by default: %v", err)
	}
	if msgs := pub.all(); len(msgs) != 1 || !strings.Contains(msgs[0].body, `"temperature":0,`) {
		t.Fatalf("unexpected publishes: %+v", msgs)
	}

	strictPub := &recordingPublisher{}
	strict := newTestHandler(t, strictPub, func(o *Options) { o.RejectZeroTemperature = true })
	if err := strict.Handle(context.Background(), body); Status(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 with RejectZeroTemperature, got %v", err)
	}
	if n := len(strictPub.all()); n != 0 {
		t.Fatalf("expected no publish, got %d", n)
	}
}

func TestHandle_PublishErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	stats := obs.New()
	h := newTestHandler(t, &recordingPublisher{err: boom}, func(o *Options) { o.Stats = stats })

	err := h.Handle(context.Background(), []byte(bodyOK))
	if !errors.Is(err, ErrPublish) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if errors.Is(err, ErrInvalidReport) {
		t.Fatalf("publish error must not look like a validation error")
	}
	if Status(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", Status(err))
	}
	if snap := stats.Snapshot(); snap.Reports.Accepted != 0 {
		t.Fatalf("failed publish counted as accepted: %+v", snap.Reports)
	}
}

func TestHandle_Concurrent(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	h := newTestHandler(t, pub, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Handle(context.Background(), []byte(bodyOK)); err != nil {
				t.Errorf("Handle: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := len(pub.all()); n != 50 {
		t.Fatalf("expected 50 publishes, got %d", n)
	}
}

func TestISpindelHandler(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)

	gzipped := func(s string) []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(s)); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		return buf.Bytes()
	}

	cases := []struct {
		name      string
		body      []byte
		gzip      bool
		pubErr    error
		status    int
		published int
	}{
		{name: "ok", body: []byte(bodyOK), status: http.StatusOK, published: 1},
		{name: "gzip", body: gzipped(bodyOK), gzip: true, status: http.StatusOK, published: 1},
		{name: "empty object", body: []byte(`{}`), status: http.StatusBadRequest},
		{name: "bad gzip", body: []byte(bodyOK), gzip: true, status: http.StatusBadRequest},
		{name: "too large", body: []byte(`{"name":"x","temperature":1,"pad":"` + strings.Repeat("x", 512) + `"}`), status: http.StatusRequestEntityTooLarge},
		{name: "publisher down", body: []byte(bodyOK), pubErr: errors.New("down"), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pub := &recordingPublisher{err: tc.pubErr}
			h := newTestHandler(t, pub, nil)

			router := gin.New()
			router.POST("/ispindel", ISpindelHandler(h, 256))

			req := httptest.NewRequest(http.MethodPost, "/ispindel", bytes.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.gzip {
				req.Header.Set("Content-Encoding", "gzip")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if w.Body.Len() != 0 {
				t.Fatalf("expected empty body, got %q", w.Body.String())
			}
			if n := len(pub.all()); n != tc.published {
				t.Fatalf("expected %d publishes, got %d", tc.published, n)
			}
		})
	}
}

func TestAPIGatewayProxy(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	h := newTestHandler(t, pub, nil)
	ctx := context.Background()

	res, err := h.APIGatewayProxy(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: bodyOK})
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d err=%v", res.StatusCode, err)
	}

	res, err = h.APIGatewayProxy(ctx, events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Body:            base64.StdEncoding.EncodeToString([]byte(bodyOK)),
		IsBase64Encoded: true,
	})
	if err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for base64 body, got %d err=%v", res.StatusCode, err)
	}

	res, err = h.APIGatewayProxy(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: `{}`})
	if err != nil || res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d err=%v", res.StatusCode, err)
	}

	res, err = h.APIGatewayProxy(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
	if err != nil || res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d err=%v", res.StatusCode, err)
	}

	if n := len(pub.all()); n != 2 {
		t.Fatalf("expected 2 publishes, got %d", n)
	}

	failing := newTestHandler(t, &recordingPublisher{err: errors.New("down")}, nil)
	if _, err := failing.APIGatewayProxy(ctx, events.APIGatewayProxyRequest{Body: bodyOK}); !errors.Is(err, ErrPublish) {
		t.Fatalf("expected publish error to fail the invocation, got %v", err)
	}
}
