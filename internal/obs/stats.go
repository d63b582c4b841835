package obs

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

type Stats struct {
	start time.Time

	httpRequests     atomic.Int64
	httpErrors       atomic.Int64
	httpLatencyUS    atomic.Int64
	httpLatencyCount atomic.Int64

	publishTotal  atomic.Int64
	publishErrors atomic.Int64
	publishBytes  atomic.Int64

	reportsAccepted atomic.Int64
	reportsRejected atomic.Int64
}

func New() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) ObserveHTTP(status int, dur time.Duration) {
	if s == nil {
		return
	}
	s.httpRequests.Add(1)
	if status >= 500 {
		s.httpErrors.Add(1)
	}
	s.httpLatencyUS.Add(dur.Microseconds())
	s.httpLatencyCount.Add(1)
}

func (s *Stats) ObservePublish(bytes int, err error) {
	if s == nil {
		return
	}
	s.publishTotal.Add(1)
	s.publishBytes.Add(int64(bytes))
	if err != nil {
		s.publishErrors.Add(1)
	}
}

func (s *Stats) ObserveReport(accepted bool) {
	if s == nil {
		return
	}
	if accepted {
		s.reportsAccepted.Add(1)
		return
	}
	s.reportsRejected.Add(1)
}

type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	HTTP struct {
		Requests int64   `json:"requests"`
		Errors   int64   `json:"errors"`
		AvgMS    float64 `json:"avg_ms"`
	} `json:"http"`

	Publish struct {
		Total  int64 `json:"total"`
		Errors int64 `json:"errors"`
		Bytes  int64 `json:"bytes"`
	} `json:"publish"`

	Reports struct {
		Accepted int64 `json:"accepted"`
		Rejected int64 `json:"rejected"`
	} `json:"reports"`
}

func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	snap.UptimeSeconds = int64(time.Since(s.start).Seconds())

	snap.HTTP.Requests = s.httpRequests.Load()
	snap.HTTP.Errors = s.httpErrors.Load()
	latUS := s.httpLatencyUS.Load()
	latN := s.httpLatencyCount.Load()
	if latN > 0 {
		snap.HTTP.AvgMS = float64(latUS) / float64(latN) / 1000.0
	}

	snap.Publish.Total = s.publishTotal.Load()
	snap.Publish.Errors = s.publishErrors.Load()
	snap.Publish.Bytes = s.publishBytes.Load()

	snap.Reports.Accepted = s.reportsAccepted.Load()
	snap.Reports.Rejected = s.reportsRejected.Load()
	return snap
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}
