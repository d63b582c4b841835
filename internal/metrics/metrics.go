package metrics

import (
	"errors"
	"sync"

	"github.com/brewcast/ispindel/internal/ingest"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxDevices bounds the device label set when none is configured.
const DefaultMaxDevices = 64

// Recorder exports the latest reading of the most recently seen devices and
// report counters. At most maxDevices device label values exist at a time;
// the least recently reporting device loses its series first.
type Recorder struct {
	mu      sync.Mutex
	devices *lru.Cache[string, struct{}]

	reports     *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	temperature *prometheus.GaugeVec
	gravity     *prometheus.GaugeVec
	battery     *prometheus.GaugeVec
	angle       *prometheus.GaugeVec
	rssi        *prometheus.GaugeVec
}

func NewRecorder(reg prometheus.Registerer, maxDevices int) (*Recorder, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer is nil")
	}
	if maxDevices <= 0 {
		maxDevices = DefaultMaxDevices
	}
	device := []string{"device"}
	r := &Recorder{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ispindel_reports_total",
			Help: "Reports published to the history topic",
		}, device),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ispindel_reports_rejected_total",
			Help: "Reports rejected before publishing",
		}, []string{"reason"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ispindel_temperature",
			Help: "Last reported temperature, in the unit configured on the device",
		}, device),
		gravity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ispindel_gravity",
			Help: "Last reported gravity estimate",
		}, device),
		battery: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ispindel_battery_volts",
			Help: "Last reported battery voltage",
		}, device),
		angle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ispindel_angle_degrees",
			Help: "Last reported tilt angle",
		}, device),
		rssi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ispindel_rssi_dbm",
			Help: "Last reported WiFi signal strength",
		}, device),
	}
	devices, err := lru.NewWithEvict(maxDevices, func(name string, _ struct{}) {
		r.forget(name)
	})
	if err != nil {
		return nil, err
	}
	r.devices = devices

	for _, c := range []prometheus.Collector{r.reports, r.rejected, r.temperature, r.gravity, r.battery, r.angle, r.rssi} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Devices returns the number of devices that currently have series.
func (r *Recorder) Devices() int {
	if r == nil {
		return 0
	}
	return r.devices.Len()
}

func (r *Recorder) forget(name string) {
	for _, v := range []*prometheus.GaugeVec{r.temperature, r.gravity, r.battery, r.angle, r.rssi} {
		v.DeleteLabelValues(name)
	}
	r.reports.DeleteLabelValues(name)
}

func (r *Recorder) ObserveAccepted(rep ingest.Report) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices.Add(rep.Name, struct{}{})
	r.reports.WithLabelValues(rep.Name).Inc()
	setGauge(r.temperature, rep.Name, rep.Temperature)
	setGauge(r.gravity, rep.Name, rep.Gravity)
	setGauge(r.battery, rep.Name, rep.Battery)
	setGauge(r.angle, rep.Name, rep.Angle)
	setGauge(r.rssi, rep.Name, rep.RSSI)
}

func (r *Recorder) ObserveRejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// setGauge leaves the previous value in place when the reading is absent.
func setGauge(g *prometheus.GaugeVec, device string, n *ingest.Number) {
	if n == nil {
		return
	}
	f, err := n.Float64()
	if err != nil {
		return
	}
	g.WithLabelValues(device).Set(f)
}
