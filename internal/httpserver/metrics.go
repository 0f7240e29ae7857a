package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lanshare/internal/presence"
)

// Metrics holds the Prometheus collectors of one Server. Each Server owns its
// registry so several can live in one process (tests).
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Activities      *prometheus.CounterVec
	UploadedBytes   prometheus.Counter
	UploadedFiles   *prometheus.CounterVec
	RemoteProbes    *prometheus.CounterVec
}

func NewMetrics(activeUsers func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	m := &Metrics{
		Registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanshare",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status class",
		}, []string{"route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lanshare",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		Activities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanshare",
			Name:      "activities_total",
			Help:      "Recorded user activities by kind",
		}, []string{"kind"}),
		UploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lanshare",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes written by successful uploads",
		}),
		UploadedFiles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanshare",
			Name:      "uploaded_files_total",
			Help:      "Uploaded files by result",
		}, []string{"result"}),
		RemoteProbes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lanshare",
			Name:      "remote_probes_total",
			Help:      "Remote share reachability checks by outcome",
		}, []string{"outcome"}),
	}
	if activeUsers != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "lanshare",
			Name:      "active_users",
			Help:      "Sessions seen within the staleness window",
		}, func() float64 { return float64(activeUsers()) })
	}
	return m
}

// ObserveActivity is installed as the presence registry's activity hook.
func (m *Metrics) ObserveActivity(a presence.Activity) {
	m.Activities.WithLabelValues(string(a.Kind)).Inc()
}

func statusToLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
