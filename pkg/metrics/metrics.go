// Package metrics exposes Prometheus instruments for measurement sessions.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"throughput-tester/pkg/models"
)

const namespace = "throughput_tester"

// Outcomes of a finished session.
const (
	OutcomeStopped    = "stopped"
	OutcomeSuperseded = "superseded"
)

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	ActiveWorkers    prometheus.Gauge
	DownloadedBytes  prometheus.Counter
	IntervalRate     prometheus.Gauge
	FetchErrors      prometheus.Counter
	SessionRate      prometheus.Histogram
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total measurement sessions started",
		}),
		SessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total measurement sessions finished by outcome",
		}, []string{"outcome"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of fetch workers in the active session",
		}),
		DownloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Total body bytes received by fetch workers",
		}),
		IntervalRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "interval_rate_mbps",
			Help:      "Download rate over the last stats interval in Mb/s",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Total failed fetch attempts that were retried",
		}),
		SessionRate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_average_rate_mbps",
			Help:      "Average rate of stopped sessions in Mb/s",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	r.MustRegister(m.SessionsStarted, m.SessionsFinished, m.ActiveWorkers,
		m.DownloadedBytes, m.IntervalRate, m.FetchErrors, m.SessionRate)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Notify records a stats snapshot.
func (m *Metrics) Notify(s models.Snapshot) {
	if m == nil {
		return
	}
	if s.IntervalBytes > 0 {
		m.DownloadedBytes.Add(float64(s.IntervalBytes))
	}
	if rate, err := strconv.ParseFloat(s.IntervalRateMbps, 64); err == nil {
		m.IntervalRate.Set(rate)
	}
}

func (m *Metrics) SessionStarted(workers int) {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveWorkers.Set(float64(workers))
}

// SessionFinished records the end of a session. rec is ignored for superseded sessions.
func (m *Metrics) SessionFinished(outcome string, rec models.Record) {
	if m == nil {
		return
	}
	m.SessionsFinished.WithLabelValues(outcome).Inc()
	m.ActiveWorkers.Set(0)
	m.IntervalRate.Set(0)
	if outcome == OutcomeStopped {
		m.SessionRate.Observe(rec.AverageRateMbps)
	}
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.FetchErrors.Inc()
}
