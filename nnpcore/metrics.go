package nnpcore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors the backend and frontend report
// through. A nil *Metrics is accepted by Backend and Frontend: every method
// is a no-op on a nil receiver.
type Metrics struct {
	publishDuration   prometheus.Histogram
	publishTotal      *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	grantsOutstanding prometheus.Gauge
	resolveDuration   prometheus.Histogram
	storeErrors       *prometheus.CounterVec
}

// NewMetrics registers nnpshare's collectors on reg and returns the handle
// Backend/Frontend report through.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nnpshare",
			Subsystem: "backend",
			Name:      "publish_duration_seconds",
			Help:      "Time to grant and publish one frontend's model weights.",
			Buckets:   prometheus.DefBuckets,
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nnpshare",
			Subsystem: "backend",
			Name:      "publish_total",
			Help:      "Count of completed publications, by model name.",
		}, []string{"model"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nnpshare",
			Subsystem: "backend",
			Name:      "sessions_active",
			Help:      "Number of currently open frontend sessions.",
		}),
		grantsOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nnpshare",
			Subsystem: "backend",
			Name:      "grants_outstanding",
			Help:      "Number of grant refs not yet revoked.",
		}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nnpshare",
			Subsystem: "frontend",
			Name:      "resolve_param_duration_seconds",
			Help:      "Time Frontend.Init spends from waiting on the backend to holding mapped memory.",
			Buckets:   prometheus.DefBuckets,
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nnpshare",
			Name:      "store_errors_total",
			Help:      "Count of store read/write errors, by operation.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.publishDuration,
		m.publishTotal,
		m.sessionsActive,
		m.grantsOutstanding,
		m.resolveDuration,
		m.storeErrors,
	)
	return m
}

func (m *Metrics) ObservePublish(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.publishDuration.Observe(d.Seconds())
	m.publishTotal.WithLabelValues(model).Inc()
}

func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) SetGrantsOutstanding(n int) {
	if m == nil {
		return
	}
	m.grantsOutstanding.Set(float64(n))
}

func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

func (m *Metrics) IncStoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}
