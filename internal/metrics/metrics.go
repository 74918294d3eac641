// Package metrics holds the Prometheus collectors of the calendar service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	calendarRequests *prometheus.CounterVec
	dayFetches       *prometheus.CounterVec
	dayFetchDuration prometheus.Histogram
	inFlight         prometheus.Gauge
	providerRetries  *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh prometheus.NewRegistry
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calendarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "reports_total",
			Help:      "Calendar reports built, by result.",
		}, []string{"result"}),
		dayFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "day_fetches_total",
			Help:      "Per-day provider lookups, by outcome status.",
		}, []string{"status"}),
		dayFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "calendar",
			Name:      "day_fetch_duration_seconds",
			Help:      "Duration of a single day lookup including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "calendar",
			Name:      "day_fetches_in_flight",
			Help:      "Day lookups currently running.",
		}),
		providerRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "calendar",
			Name:      "provider_retries_total",
			Help:      "Provider lookups retried after a transient failure.",
		}, []string{"provider"}),
	}
	reg.MustRegister(m.calendarRequests, m.dayFetches, m.dayFetchDuration, m.inFlight, m.providerRetries)
	return m
}

func (m *Metrics) ObserveReport(result string) {
	if m == nil {
		return
	}
	m.calendarRequests.WithLabelValues(result).Inc()
}

// StartFetch marks a day lookup as running and returns the function that
// records its outcome.
func (m *Metrics) StartFetch() func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(status string) {
		m.inFlight.Dec()
		m.dayFetchDuration.Observe(time.Since(start).Seconds())
		m.dayFetches.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveRetry(provider string) {
	if m == nil {
		return
	}
	m.providerRetries.WithLabelValues(provider).Inc()
}
