// Package metrics exposes Prometheus counters for admission, token refresh and upstream calls.
// Methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "krychek"

const (
	RefreshSucceeded = "succeeded"
	RefreshFailed    = "failed"
	RefreshRetried   = "retried"
)

type Metrics struct {
	admissions *prometheus.CounterVec
	refreshes  *prometheus.CounterVec
	upstream   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Admission controller decisions by route and result.",
		}, []string{"route", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of listening-data API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
	}
	reg.MustRegister(m.admissions, m.refreshes, m.upstream)
	return m
}

func (m *Metrics) ObserveAdmission(route string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	m.admissions.WithLabelValues(route, result).Inc()
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveUpstream records a call; status 0 means a transport failure.
func (m *Metrics) ObserveUpstream(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(endpoint, strconv.Itoa(status)).Observe(d.Seconds())
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
