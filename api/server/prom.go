package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects request and ledger-dispatch counters on a private
// registry exposed at /metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	ledgerTx *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		ledgerTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_ledger_transactions_total",
			Help: "Ledger dispatches by mode and outcome.",
		}, []string{"mode", "outcome"}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.ledgerTx)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestObserver feeds the HTTP counters from the response observer hook.
func (m *Metrics) RequestObserver() ResponseObserver {
	return func(info ResponseInfo) {
		m.requests.WithLabelValues(info.Method, strconv.Itoa(info.StatusCode)).Inc()
		m.duration.WithLabelValues(info.Method).Observe(info.Duration.Seconds())
	}
}

func (m *Metrics) ObserveLedgerTx(mode string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.ledgerTx.WithLabelValues(mode, outcome).Inc()
}
