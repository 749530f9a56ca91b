// Package metrics records quote latency, provider failures and swap outcomes.
// A CLI run is short-lived, so the registry is flushed to a node_exporter
// textfile instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ggonzalez94/swap-router/internal/model"
)

const (
	QuoteIndicative = "indicative"
	QuoteFirm       = "firm"

	StatusOK    = "ok"
	StatusError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	quoteDuration *prometheus.HistogramVec
	quoteRequests *prometheus.CounterVec
	autoBest      *prometheus.CounterVec
	providerErrs  *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		quoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swap_quote_duration_seconds",
			Help:    "Latency of provider quote requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "quote_type"}),
		quoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_quote_requests_total",
			Help: "Provider quote requests by result.",
		}, []string{"provider", "quote_type", "status"}),
		autoBest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_auto_best_provider_total",
			Help: "Times a provider returned the best route of an auto quote.",
		}, []string{"provider"}),
		providerErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_provider_errors_total",
			Help: "Provider failures by error kind and operation.",
		}, []string{"provider", "error_kind", "operation"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_outcomes_total",
			Help: "Terminal swap statuses observed.",
		}, []string{"provider", "status"}),
	}
	m.registry.MustRegister(m.quoteDuration, m.quoteRequests, m.autoBest, m.providerErrs, m.outcomes)
	return m
}

// The recording methods are safe on a nil *Metrics.

func (m *Metrics) ObserveQuote(provider model.ProviderID, quoteType string, latency time.Duration, err error) {
	if m == nil {
		return
	}
	m.quoteDuration.WithLabelValues(string(provider), quoteType).Observe(latency.Seconds())
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.quoteRequests.WithLabelValues(string(provider), quoteType, status).Inc()
}

func (m *Metrics) AutoBest(provider model.ProviderID) {
	if m == nil {
		return
	}
	m.autoBest.WithLabelValues(string(provider)).Inc()
}

func (m *Metrics) ProviderError(provider model.ProviderID, kind, operation string) {
	if m == nil {
		return
	}
	m.providerErrs.WithLabelValues(string(provider), kind, operation).Inc()
}

// Outcome counts only terminal statuses.
func (m *Metrics) Outcome(provider model.ProviderID, status model.SwapStatus) {
	if m == nil || !status.IsTerminal() {
		return
	}
	m.outcomes.WithLabelValues(string(provider), string(status)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the registry atomically in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
