// Package metrics holds the Prometheus collectors for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the authentication gateway.
type Metrics struct {
	// Gateway metrics
	RequestsTotal *prometheus.CounterVec
	RejectedTotal *prometheus.CounterVec
	BypassedTotal prometheus.Counter

	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationRetries  prometheus.Counter
	ValidationDuration prometheus.Histogram

	// Key source metrics
	KeyFetchesTotal *prometheus.CounterVec
}

// Default is the global metrics instance.
var Default *Metrics

func init() {
	Default = New()
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Name:      "requests_total",
				Help:      "Total requests seen by the authentication gateway",
			},
			[]string{"classification", "outcome"},
		),
		RejectedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Name:      "rejected_total",
				Help:      "Total requests rejected with 401, by failure kind",
			},
			[]string{"kind"},
		),
		BypassedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Name:      "bypassed_total",
				Help:      "Total requests forwarded by the administrative auth bypass",
			},
		),
		ValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Subsystem: "token",
				Name:      "validations_total",
				Help:      "Total token validations, by result",
			},
			[]string{"result"},
		),
		ValidationRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Subsystem: "token",
				Name:      "validation_retries_total",
				Help:      "Total retry attempts across all validations",
			},
		),
		ValidationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "authgate",
				Subsystem: "token",
				Name:      "validation_duration_seconds",
				Help:      "Token validation duration in seconds, including retries",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		KeyFetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "authgate",
				Subsystem: "jwks",
				Name:      "fetches_total",
				Help:      "Total JWKS endpoint fetches, by result",
			},
			[]string{"result"},
		),
	}
}
