package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	CarrierErrors      *prometheus.CounterVec
	AutoAssignTotal    *prometheus.CounterVec
	StateMergeFailures *prometheus.CounterVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_requests_total",
				Help: "Total number of shipment operations by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_request_duration_seconds",
				Help:    "Shipment operation duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		AutoAssignTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_auto_assign_total",
				Help: "Background courier auto-assignments by outcome",
			},
			[]string{"outcome"},
		),
		StateMergeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_state_merge_failures_total",
				Help: "Shipment state merges that failed after a successful carrier call",
			},
			[]string{"operation"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	if m == nil {
		return
	}
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordAutoAssign records the outcome of a background assignment.
func (m *Metrics) RecordAutoAssign(outcome string) {
	if m == nil {
		return
	}
	m.AutoAssignTotal.WithLabelValues(outcome).Inc()
}

// RecordMergeFailure records a failed shipment state merge.
func (m *Metrics) RecordMergeFailure(operation string) {
	if m == nil {
		return
	}
	m.StateMergeFailures.WithLabelValues(operation).Inc()
}
