package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A single struct
// keeps registration in one place and makes nil-safe injection trivial.
type Metrics struct {
	AddressesSubmitted    prometheus.Counter
	AddressesDecided      *prometheus.CounterVec
	BuildingsProvisioned  *prometheus.CounterVec
	RegistrationsCreated  prometheus.Counter
	RegistrationsDecided  *prometheus.CounterVec
	RegistrationCacheOps  *prometheus.CounterVec
	ApproveDurationMillis prometheus.Histogram
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		AddressesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habitat_addresses_submitted_total",
			Help: "Total number of addresses submitted for approval",
		}),
		AddressesDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_addresses_decided_total",
			Help: "Total number of address decisions by outcome",
		}, []string{"decision"}),
		BuildingsProvisioned: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_buildings_provisioned_total",
			Help: "Total number of buildings created, by provisioning path",
		}, []string{"path"}),
		RegistrationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habitat_registrations_created_total",
			Help: "Total number of flat registration requests created",
		}),
		RegistrationsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_registrations_decided_total",
			Help: "Total number of registration decisions by outcome",
		}, []string{"decision"}),
		RegistrationCacheOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "habitat_registration_cache_ops_total",
			Help: "Registration list cache operations by result",
		}, []string{"result"}),
		ApproveDurationMillis: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "habitat_registration_approve_duration_ms",
			Help:    "Latency of registration approvals in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// ObserveApproveDuration records an approval latency; safe on a nil receiver.
func (m *Metrics) ObserveApproveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ApproveDurationMillis.Observe(float64(d.Microseconds()) / 1000.0)
}

// IncAddressDecided counts one address decision outcome; safe on nil.
func (m *Metrics) IncAddressDecided(decision string) {
	if m == nil {
		return
	}
	m.AddressesDecided.WithLabelValues(decision).Inc()
}

// IncBuildingProvisioned counts one building creation by path
// ("approval", "ensure", "reconcile"); safe on nil.
func (m *Metrics) IncBuildingProvisioned(path string) {
	if m == nil {
		return
	}
	m.BuildingsProvisioned.WithLabelValues(path).Inc()
}

// IncRegistrationCreated counts one new registration request; safe on nil.
func (m *Metrics) IncRegistrationCreated() {
	if m == nil {
		return
	}
	m.RegistrationsCreated.Inc()
}

// IncRegistrationDecided counts one registration decision outcome; safe on nil.
func (m *Metrics) IncRegistrationDecided(decision string) {
	if m == nil {
		return
	}
	m.RegistrationsDecided.WithLabelValues(decision).Inc()
}

// IncCacheOp counts a cache operation outcome ("hit", "miss", "invalidation");
// safe on nil.
func (m *Metrics) IncCacheOp(result string) {
	if m == nil {
		return
	}
	m.RegistrationCacheOps.WithLabelValues(result).Inc()
}
