package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

const namespace = "rackwatch"

// Rejection reasons used as the "reason" label.
const (
	ReasonInvalidReading   = "invalid_reading"
	ReasonEmptyAggregation = "empty_aggregation"
	ReasonSchema           = "schema"
	ReasonOther            = "other"
)

// Metrics owns a private registry with the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	accepted prometheus.Counter
	rejected *prometheus.CounterVec
	warnings *prometheus.CounterVec
}

// New creates the registry, registering ingest counters, the fleet collector
// reading st, and the Go runtime and process collectors.
func New(st *store.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_accepted_total",
			Help:      "Fleet snapshots evaluated and stored.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_rejected_total",
			Help:      "Fleet snapshots refused by the engine, by reason.",
		}, []string{"reason"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_warnings_total",
			Help:      "Source-reported severities that disagreed with the computed ones, by entity.",
		}, []string{"entity"}),
	}

	m.registry.MustRegister(
		m.accepted,
		m.rejected,
		m.warnings,
		newFleetCollector(st),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Accepted records an evaluated snapshot and its consistency warnings.
func (m *Metrics) Accepted(st *compute.FleetStatus) {
	m.accepted.Inc()
	for _, w := range st.Warnings {
		m.warnings.WithLabelValues(w.Entity).Inc()
	}
}

// Rejected records a refused snapshot under the reason derived from err.
func (m *Metrics) Rejected(err error) {
	m.rejected.WithLabelValues(Reason(err)).Inc()
}

// Reason classifies an evaluation error into one of the Reason* labels.
func Reason(err error) string {
	var (
		inv    *compute.InvalidReadingError
		empty  *types.EmptyAggregationError
		schema *compute.SchemaError
	)
	switch {
	case errors.As(err, &inv):
		return ReasonInvalidReading
	case errors.As(err, &empty):
		return ReasonEmptyAggregation
	case errors.As(err, &schema):
		return ReasonSchema
	default:
		return ReasonOther
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
