package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

// fleetCollector turns the store's current FleetStatus into gauges at
// scrape time.
type fleetCollector struct {
	store *store.Store
	now   func() time.Time

	upDesc       *prometheus.Desc
	ageDesc      *prometheus.Desc
	fleetDesc    *prometheus.Desc
	cabinetDesc  *prometheus.Desc
	leakDesc     *prometheus.Desc
	cabinetsDesc *prometheus.Desc
	serversDesc  *prometheus.Desc
	warningsDesc *prometheus.Desc
}

func newFleetCollector(st *store.Store) *fleetCollector {
	return &fleetCollector{
		store: st,
		now:   time.Now,
		upDesc: prometheus.NewDesc(
			"rackwatch_fleet_status_available",
			"1 when a fleet status was accepted within the snapshot TTL.",
			nil, nil,
		),
		ageDesc: prometheus.NewDesc(
			"rackwatch_fleet_status_age_seconds",
			"Seconds since the current fleet status was received.",
			nil, nil,
		),
		fleetDesc: prometheus.NewDesc(
			"rackwatch_fleet_severity",
			"Worst cabinet severity (0 normal, 1 caution, 2 warning, 3 critical).",
			nil, nil,
		),
		cabinetDesc: prometheus.NewDesc(
			"rackwatch_cabinet_severity",
			"Computed cabinet severity (0 normal, 1 caution, 2 warning, 3 critical).",
			[]string{"cabinet"}, nil,
		),
		leakDesc: prometheus.NewDesc(
			"rackwatch_cabinet_leak",
			"1 when the cabinet's leak detector is active.",
			[]string{"cabinet"}, nil,
		),
		cabinetsDesc: prometheus.NewDesc(
			"rackwatch_cabinets",
			"Number of cabinets at each severity.",
			[]string{"severity"}, nil,
		),
		serversDesc: prometheus.NewDesc(
			"rackwatch_servers",
			"Number of servers at each severity.",
			[]string{"severity"}, nil,
		),
		warningsDesc: prometheus.NewDesc(
			"rackwatch_fleet_consistency_warnings",
			"Consistency warnings recorded for the current fleet status.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *fleetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.ageDesc
	ch <- c.fleetDesc
	ch <- c.cabinetDesc
	ch <- c.leakDesc
	ch <- c.cabinetsDesc
	ch <- c.serversDesc
	ch <- c.warningsDesc
}

// Collect implements prometheus.Collector.
func (c *fleetCollector) Collect(ch chan<- prometheus.Metric) {
	e, ok := c.store.Current()
	if !ok {
		ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 0)
		return
	}
	st := e.Status

	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.ageDesc, prometheus.GaugeValue, c.now().Sub(e.UpdatedAt).Seconds())
	ch <- prometheus.MustNewConstMetric(c.fleetDesc, prometheus.GaugeValue, float64(st.Severity.Rank()))
	ch <- prometheus.MustNewConstMetric(c.warningsDesc, prometheus.GaugeValue, float64(len(st.Warnings)))

	for _, enc := range st.Enclosures {
		ch <- prometheus.MustNewConstMetric(c.cabinetDesc, prometheus.GaugeValue, float64(enc.Severity.Rank()), enc.ID)
		ch <- prometheus.MustNewConstMetric(c.leakDesc, prometheus.GaugeValue, boolGauge(enc.Leak), enc.ID)
	}
	for _, level := range types.Levels() {
		ch <- prometheus.MustNewConstMetric(c.cabinetsDesc, prometheus.GaugeValue,
			float64(st.Summary.EnclosureCounts.Get(level)), level.String())
		ch <- prometheus.MustNewConstMetric(c.serversDesc, prometheus.GaugeValue,
			float64(st.Summary.UnitCounts.Get(level)), level.String())
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
