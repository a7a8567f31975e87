package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

func fleetStatus() *compute.FleetStatus {
	return &compute.FleetStatus{
		SnapshotID: "snap-1",
		Timestamp:  time.Now(),
		Severity:   types.Critical,
		Enclosures: []compute.EnclosureStatus{
			{ID: "C01", Severity: types.Normal},
			{ID: "C02", Severity: types.Critical, Leak: true},
		},
		Summary: compute.Summary{
			Enclosures:      2,
			Units:           3,
			EnclosureCounts: compute.Counts{Normal: 1, Critical: 1},
			UnitCounts:      compute.Counts{Normal: 2, Warning: 1},
			LeakCount:       1,
		},
		Warnings: []compute.ConsistencyWarning{
			{Path: "C01/S01", Entity: "unit"},
			{Path: "C01/power", Entity: "group"},
			{Path: "C02/S02", Entity: "unit"},
		},
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("compute: %w", &compute.InvalidReadingError{Metric: compute.KeyLiquidLevel}), ReasonInvalidReading},
		{fmt.Errorf("compute: %w", &types.EmptyAggregationError{What: "fleet enclosures"}), ReasonEmptyAggregation},
		{&compute.SchemaError{Path: "enclosures[0]", Reason: "missing id"}, ReasonSchema},
		{errors.New("boom"), ReasonOther},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Reason(tc.err), tc.err.Error())
	}
}

// value reads the current value of a counter or gauge.
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

// gather collects c into metric families keyed by name.
func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

// labelled returns the gauge values of mf keyed by the value of label name.
func labelled(mf *dto.MetricFamily, name string) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name {
				out[lp.GetValue()] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestCounters(t *testing.T) {
	m := New(store.New(time.Minute))

	m.Accepted(fleetStatus())
	m.Rejected(&compute.InvalidReadingError{})
	m.Rejected(&compute.InvalidReadingError{})
	m.Rejected(errors.New("other"))

	assert.Equal(t, 1.0, value(t, m.accepted))
	assert.Equal(t, 2.0, value(t, m.rejected.WithLabelValues(ReasonInvalidReading)))
	assert.Equal(t, 1.0, value(t, m.rejected.WithLabelValues(ReasonOther)))
	assert.Equal(t, 2.0, value(t, m.warnings.WithLabelValues("unit")))
	assert.Equal(t, 1.0, value(t, m.warnings.WithLabelValues("group")))
}

func TestFleetCollector_Unavailable(t *testing.T) {
	mfs := gather(t, newFleetCollector(store.New(time.Minute)))

	require.Contains(t, mfs, "rackwatch_fleet_status_available")
	assert.Equal(t, 0.0, mfs["rackwatch_fleet_status_available"].GetMetric()[0].GetGauge().GetValue())
	assert.NotContains(t, mfs, "rackwatch_cabinet_severity")
}

func TestFleetCollector_CurrentStatus(t *testing.T) {
	st := store.New(time.Minute)
	st.Put(fleetStatus())
	mfs := gather(t, newFleetCollector(st))

	assert.Equal(t, 1.0, mfs["rackwatch_fleet_status_available"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 3.0, mfs["rackwatch_fleet_severity"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 3.0, mfs["rackwatch_fleet_consistency_warnings"].GetMetric()[0].GetGauge().GetValue())

	assert.Equal(t, map[string]float64{"C01": 0, "C02": 3}, labelled(mfs["rackwatch_cabinet_severity"], "cabinet"))
	assert.Equal(t, map[string]float64{"C01": 0, "C02": 1}, labelled(mfs["rackwatch_cabinet_leak"], "cabinet"))
	assert.Equal(t, map[string]float64{"normal": 2, "caution": 0, "warning": 1, "critical": 0},
		labelled(mfs["rackwatch_servers"], "severity"))
	assert.Equal(t, map[string]float64{"normal": 1, "caution": 0, "warning": 0, "critical": 1},
		labelled(mfs["rackwatch_cabinets"], "severity"))
}

func TestHandler(t *testing.T) {
	st := store.New(time.Minute)
	st.Put(fleetStatus())
	m := New(st)
	m.Accepted(fleetStatus())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "rackwatch_snapshots_accepted_total 1")
	assert.Contains(t, string(body), `rackwatch_cabinets{severity="critical"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
