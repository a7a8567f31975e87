package scraper

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"

	dto "github.com/prometheus/client_model/go"

	"github.com/rackwatch/rackwatch/agent/internal/config"
	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// Metric families exposed by a cabinet cooling exporter.
const (
	famPowerCurrent = "rackwatch_power_current_amperes"
	famPowerVoltage = "rackwatch_power_voltage_volts"
	famPowerWatts   = "rackwatch_power_watts"
	famFlowRate     = "rackwatch_flow_rate_lpm"
	famFlowPressure = "rackwatch_flow_pressure_kpa"
	famFlowSpeed    = "rackwatch_flow_speed_mps"
	famFlowTemp     = "rackwatch_flow_temperature_celsius"
	famCabinetTemp  = "rackwatch_cabinet_temperature_celsius"
	famLiquidLevel  = "rackwatch_liquid_level_percent"
	famLeakDetected = "rackwatch_leak_detected"
	famProbeTemp    = "rackwatch_probe_temperature_celsius"
)

const (
	labelDirection  = "direction"
	labelServer     = "server"
	labelServerName = "server_name"
	labelProbe      = "probe"
	labelProbeName  = "probe_name"

	directionInput  = "input"
	directionOutput = "output"
)

var (
	inputLoop  = map[string]string{labelDirection: directionInput}
	outputLoop = map[string]string{labelDirection: directionOutput}
)

// cabinetScraper reads one cabinet exporter into a types.Enclosure.
type cabinetScraper struct {
	cab    config.Cabinet
	client *http.Client
}

// field binds one exported sample to the Enclosure field it fills.
type field struct {
	family string
	labels map[string]string
	key    compute.MetricKey
	dst    *float64
}

// Scrape fetches the exporter's metrics endpoint and builds the cabinet.
// Every family except the leak detector is required.
func (s *cabinetScraper) Scrape(ctx context.Context) (types.Enclosure, error) {
	enc := types.Enclosure{ID: s.cab.ID, Name: s.cab.Name}

	mfs, err := fetchMetrics(ctx, s.client, s.cab.Endpoint)
	if err != nil {
		return enc, err
	}

	fields := []field{
		{famPowerCurrent, nil, compute.KeyPowerCurrent, &enc.Power.Current},
		{famPowerVoltage, nil, compute.KeyPowerVoltage, &enc.Power.Voltage},
		{famPowerWatts, nil, compute.KeyPowerWatts, &enc.Power.Power},

		{famFlowRate, inputLoop, compute.KeyInputFlowRate, &enc.InputFlow.FlowRate},
		{famFlowPressure, inputLoop, compute.KeyInputFlowPressure, &enc.InputFlow.Pressure},
		{famFlowSpeed, inputLoop, compute.KeyInputFlowSpeed, &enc.InputFlow.FlowSpeed},
		{famFlowTemp, inputLoop, compute.KeyInputFlowTemperature, &enc.InputFlow.Temperature},

		{famFlowRate, outputLoop, compute.KeyOutputFlowRate, &enc.OutputFlow.FlowRate},
		{famFlowPressure, outputLoop, compute.KeyOutputFlowPressure, &enc.OutputFlow.Pressure},
		{famFlowSpeed, outputLoop, compute.KeyOutputFlowSpeed, &enc.OutputFlow.FlowSpeed},
		{famFlowTemp, outputLoop, compute.KeyOutputFlowTemperature, &enc.OutputFlow.Temperature},

		{famCabinetTemp, nil, compute.KeyCabinetTemperature, &enc.Temperature},
		{famLiquidLevel, nil, compute.KeyLiquidLevel, &enc.LiquidLevel},
	}
	for _, f := range fields {
		v, err := sample(mfs, f.family, f.labels, f.key)
		if err != nil {
			return enc, err
		}
		*f.dst = v
	}

	// An exporter without a leak detector reports no leak.
	if mf, ok := mfs[famLeakDetected]; ok {
		for _, m := range mf.GetMetric() {
			if metricValue(m) > 0 {
				enc.Leak = true
			}
		}
	}

	enc.Units, err = s.units(mfs)
	if err != nil {
		return enc, err
	}
	return enc, nil
}

// units groups the probe samples by their server label. Servers are ordered
// by ID and probes by probe label so repeated scrapes line up. Numeric probe
// labels sort numerically ("2" before "10"); other labels sort as strings
// after the numeric ones.
func (s *cabinetScraper) units(mfs map[string]*dto.MetricFamily) ([]types.ComponentUnit, error) {
	mf, ok := mfs[famProbeTemp]
	if !ok || len(mf.GetMetric()) == 0 {
		return nil, fmt.Errorf("missing metric %s", famProbeTemp)
	}

	byServer := make(map[string]*types.ComponentUnit)
	probeOf := make(map[string]string)
	for _, m := range mf.GetMetric() {
		server, probe := label(m, labelServer), label(m, labelProbe)
		if server == "" || probe == "" {
			return nil, fmt.Errorf("%s: sample without %s/%s labels", famProbeTemp, labelServer, labelProbe)
		}
		id := fmt.Sprintf("%s-%s-%s", s.cab.ID, server, probe)
		if _, dup := probeOf[id]; dup {
			return nil, fmt.Errorf("%s: duplicate sample for server %q probe %q", famProbeTemp, server, probe)
		}
		probeOf[id] = probe

		v := metricValue(m)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &compute.InvalidReadingError{Metric: compute.KeyProbeTemperature, Value: v}
		}

		u, ok := byServer[server]
		if !ok {
			u = &types.ComponentUnit{ID: server, Name: server}
			byServer[server] = u
		}
		if name := label(m, labelServerName); name != "" {
			u.Name = name
		}
		name := label(m, labelProbeName)
		if name == "" {
			name = "Probe " + probe
		}
		u.Sensors = append(u.Sensors, types.SensorPoint{ID: id, Name: name, Temperature: v})
	}

	ids := make([]string, 0, len(byServer))
	for id := range byServer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]types.ComponentUnit, 0, len(ids))
	for _, id := range ids {
		u := byServer[id]
		sort.Slice(u.Sensors, func(i, j int) bool {
			return labelLess(probeOf[u.Sensors[i].ID], probeOf[u.Sensors[j].ID])
		})
		out = append(out, *u)
	}
	return out, nil
}

func labelLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
