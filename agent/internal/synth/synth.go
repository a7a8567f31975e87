package synth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rackwatch/rackwatch/agent/internal/config"
	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// SourceName is reported in FleetSnapshot.Source.
const SourceName = "synthetic"

// placementAttempts bounds the retries when rounding or clamping moves a
// value out of its intended band.
const placementAttempts = 8

// Generator produces random but internally consistent fleet snapshots.
// It is safe for concurrent use.
type Generator struct {
	cfg   config.SyntheticConfig
	table compute.Table

	mu  sync.Mutex
	rng *rand.Rand

	now   func() time.Time
	newID func() string
}

// New returns a Generator drawing values against table.
// A zero cfg.Seed seeds from the current time.
func New(cfg config.SyntheticConfig, table compute.Table) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if len(cfg.Weights) != 4 {
		cfg.Weights = config.DefaultWeights()
	}
	return &Generator{
		cfg:   cfg,
		table: table.Clone(),
		rng:   rand.New(rand.NewSource(seed)), //nolint:gosec // demo data
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Snapshot generates one complete FleetSnapshot.
func (g *Generator) Snapshot(ctx context.Context) (*types.FleetSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	snap := &types.FleetSnapshot{
		ID:         g.newID(),
		Source:     SourceName,
		Timestamp:  g.now().UTC(),
		Enclosures: make([]types.Enclosure, 0, g.cfg.Cabinets),
	}
	for c := 1; c <= g.cfg.Cabinets; c++ {
		enc, err := g.enclosure(c)
		if err != nil {
			return nil, fmt.Errorf("synth: cabinet %d: %w", c, err)
		}
		snap.Enclosures = append(snap.Enclosures, enc)
	}
	return snap, nil
}

func (g *Generator) enclosure(c int) (types.Enclosure, error) {
	id := fmt.Sprintf("C%02d", c)
	enc := types.Enclosure{
		ID:   id,
		Name: fmt.Sprintf("Cabinet-%d", c),
		Leak: g.rng.Float64() < g.cfg.LeakProbability,
	}

	var (
		levels []types.Severity
		err    error
	)

	var power [3]float64
	enc.Power.Reported, err = g.group(g.draw(), power[:],
		compute.KeyPowerCurrent, compute.KeyPowerVoltage, compute.KeyPowerWatts)
	if err != nil {
		return enc, err
	}
	enc.Power.Current, enc.Power.Voltage, enc.Power.Power = power[0], power[1], power[2]
	levels = append(levels, *enc.Power.Reported)

	enc.InputFlow, err = g.flow(compute.KeyInputFlowRate, compute.KeyInputFlowPressure,
		compute.KeyInputFlowSpeed, compute.KeyInputFlowTemperature)
	if err != nil {
		return enc, err
	}
	levels = append(levels, *enc.InputFlow.Reported)

	enc.OutputFlow, err = g.flow(compute.KeyOutputFlowRate, compute.KeyOutputFlowPressure,
		compute.KeyOutputFlowSpeed, compute.KeyOutputFlowTemperature)
	if err != nil {
		return enc, err
	}
	levels = append(levels, *enc.OutputFlow.Reported)

	var temp types.Severity
	enc.Temperature, temp, err = g.reading(compute.KeyCabinetTemperature, g.draw())
	if err != nil {
		return enc, err
	}
	enc.TemperatureReported = types.Ptr(temp)

	var liquid types.Severity
	enc.LiquidLevel, liquid, err = g.reading(compute.KeyLiquidLevel, g.draw())
	if err != nil {
		return enc, err
	}
	enc.LiquidLevelReported = types.Ptr(liquid)
	levels = append(levels, temp, liquid)

	n := g.cfg.MinUnits + g.rng.Intn(g.cfg.MaxUnits-g.cfg.MinUnits+1)
	enc.Units = make([]types.ComponentUnit, 0, n)
	for u := 1; u <= n; u++ {
		unit, err := g.unit(c, u)
		if err != nil {
			return enc, err
		}
		enc.Units = append(enc.Units, unit)
		levels = append(levels, *unit.Reported)
	}

	overall, err := types.JoinAll(levels)
	if err != nil {
		return enc, err
	}
	enc.Reported = types.Ptr(overall)
	return enc, nil
}

func (g *Generator) flow(rate, pressure, speed, temp compute.MetricKey) (types.FlowMetrics, error) {
	var v [4]float64
	reported, err := g.group(g.draw(), v[:], rate, pressure, speed, temp)
	if err != nil {
		return types.FlowMetrics{}, err
	}
	return types.FlowMetrics{
		FlowRate:    v[0],
		Pressure:    v[1],
		FlowSpeed:   v[2],
		Temperature: v[3],
		Reported:    reported,
	}, nil
}

// group fills out with one value per key, all aimed at level, and returns
// the join of the severities actually placed.
func (g *Generator) group(level types.Severity, out []float64, keys ...compute.MetricKey) (*types.Severity, error) {
	placed := make([]types.Severity, 0, len(keys))
	for i, k := range keys {
		v, sev, err := g.reading(k, level)
		if err != nil {
			return nil, err
		}
		out[i] = v
		placed = append(placed, sev)
	}
	joined, err := types.JoinAll(placed)
	if err != nil {
		return nil, err
	}
	return types.Ptr(joined), nil
}

func (g *Generator) unit(c, u int) (types.ComponentUnit, error) {
	unit := types.ComponentUnit{
		ID:      fmt.Sprintf("S%02d", u),
		Name:    fmt.Sprintf("Server-%d%02d", c, u),
		Sensors: make([]types.SensorPoint, 0, g.cfg.SensorsPerUnit),
	}
	level := g.draw()
	placed := make([]types.Severity, 0, g.cfg.SensorsPerUnit)
	for p := 1; p <= g.cfg.SensorsPerUnit; p++ {
		v, sev, err := g.reading(compute.KeyProbeTemperature, level)
		if err != nil {
			return unit, err
		}
		unit.Sensors = append(unit.Sensors, types.SensorPoint{
			ID:          fmt.Sprintf("C%02d-%s-%d", c, unit.ID, p),
			Name:        fmt.Sprintf("Probe %d", p),
			Temperature: v,
			Reported:    types.Ptr(sev),
		})
		placed = append(placed, sev)
	}
	joined, err := types.JoinAll(placed)
	if err != nil {
		return unit, err
	}
	unit.Reported = types.Ptr(joined)
	return unit, nil
}

// draw picks a severity according to the configured weights.
func (g *Generator) draw() types.Severity {
	var total float64
	for _, w := range g.cfg.Weights {
		total += w
	}
	r := g.rng.Float64() * total
	for i, w := range g.cfg.Weights {
		if r < w {
			return types.Severity(i)
		}
		r -= w
	}
	// Float rounding can leave r just above the last weight.
	for i := len(g.cfg.Weights) - 1; i > 0; i-- {
		if g.cfg.Weights[i] > 0 {
			return types.Severity(i)
		}
	}
	return types.Normal
}

// reading produces a value for key that classifies as level, or as the
// nearest lower level when the threshold disables level's band. It returns
// the value and the severity it actually classifies as.
func (g *Generator) reading(key compute.MetricKey, level types.Severity) (float64, types.Severity, error) {
	th, ok := g.table[key]
	if !ok {
		return 0, types.Normal, fmt.Errorf("no threshold configured for %q", key)
	}

	lo, hi := bounds(th, level)
	for lo >= hi && level > types.Normal {
		level--
		lo, hi = bounds(th, level)
	}

	var (
		v   float64
		sev types.Severity
		err error
	)
	for i := 0; i < placementAttempts; i++ {
		v = g.place(th, level, lo, hi)
		sev, err = compute.Classify(v, th)
		if err != nil {
			return 0, types.Normal, err
		}
		if sev == level {
			break
		}
	}
	return v, sev, nil
}

// place returns a rounded value whose deviation lies inside the band.
func (g *Generator) place(th compute.Threshold, level types.Severity, lo, hi float64) float64 {
	var dev float64
	if level == types.Normal {
		dev = hi * 0.9 * g.rng.Float64()
	} else {
		dev = lo + (hi-lo)*(0.1+0.8*g.rng.Float64())
	}

	sign := 1.0
	switch th.Direction {
	case compute.Below:
		sign = -1
	case compute.Above:
	default:
		if g.rng.Intn(2) == 0 {
			sign = -1
		}
	}

	v := th.Baseline + sign*dev
	if th.Min != nil && v < *th.Min {
		v = *th.Min
	}
	if th.Max != nil && v > *th.Max {
		v = *th.Max
	}
	return math.Round(v*100) / 100
}

// bounds returns the deviation interval that classifies as level under th.
// Normal covers [0, hi]; the other levels cover (lo, hi]. An empty interval
// (lo >= hi) means the band can never be reached.
func bounds(th compute.Threshold, level types.Severity) (lo, hi float64) {
	widths := [...]float64{th.Caution, th.Warning, th.Critical}

	if level == types.Normal {
		for _, w := range widths {
			if w > 0 {
				return 0, w
			}
		}
		return 0, 0
	}

	lo = widths[level.Rank()-1]
	if lo <= 0 {
		return 0, 0
	}
	for _, w := range widths[level.Rank():] {
		if w > 0 {
			return lo, w
		}
	}
	return lo, 2 * lo
}
