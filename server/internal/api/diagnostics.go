package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// Hint levels outside the severity scale.
const (
	levelOK   = "ok"
	levelInfo = "info"
)

// DiagnosticHint is one human-readable insight about a cabinet.
// The UI displays these as chips on the cabinet card; clicking one shows
// Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok", "info" or a severity name.
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints for one evaluated cabinet. warnings may
// hold entries for the whole fleet; only those under this cabinet are used.
// Hints are ordered most severe first.
func computeDiagnostics(e compute.EnclosureStatus, warnings []compute.ConsistencyWarning) []DiagnosticHint {
	var hints []DiagnosticHint
	rank := map[string]int{}

	add := func(h DiagnosticHint, r int) {
		rank[h.Key] = r
		hints = append(hints, h)
	}

	if e.Leak {
		add(DiagnosticHint{
			Key:   "leak",
			Level: types.Critical.String(),
			Title: "Leak detected",
			Detail: "The leak detector in this cabinet is tripped. The leak flag is reported " +
				"on its own and does not raise the cabinet severity, so a cabinet can read " +
				"normal while coolant escapes. Inspect the manifold and quick disconnects.",
		}, int(types.Critical)+1)
	}

	if s := e.LiquidLevel.Severity; s > types.Normal {
		v := e.LiquidLevel.Value
		add(DiagnosticHint{
			Key:   "liquid_level",
			Level: s.String(),
			Title: fmt.Sprintf("Coolant at %.0f%%", v),
			Detail: fmt.Sprintf("The reservoir level is %.1f%%, which classifies as %s. "+
				"Top up the coolant and check for slow losses.", v, s),
			Value: &v,
		}, int(s))
	}

	if s := e.Temperature.Severity; s > types.Normal {
		v := e.Temperature.Value
		add(DiagnosticHint{
			Key:    "cabinet_temperature",
			Level:  s.String(),
			Title:  fmt.Sprintf("Cabinet at %.1f°C", v),
			Detail: fmt.Sprintf("The cabinet air temperature is %.1f°C (%s).", v, s),
			Value:  &v,
		}, int(s))
	}

	for _, g := range []compute.GroupStatus{e.Power, e.InputFlow, e.OutputFlow} {
		if g.Severity == types.Normal {
			continue
		}
		var worst []string
		for _, r := range g.Readings {
			if r.Severity == g.Severity {
				worst = append(worst, fmt.Sprintf("%s=%.2f", r.Metric, r.Value))
			}
		}
		add(DiagnosticHint{
			Key:   "group_" + string(g.Group),
			Level: g.Severity.String(),
			Title: fmt.Sprintf("%s %s", groupTitle(g.Group), g.Severity),
			Detail: fmt.Sprintf("The %s group is %s, driven by %s.",
				groupTitle(g.Group), g.Severity, strings.Join(worst, ", ")),
		}, int(g.Severity))
	}

	var critical, warning []string
	for _, u := range e.Units {
		switch u.Severity {
		case types.Critical:
			critical = append(critical, u.ID)
		case types.Warning:
			warning = append(warning, u.ID)
		}
	}
	if len(critical) > 0 {
		n := float64(len(critical))
		add(DiagnosticHint{
			Key:   "servers_critical",
			Level: types.Critical.String(),
			Title: fmt.Sprintf("%d server(s) critical", len(critical)),
			Detail: fmt.Sprintf("At least one probe on %s is far from its baseline. "+
				"Check the cold plate and the server's own fans.", strings.Join(critical, ", ")),
			Value: &n,
		}, int(types.Critical))
	}
	if len(warning) > 0 {
		n := float64(len(warning))
		add(DiagnosticHint{
			Key:    "servers_warning",
			Level:  types.Warning.String(),
			Title:  fmt.Sprintf("%d server(s) warning", len(warning)),
			Detail: fmt.Sprintf("Probe temperatures on %s are elevated.", strings.Join(warning, ", ")),
			Value:  &n,
		}, int(types.Warning))
	}

	var mismatches []string
	for _, w := range warnings {
		if w.Path == e.ID || strings.HasPrefix(w.Path, e.ID+"/") {
			mismatches = append(mismatches, w.String())
		}
	}
	if len(mismatches) > 0 {
		n := float64(len(mismatches))
		add(DiagnosticHint{
			Key:   "reported_mismatch",
			Level: levelInfo,
			Title: "Reported severity disagrees",
			Detail: "The source supplied severities that differ from the computed ones. " +
				"The computed values are shown. " + strings.Join(mismatches, "; "),
			Value: &n,
		}, -1)
	}

	if len(hints) == 0 {
		return []DiagnosticHint{{
			Key:    "nominal",
			Level:  levelOK,
			Title:  "All nominal",
			Detail: "Every reading in this cabinet is within its caution band.",
		}}
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return rank[hints[i].Key] > rank[hints[j].Key]
	})
	return hints
}

func groupTitle(g compute.GroupName) string {
	switch g {
	case compute.GroupPower:
		return "Power"
	case compute.GroupInputFlow:
		return "Inlet flow"
	case compute.GroupOutputFlow:
		return "Outlet flow"
	}
	return string(g)
}
