package types

import (
	"fmt"
	"strings"
)

// Severity is one level of the ordered alert scale.
// The zero value is Normal.
type Severity uint8

// Severity levels in ascending order. The numeric value is the rank.
const (
	Normal Severity = iota
	Caution
	Warning
	Critical
)

var severityNames = [...]string{
	Normal:   "normal",
	Caution:  "caution",
	Warning:  "warning",
	Critical: "critical",
}

// Levels returns every severity in ascending order.
func Levels() []Severity {
	return []Severity{Normal, Caution, Warning, Critical}
}

// ParseSeverity converts a level name ("normal", "caution", "warning",
// "critical") into a Severity. Matching is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown severity %q: want normal|caution|warning|critical", s)
}

// Rank returns the numeric rank, 0 (normal) to 3 (critical).
func (s Severity) Rank() int { return int(s) }

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool { return s <= Critical }

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
	return severityNames[s]
}

// MarshalText encodes the level name. Used by encoding/json and yaml.v3.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", uint8(s))
	}
	return []byte(severityNames[s]), nil
}

// UnmarshalText decodes a level name.
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Compare returns -1, 0 or +1 as a ranks below, equal to or above b.
func Compare(a, b Severity) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Join returns the more severe of a and b.
func Join(a, b Severity) Severity {
	if a >= b {
		return a
	}
	return b
}

// JoinAll folds Join over levels. An empty input has no defined result and
// fails with *EmptyAggregationError; it never defaults to Normal.
func JoinAll(levels []Severity) (Severity, error) {
	if len(levels) == 0 {
		return Normal, &EmptyAggregationError{}
	}
	out := levels[0]
	for _, l := range levels[1:] {
		out = Join(out, l)
	}
	return out, nil
}

// EmptyAggregationError reports a fold over zero severities. What names the
// collection that was empty (e.g. "C01/S03 sensors") when known.
type EmptyAggregationError struct {
	What string
}

func (e *EmptyAggregationError) Error() string {
	if e.What == "" {
		return "empty aggregation: no severities to join"
	}
	return fmt.Sprintf("empty aggregation: %s has no members to join", e.What)
}
