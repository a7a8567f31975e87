package types

import "time"

// FleetSnapshot is one complete reading of every monitored cabinet.
// A snapshot is produced atomically by a data source and never modified after
// it has been handed on; the next snapshot replaces it wholesale.
type FleetSnapshot struct {
	// ID uniquely identifies this snapshot (a UUID assigned by the source).
	ID string `json:"id"`

	// Source names the producer, e.g. "synthetic" or "prometheus".
	Source string `json:"source"`

	// Timestamp is when the snapshot was produced.
	Timestamp time.Time `json:"timestamp"`

	Enclosures []Enclosure `json:"enclosures"`
}

// Enclosure is one liquid-cooled cabinet.
type Enclosure struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Power      PowerMetrics `json:"power"`
	InputFlow  FlowMetrics  `json:"input_flow"`
	OutputFlow FlowMetrics  `json:"output_flow"`

	// Temperature is the cabinet air temperature in °C.
	Temperature         float64   `json:"temperature"`
	TemperatureReported *Severity `json:"temperature_reported,omitempty"`

	// LiquidLevel is the coolant reservoir level in percent, clamped to 10..100.
	LiquidLevel         float64   `json:"liquid_level"`
	LiquidLevelReported *Severity `json:"liquid_level_reported,omitempty"`

	// Leak is the leak detector state. It is never folded into a severity.
	Leak bool `json:"leak"`

	Units []ComponentUnit `json:"units"`

	// Reported is the overall cabinet severity as claimed by the source.
	Reported *Severity `json:"reported,omitempty"`
}

// PowerMetrics is the electrical group of a cabinet.
type PowerMetrics struct {
	Current  float64   `json:"current"` // A
	Voltage  float64   `json:"voltage"` // V
	Power    float64   `json:"power"`   // W
	Reported *Severity `json:"reported,omitempty"`
}

// FlowMetrics is one coolant loop direction (input or output) of a cabinet.
type FlowMetrics struct {
	FlowRate    float64   `json:"flow_rate"`   // L/min
	Pressure    float64   `json:"pressure"`    // kPa
	FlowSpeed   float64   `json:"flow_speed"`  // m/s
	Temperature float64   `json:"temperature"` // °C
	Reported    *Severity `json:"reported,omitempty"`
}

// ComponentUnit is one server inside a cabinet.
type ComponentUnit struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Sensors  []SensorPoint `json:"sensors"`
	Reported *Severity     `json:"reported,omitempty"`
}

// SensorPoint is one temperature probe on a server.
type SensorPoint struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Temperature float64   `json:"temperature"` // °C
	Reported    *Severity `json:"reported,omitempty"`
}

// Ptr returns a pointer to s, for filling the optional Reported fields.
func Ptr(s Severity) *Severity { return &s }
