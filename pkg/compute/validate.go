package compute

import (
	"fmt"

	"github.com/rackwatch/rackwatch/pkg/types"
)

// SchemaError reports a snapshot that does not match the expected shape.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid snapshot: " + e.Reason
	}
	return fmt.Sprintf("invalid snapshot at %s: %s", e.Path, e.Reason)
}

// Validate checks the identity and reported-severity fields of snap before
// any aggregation runs. Empty collections are not checked here; the
// aggregation step rejects them with *types.EmptyAggregationError.
func Validate(snap *types.FleetSnapshot) error {
	if snap == nil {
		return &SchemaError{Reason: "snapshot is nil"}
	}

	encIDs := make(map[string]struct{}, len(snap.Enclosures))
	for i, enc := range snap.Enclosures {
		if enc.ID == "" {
			return &SchemaError{Path: fmt.Sprintf("enclosures[%d]", i), Reason: "id is required"}
		}
		if _, dup := encIDs[enc.ID]; dup {
			return &SchemaError{Path: enc.ID, Reason: "duplicate enclosure id"}
		}
		encIDs[enc.ID] = struct{}{}

		if err := validateReported(enc.ID, enc.Reported, enc.Power.Reported,
			enc.InputFlow.Reported, enc.OutputFlow.Reported,
			enc.TemperatureReported, enc.LiquidLevelReported); err != nil {
			return err
		}

		unitIDs := make(map[string]struct{}, len(enc.Units))
		for j, u := range enc.Units {
			if u.ID == "" {
				return &SchemaError{Path: fmt.Sprintf("%s/units[%d]", enc.ID, j), Reason: "id is required"}
			}
			upath := enc.ID + "/" + u.ID
			if _, dup := unitIDs[u.ID]; dup {
				return &SchemaError{Path: upath, Reason: "duplicate unit id"}
			}
			unitIDs[u.ID] = struct{}{}
			if err := validateReported(upath, u.Reported); err != nil {
				return err
			}

			sensorIDs := make(map[string]struct{}, len(u.Sensors))
			for k, s := range u.Sensors {
				if s.ID == "" {
					return &SchemaError{Path: fmt.Sprintf("%s/sensors[%d]", upath, k), Reason: "id is required"}
				}
				spath := upath + "/" + s.ID
				if _, dup := sensorIDs[s.ID]; dup {
					return &SchemaError{Path: spath, Reason: "duplicate sensor id"}
				}
				sensorIDs[s.ID] = struct{}{}
				if err := validateReported(spath, s.Reported); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateReported(path string, levels ...*types.Severity) error {
	for _, l := range levels {
		if l != nil && !l.Valid() {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("reported severity %d out of range", uint8(*l))}
		}
	}
	return nil
}
