package api

import (
	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// Health states.
const (
	StateOK          = "ok"
	StateUnavailable = "unavailable"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State         string             `json:"state"`
	Severity      *types.Severity    `json:"severity,omitempty"`
	SnapshotID    string             `json:"snapshot_id,omitempty"`
	Source        string             `json:"source,omitempty"`
	CabinetCount  int                `json:"cabinet_count"`
	ServerCount   int                `json:"server_count"`
	CabinetCounts compute.Counts     `json:"cabinet_counts"`
	ServerCounts  compute.Counts     `json:"server_counts"`
	LeakCount     int                `json:"leak_count"`
	WarningCount  int                `json:"warning_count"`
	LastSnapshot  string             `json:"last_snapshot,omitempty"` // RFC3339
	LastRejection *RejectionResponse `json:"last_rejection,omitempty"`
}

// RejectionResponse describes the most recent snapshot the server refused.
type RejectionResponse struct {
	SnapshotID string `json:"snapshot_id"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
	At         string `json:"at"` // RFC3339
}

// SummaryResponse is the payload for GET /api/v1/summary.
type SummaryResponse struct {
	Severity types.Severity `json:"severity"`
	compute.Summary
}

// CabinetSummary is one entry in GET /api/v1/cabinets.
type CabinetSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Severity    types.Severity `json:"severity"`
	Leak        bool           `json:"leak"`
	ServerCount int            `json:"server_count"`
	Servers     compute.Counts `json:"servers"`
}

// CabinetResponse is the payload for GET /api/v1/cabinets/{id}: the full
// evaluated cabinet plus diagnostic hints.
type CabinetResponse struct {
	compute.EnclosureStatus
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// ServerResponse is the payload for GET /api/v1/cabinets/{id}/servers/{serverID}.
type ServerResponse struct {
	CabinetID string `json:"cabinet_id"`
	compute.UnitStatus
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Available   bool                 `json:"available"`
	Status      *compute.FleetStatus `json:"status,omitempty"`
	ReceivedAt  string               `json:"received_at,omitempty"` // RFC3339
	GeneratedAt string               `json:"generated_at"`          // RFC3339
}

// IngestResponse is the payload for POST /api/v1/snapshot.
type IngestResponse struct {
	Ok         bool            `json:"ok"`
	SnapshotID string          `json:"snapshot_id,omitempty"`
	Severity   *types.Severity `json:"severity,omitempty"`
	Warnings   int             `json:"warnings"`
	Error      string          `json:"error,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
