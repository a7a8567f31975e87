// Package api implements the HTTP REST API for rackwatch-server.
//
// New(store, thresholds, ingester) returns a chi-routed http.Handler that
// serves:
//
//	GET  /api/v1/health                              availability, worst severity, counts, last rejection
//	GET  /api/v1/summary                             fleet severity and tallies
//	GET  /api/v1/cabinets                            one CabinetSummary per cabinet
//	GET  /api/v1/cabinets/{id}                       full cabinet status plus diagnostics
//	GET  /api/v1/cabinets/{id}/servers/{serverID}    one server and its probes
//	GET  /api/v1/warnings                            consistency warnings
//	GET  /api/v1/thresholds                          the threshold table in effect
//	GET  /api/v1/snapshot                            full FleetStatus; 503 when unavailable
//	POST /api/v1/snapshot                            JSON ingest; 422 on rejection, 409 if out of order
//
// Every read endpoint except health and thresholds answers 503 when the store
// holds no live status. Responses are application/json; errors use
// {"error": "..."}. JSON types are defined in types.go.
package api
