package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/server/internal/receiver"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

// maxIngestBytes caps the body of POST /api/v1/snapshot.
const maxIngestBytes = 8 << 20

// Ingester evaluates and stores an incoming snapshot. *receiver.Receiver
// satisfies it.
type Ingester interface {
	Ingest(snap *types.FleetSnapshot) (*compute.FleetStatus, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads the current fleet status from the store and returns JSON responses.
type Handler struct {
	store      *store.Store
	thresholds compute.Table
	ingester   Ingester // nil disables POST /api/v1/snapshot
	router     chi.Router
}

// New creates a Handler wired to the given store and registers all routes.
// thresholds is served read-only at /api/v1/thresholds. ing may be nil.
func New(st *store.Store, thresholds compute.Table, ing Ingester) http.Handler {
	h := &Handler{store: st, thresholds: thresholds, ingester: ing}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/summary", h.summary)
		r.Get("/cabinets", h.listCabinets)
		r.Get("/cabinets/{id}", h.getCabinet)
		r.Get("/cabinets/{id}/servers/{serverID}", h.getServer)
		r.Get("/warnings", h.warnings)
		r.Get("/thresholds", h.getThresholds)
		r.Get("/snapshot", h.snapshot)
		r.Post("/snapshot", h.ingest)
	})

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: availability, worst severity and counts.
// It answers 200 even when no status is available; once the status has
// expired it still names the last snapshot seen.
func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{State: StateUnavailable}
	if rej, ok := h.store.LastRejection(); ok {
		resp.LastRejection = &RejectionResponse{
			SnapshotID: rej.SnapshotID,
			Source:     rej.Source,
			Reason:     rej.Reason,
			At:         rej.At.UTC().Format(time.RFC3339),
		}
	}

	e, ok := h.store.Current()
	if !ok {
		if last, seen := h.store.Latest(); seen {
			resp.SnapshotID = last.Status.SnapshotID
			resp.LastSnapshot = last.Status.Timestamp.UTC().Format(time.RFC3339)
		}
		jsonResp(w, http.StatusOK, resp)
		return
	}

	st := e.Status
	sev := st.Severity
	resp.State = StateOK
	resp.Severity = &sev
	resp.SnapshotID = st.SnapshotID
	resp.Source = st.Source
	resp.CabinetCount = st.Summary.Enclosures
	resp.ServerCount = st.Summary.Units
	resp.CabinetCounts = st.Summary.EnclosureCounts
	resp.ServerCounts = st.Summary.UnitCounts
	resp.LeakCount = st.Summary.LeakCount
	resp.WarningCount = len(st.Warnings)
	resp.LastSnapshot = st.Timestamp.UTC().Format(time.RFC3339)
	jsonResp(w, http.StatusOK, resp)
}

// summary returns GET /api/v1/summary: fleet severity and tallies.
func (h *Handler) summary(w http.ResponseWriter, _ *http.Request) {
	st, ok := h.current(w)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, SummaryResponse{Severity: st.Severity, Summary: st.Summary})
}

// listCabinets returns GET /api/v1/cabinets in snapshot order.
func (h *Handler) listCabinets(w http.ResponseWriter, _ *http.Request) {
	st, ok := h.current(w)
	if !ok {
		return
	}
	out := make([]CabinetSummary, 0, len(st.Enclosures))
	for _, e := range st.Enclosures {
		out = append(out, toCabinetSummary(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// getCabinet returns GET /api/v1/cabinets/{id} with diagnostics.
func (h *Handler) getCabinet(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	e, ok := st.Enclosure(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("cabinet %q not found", id))
		return
	}
	jsonResp(w, http.StatusOK, CabinetResponse{
		EnclosureStatus: e,
		Diagnostics:     computeDiagnostics(e, st.Warnings),
	})
}

// getServer returns GET /api/v1/cabinets/{id}/servers/{serverID}.
func (h *Handler) getServer(w http.ResponseWriter, r *http.Request) {
	st, ok := h.current(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	e, ok := st.Enclosure(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("cabinet %q not found", id))
		return
	}
	serverID := chi.URLParam(r, "serverID")
	u, ok := e.Unit(serverID)
	if !ok {
		jsonErr(w, http.StatusNotFound, fmt.Sprintf("server %q not found in cabinet %q", serverID, id))
		return
	}
	jsonResp(w, http.StatusOK, ServerResponse{CabinetID: e.ID, UnitStatus: u})
}

// warnings returns GET /api/v1/warnings: consistency warnings of the current
// status. Always an array, never null.
func (h *Handler) warnings(w http.ResponseWriter, _ *http.Request) {
	st, ok := h.current(w)
	if !ok {
		return
	}
	out := st.Warnings
	if out == nil {
		out = []compute.ConsistencyWarning{}
	}
	jsonResp(w, http.StatusOK, out)
}

// getThresholds returns GET /api/v1/thresholds: the table in effect.
func (h *Handler) getThresholds(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.thresholds)
}

// snapshot returns GET /api/v1/snapshot: the full current FleetStatus.
func (h *Handler) snapshot(w http.ResponseWriter, _ *http.Request) {
	resp := BuildSnapshot(h.store)
	if !resp.Available {
		jsonResp(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// ingest handles POST /api/v1/snapshot. A snapshot the engine refuses is
// answered with 422, an out-of-order one with 409.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if h.ingester == nil {
		jsonErr(w, http.StatusNotImplemented, "ingest disabled")
		return
	}

	var snap types.FleetSnapshot
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err := dec.Decode(&snap); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	st, err := h.ingester.Ingest(&snap)
	switch {
	case errors.Is(err, receiver.ErrOutOfOrder):
		resp := IngestResponse{SnapshotID: snap.ID, Error: err.Error()}
		if st != nil {
			resp.SnapshotID = st.SnapshotID
			resp.Warnings = len(st.Warnings)
		}
		jsonResp(w, http.StatusConflict, resp)
		return
	case err != nil:
		jsonResp(w, http.StatusUnprocessableEntity, IngestResponse{
			SnapshotID: snap.ID,
			Error:      err.Error(),
		})
		return
	}

	sev := st.Severity
	jsonResp(w, http.StatusOK, IngestResponse{
		Ok:         true,
		SnapshotID: st.SnapshotID,
		Severity:   &sev,
		Warnings:   len(st.Warnings),
	})
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot assembles the snapshot payload from the store's current
// status. Available is false when there is none or it has expired.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	resp := SnapshotResponse{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	e, ok := st.Current()
	if !ok {
		return resp
	}
	resp.Available = true
	resp.Status = e.Status
	resp.ReceivedAt = e.UpdatedAt.UTC().Format(time.RFC3339)
	return resp
}

// current returns the live status or writes 503 and returns false.
func (h *Handler) current(w http.ResponseWriter) (*compute.FleetStatus, bool) {
	e, ok := h.store.Current()
	if !ok {
		jsonErr(w, http.StatusServiceUnavailable, "no current fleet status")
		return nil, false
	}
	return e.Status, true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toCabinetSummary(e compute.EnclosureStatus) CabinetSummary {
	var counts compute.Counts
	for _, u := range e.Units {
		counts.Add(u.Severity)
	}
	return CabinetSummary{
		ID:          e.ID,
		Name:        e.Name,
		Severity:    e.Severity,
		Leak:        e.Leak,
		ServerCount: len(e.Units),
		Servers:     counts,
	}
}
