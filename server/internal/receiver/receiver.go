package receiver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/pkg/wire"
	"github.com/rackwatch/rackwatch/server/internal/metrics"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

// ErrOutOfOrder is returned when a snapshot is older than the current status.
// The snapshot was valid but is not stored.
var ErrOutOfOrder = errors.New("receiver: snapshot is older than the current status")

// Receiver implements wire.SnapshotServiceServer.
type Receiver struct {
	engine  *compute.Engine
	store   *store.Store
	metrics *metrics.Metrics // may be nil
	newID   func() string

	onAccept func(*compute.FleetStatus)
}

// New creates a Receiver that evaluates snapshots with engine and writes the
// results to st. m may be nil.
func New(engine *compute.Engine, st *store.Store, m *metrics.Metrics) *Receiver {
	return &Receiver{
		engine:  engine,
		store:   st,
		metrics: m,
		newID:   uuid.NewString,
	}
}

// OnAccept registers fn to run after every status that becomes current.
// It must be set before the receiver starts serving.
func (r *Receiver) OnAccept(fn func(*compute.FleetStatus)) {
	r.onAccept = fn
}

// Ingest evaluates snap and, on success, makes it the current status.
// A snapshot without an ID is assigned one on a shallow copy; snap itself is
// never modified.
func (r *Receiver) Ingest(snap *types.FleetSnapshot) (*compute.FleetStatus, error) {
	if snap != nil && snap.ID == "" {
		cp := *snap
		cp.ID = r.newID()
		snap = &cp
	}

	st, err := r.engine.Evaluate(snap)
	if err != nil {
		var id, source string
		if snap != nil {
			id, source = snap.ID, snap.Source
		}
		r.store.Reject(id, source, err)
		if r.metrics != nil {
			r.metrics.Rejected(err)
		}
		slog.Warn("receiver: snapshot rejected",
			"snapshot", id, "source", source, "err", err)
		return nil, err
	}

	for _, w := range st.Warnings {
		slog.Warn("receiver: consistency warning",
			"snapshot", st.SnapshotID,
			"path", w.Path,
			"entity", w.Entity,
			"reported", w.Reported.String(),
			"computed", w.Computed.String())
	}
	if !r.store.Put(st) {
		slog.Info("receiver: ignored out-of-order snapshot",
			"snapshot", st.SnapshotID, "timestamp", st.Timestamp)
		return st, ErrOutOfOrder
	}
	if r.metrics != nil {
		r.metrics.Accepted(st)
	}
	if r.onAccept != nil {
		r.onAccept(st)
	}

	slog.Debug("receiver: fleet status updated",
		"snapshot", st.SnapshotID,
		"source", st.Source,
		"severity", st.Severity.String(),
		"cabinets", st.Summary.Enclosures,
		"leaks", st.Summary.LeakCount,
	)
	return st, nil
}

// SendSnapshot is the unary RPC handler called by rackwatch-agent instances.
func (r *Receiver) SendSnapshot(_ context.Context, snap *types.FleetSnapshot) (*wire.SendResponse, error) {
	st, err := r.Ingest(snap)
	switch {
	case errors.Is(err, ErrOutOfOrder):
		return &wire.SendResponse{Ok: false, Message: err.Error(), Warnings: len(st.Warnings)}, nil
	case err != nil:
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return &wire.SendResponse{Ok: true, Warnings: len(st.Warnings)}, nil
}
