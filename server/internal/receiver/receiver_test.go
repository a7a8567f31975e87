package receiver_test

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/pkg/wire"
	"github.com/rackwatch/rackwatch/server/internal/metrics"
	"github.com/rackwatch/rackwatch/server/internal/receiver"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newReceiver(t *testing.T) (*receiver.Receiver, *store.Store) {
	t.Helper()
	engine, err := compute.NewEngine(compute.DefaultTable())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st := store.New(5 * time.Minute)
	return receiver.New(engine, st, metrics.New(st)), st
}

// startServer starts a gRPC server with the logging interceptor and returns a
// connected client. Uses a random TCP port.
func startServer(t *testing.T) (wire.SnapshotServiceClient, *store.Store) {
	t.Helper()

	rec, st := newReceiver(t)

	srv := grpc.NewServer(grpc.UnaryInterceptor(receiver.LoggingInterceptor()))
	wire.RegisterSnapshotServiceServer(srv, rec)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.Dial(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	) //nolint:staticcheck
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return wire.NewSnapshotServiceClient(conn), st
}

func cabinet(id string) types.Enclosure {
	return types.Enclosure{
		ID:          id,
		Name:        "Cabinet " + id,
		Power:       types.PowerMetrics{Current: 85, Voltage: 220, Power: 18700},
		InputFlow:   types.FlowMetrics{FlowRate: 45, Pressure: 350, FlowSpeed: 1.8, Temperature: 25},
		OutputFlow:  types.FlowMetrics{FlowRate: 44, Pressure: 280, FlowSpeed: 1.7, Temperature: 35},
		Temperature: 28,
		LiquidLevel: 85,
		Units: []types.ComponentUnit{
			{ID: "S01", Name: "Server-101", Sensors: []types.SensorPoint{
				{ID: id + "-1-1", Name: "probe 1", Temperature: 45},
				{ID: id + "-1-2", Name: "probe 2", Temperature: 46},
			}},
		},
	}
}

func snapshot(id string, ts time.Time, encs ...types.Enclosure) *types.FleetSnapshot {
	return &types.FleetSnapshot{ID: id, Source: "test", Timestamp: ts, Enclosures: encs}
}

func TestSendSnapshot_StoresStatus(t *testing.T) {
	client, st := startServer(t)

	enc := cabinet("C01")
	enc.Units[0].Sensors[1].Temperature = 68

	resp, err := client.SendSnapshot(context.Background(), snapshot("snap-1", t0, enc, cabinet("C02")))
	if err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	if !resp.Ok {
		t.Errorf("Ok: got false, want true (%s)", resp.Message)
	}

	e, ok := st.Current()
	if !ok {
		t.Fatal("store.Current: expected entry, got none")
	}
	if e.Status.SnapshotID != "snap-1" {
		t.Errorf("SnapshotID: got %q, want snap-1", e.Status.SnapshotID)
	}
	if e.Status.Severity != types.Critical {
		t.Errorf("Severity: got %s, want critical", e.Status.Severity)
	}
	if n := e.Status.Summary.Enclosures; n != 2 {
		t.Errorf("Summary.Enclosures: got %d, want 2", n)
	}
}

func TestSendSnapshot_InvalidReading_InvalidArgument(t *testing.T) {
	client, st := startServer(t)

	ctx := context.Background()
	if _, err := client.SendSnapshot(ctx, snapshot("good", t0, cabinet("C01"))); err != nil {
		t.Fatalf("SendSnapshot good: %v", err)
	}

	// The JSON codec cannot carry NaN, so an empty fleet stands in for a
	// snapshot the engine refuses.
	_, err := client.SendSnapshot(ctx, snapshot("bad", t0.Add(time.Minute)))
	if code := status.Code(err); code != codes.InvalidArgument {
		t.Fatalf("code: got %v, want InvalidArgument", code)
	}

	e, ok := st.Current()
	if !ok || e.Status.SnapshotID != "good" {
		t.Errorf("last-known-good status was replaced: %+v", e)
	}
	rej, ok := st.LastRejection()
	if !ok {
		t.Fatal("LastRejection: expected entry, got none")
	}
	if rej.SnapshotID != "bad" || rej.Source != "test" {
		t.Errorf("rejection: got %+v", rej)
	}
}

func TestSendSnapshot_WarningsCounted(t *testing.T) {
	client, st := startServer(t)

	enc := cabinet("C01")
	enc.Units[0].Reported = types.Ptr(types.Critical)
	enc.Power.Reported = types.Ptr(types.Warning)

	resp, err := client.SendSnapshot(context.Background(), snapshot("snap-1", t0, enc))
	if err != nil {
		t.Fatalf("SendSnapshot: %v", err)
	}
	if !resp.Ok {
		t.Fatalf("Ok: got false, want true")
	}
	if resp.Warnings != 2 {
		t.Errorf("Warnings: got %d, want 2", resp.Warnings)
	}

	e, _ := st.Current()
	if e.Status.Severity != types.Normal {
		t.Errorf("Severity: got %s, want normal; advisory values must not win", e.Status.Severity)
	}
}

func TestSendSnapshot_OutOfOrder(t *testing.T) {
	client, st := startServer(t)
	ctx := context.Background()

	if _, err := client.SendSnapshot(ctx, snapshot("new", t0.Add(time.Minute), cabinet("C01"))); err != nil {
		t.Fatalf("SendSnapshot new: %v", err)
	}
	resp, err := client.SendSnapshot(ctx, snapshot("old", t0, cabinet("C01")))
	if err != nil {
		t.Fatalf("SendSnapshot old: %v", err)
	}
	if resp.Ok {
		t.Error("Ok: got true for an out-of-order snapshot, want false")
	}
	if resp.Message == "" {
		t.Error("Message: want an explanation")
	}

	e, _ := st.Current()
	if e.Status.SnapshotID != "new" {
		t.Errorf("SnapshotID: got %q, want new", e.Status.SnapshotID)
	}
}

func TestIngest_AssignsID(t *testing.T) {
	rec, st := newReceiver(t)

	snap := snapshot("", t0, cabinet("C01"))
	got, err := rec.Ingest(snap)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got.SnapshotID == "" {
		t.Fatal("SnapshotID: got empty, want generated id")
	}
	if snap.ID != "" {
		t.Errorf("caller's snapshot ID changed to %q", snap.ID)
	}
	if e, ok := st.Current(); !ok || e.Status.SnapshotID != got.SnapshotID {
		t.Errorf("stored status does not carry the generated id %q", got.SnapshotID)
	}
}

func TestIngest_RejectedWithoutIDLeavesInputUntouched(t *testing.T) {
	rec, st := newReceiver(t)

	enc := cabinet("C01")
	enc.LiquidLevel = math.NaN()
	snap := snapshot("", t0, enc)

	if _, err := rec.Ingest(snap); err == nil {
		t.Fatal("Ingest: expected error for NaN reading")
	}
	if snap.ID != "" {
		t.Errorf("caller's snapshot ID changed to %q", snap.ID)
	}
	rej, ok := st.LastRejection()
	if !ok || rej.SnapshotID == "" {
		t.Errorf("rejection should record the generated id, got %+v", rej)
	}
}

func TestIngest_InvalidReading(t *testing.T) {
	rec, st := newReceiver(t)

	enc := cabinet("C01")
	enc.LiquidLevel = math.NaN()

	_, err := rec.Ingest(snapshot("nan", t0, enc))
	var inv *compute.InvalidReadingError
	if !errors.As(err, &inv) {
		t.Fatalf("err: got %v, want InvalidReadingError", err)
	}
	if _, ok := st.Current(); ok {
		t.Error("Current: rejected snapshot must not be stored")
	}
}

func TestIngest_NilSnapshot(t *testing.T) {
	rec, st := newReceiver(t)

	if _, err := rec.Ingest(nil); err == nil {
		t.Fatal("Ingest(nil): expected error, got nil")
	}
	if _, ok := st.LastRejection(); !ok {
		t.Error("LastRejection: expected entry for nil snapshot")
	}
}

func TestIngest_OutOfOrderSentinel(t *testing.T) {
	rec, _ := newReceiver(t)

	if _, err := rec.Ingest(snapshot("b", t0.Add(time.Second), cabinet("C01"))); err != nil {
		t.Fatalf("Ingest b: %v", err)
	}
	got, err := rec.Ingest(snapshot("a", t0, cabinet("C01")))
	if !errors.Is(err, receiver.ErrOutOfOrder) {
		t.Fatalf("err: got %v, want ErrOutOfOrder", err)
	}
	if got == nil || got.SnapshotID != "a" {
		t.Errorf("status: got %+v, want evaluated snapshot a", got)
	}
}

func TestNew_NilMetrics(t *testing.T) {
	engine, err := compute.NewEngine(compute.DefaultTable())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rec := receiver.New(engine, store.New(0), nil)

	if _, err := rec.Ingest(snapshot("x", t0, cabinet("C01"))); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := rec.Ingest(snapshot("y", t0)); err == nil {
		t.Fatal("Ingest empty: expected error")
	}
}

func TestIngest_OnAccept(t *testing.T) {
	rec, _ := newReceiver(t)

	var got []string
	rec.OnAccept(func(st *compute.FleetStatus) { got = append(got, st.SnapshotID) })

	rec.Ingest(snapshot("a", t0.Add(time.Second), cabinet("C01"))) //nolint:errcheck
	rec.Ingest(snapshot("old", t0, cabinet("C01")))                //nolint:errcheck
	rec.Ingest(snapshot("empty", t0.Add(time.Minute)))             //nolint:errcheck

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("OnAccept calls: got %v, want [a]", got)
	}
}
