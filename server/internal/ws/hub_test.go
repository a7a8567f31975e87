package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/server/internal/store"
	wsHub "github.com/rackwatch/rackwatch/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStore() *store.Store {
	return store.New(5 * time.Minute)
}

// status evaluates a one-cabinet fleet whose probes sit at probeTemp.
func status(t *testing.T, id string, probeTemp float64) *compute.FleetStatus {
	t.Helper()
	engine, err := compute.NewEngine(compute.DefaultTable())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	st, err := engine.Evaluate(&types.FleetSnapshot{
		ID:        id,
		Source:    "test",
		Timestamp: t0,
		Enclosures: []types.Enclosure{{
			ID:          "C01",
			Name:        "Cabinet-1",
			Power:       types.PowerMetrics{Current: 85, Voltage: 220, Power: 18700},
			InputFlow:   types.FlowMetrics{FlowRate: 45, Pressure: 350, FlowSpeed: 1.8, Temperature: 25},
			OutputFlow:  types.FlowMetrics{FlowRate: 44, Pressure: 280, FlowSpeed: 1.7, Temperature: 35},
			Temperature: 28,
			LiquidLevel: 85,
			Units: []types.ComponentUnit{{ID: "S01", Name: "Server-101", Sensors: []types.SensorPoint{
				{ID: "C01-1-1", Name: "probe 1", Temperature: probeTemp},
			}}},
		}},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return st
}

// decodeMessage unmarshals one hub message.
func decodeMessage(t *testing.T, msg []byte) wsHub.Message {
	t.Helper()
	var m wsHub.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, msg)
	}
	return m
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cleanup function.
func startHub(t *testing.T, st *store.Store) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(st, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one text message from conn with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return msg
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	st := newStore()
	st.Put(status(t, "snap-1", 45))
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	msg := readMessage(t, conn)

	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["event"] != "snapshot" {
		t.Errorf("event: got %v, want snapshot", m["event"])
	}
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	if data["generated_at"] == nil || data["generated_at"] == "" {
		t.Error("generated_at: missing")
	}
}

func TestHub_MessageContainsStatus(t *testing.T) {
	st := newStore()
	st.Put(status(t, "snap-1", 68))
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	m := decodeMessage(t, readMessage(t, conn))

	if !m.Data.Available || m.Data.Status == nil {
		t.Fatal("status: missing")
	}
	if m.Data.Status.SnapshotID != "snap-1" {
		t.Errorf("snapshot_id: got %q, want snap-1", m.Data.Status.SnapshotID)
	}
	if m.Data.Status.Severity != types.Critical {
		t.Errorf("severity: got %s, want critical", m.Data.Status.Severity)
	}
}

func TestHub_EmptyStore_Unavailable(t *testing.T) {
	wsURL, _, _ := startHub(t, newStore())
	conn := dial(t, wsURL)
	m := decodeMessage(t, readMessage(t, conn))

	if m.Event != wsHub.EventUnavailable {
		t.Errorf("event: got %q, want unavailable", m.Event)
	}
	if m.Data.Available || m.Data.Status != nil {
		t.Errorf("data: got %+v, want no status", m.Data)
	}
}

func TestHub_CountClients_SingleClient(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume initial message

	// Give the hub a moment to register the client.
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestHub_CountClients_MultipleClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		readMessage(t, conn) // consume initial message
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	st := newStore()
	wsURL, _, _ := startHub(t, st)

	conn := dial(t, wsURL)
	readMessage(t, conn) // consume immediate message (empty store)

	// Store a status after connect.
	st.Put(status(t, "new-snap", 45))

	// A later tick carries the new status. Ticks that fired before the Put
	// still report unavailable, so read until the snapshot arrives.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for tick broadcast: %v", err)
		}
		m := decodeMessage(t, msg)
		if m.Event != wsHub.EventSnapshot {
			continue
		}
		if m.Data.Status.SnapshotID != "new-snap" {
			t.Errorf("snapshot_id: got %q, want new-snap", m.Data.Status.SnapshotID)
		}
		return
	}
}

func TestHub_AllClientsReceiveBroadcast(t *testing.T) {
	st := newStore()
	st.Put(status(t, "snap-1", 45))
	wsURL, _, _ := startHub(t, st)

	conns := make([]*websocket.Conn, 3)
	for i := 0; i < 3; i++ {
		conns[i] = dial(t, wsURL)
	}

	// All three should receive the initial snapshot.
	for i, conn := range conns {
		msg := readMessage(t, conn)
		var m map[string]interface{}
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Errorf("client %d: unmarshal: %v", i, err)
			continue
		}
		if m["event"] != "snapshot" {
			t.Errorf("client %d: event: got %v, want snapshot", i, m["event"])
		}
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newStore())

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel() // signal shutdown

	// After cancel, hub should close all clients.
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newStore(), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers: 400
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_NotifyPushesImmediately(t *testing.T) {
	st := newStore()
	hub := wsHub.New(st, time.Hour) // ticks never fire during the test
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if m := decodeMessage(t, readMessage(t, conn)); m.Event != wsHub.EventUnavailable {
		t.Fatalf("initial event: got %q, want unavailable", m.Event)
	}

	st.Put(status(t, "pushed", 45))
	hub.Notify()

	m := decodeMessage(t, readMessage(t, conn))
	if m.Event != wsHub.EventSnapshot || m.Data.Status.SnapshotID != "pushed" {
		t.Errorf("pushed message: got %q %+v", m.Event, m.Data.Status)
	}
}
