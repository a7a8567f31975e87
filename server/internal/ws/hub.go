package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rackwatch/rackwatch/server/internal/api"
	"github.com/rackwatch/rackwatch/server/internal/store"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pingEvery must stay below pongWait.
	pingEvery = pongWait * 9 / 10

	// queueDepth is how many undelivered messages a client may hold before
	// the hub drops it.
	queueDepth = 16

	// maxInbound caps client frames; clients only send control frames.
	maxInbound = 512
)

// Broadcast event names.
const (
	EventSnapshot    = "snapshot"
	EventUnavailable = "unavailable"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	// Origin checks are left to the reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients. Event is EventUnavailable
// when the server holds no live fleet status.
type Message struct {
	Event string               `json:"event"`
	Data  api.SnapshotResponse `json:"data"`
}

// Hub pushes the current fleet status to every connected dashboard, on a
// fixed interval and whenever Notify is called.
type Hub struct {
	store    *store.Store
	interval time.Duration
	wake     chan struct{}

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

type peer struct {
	ws     *websocket.Conn
	queue  chan []byte
	remote string
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		wake:     make(chan struct{}, 1),
		peers:    make(map[*peer]struct{}),
	}
}

// Notify requests an immediate broadcast. It never blocks; several calls
// between two broadcasts collapse into one.
func (h *Hub) Notify() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run broadcasts until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.disconnectAll()
			return
		case <-tick.C:
		case <-h.wake:
		}
		h.publish()
	}
}

// ServeHTTP upgrades the request to a WebSocket, queues the current status
// for the new client and then serves it until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already answered the request.
		return
	}

	p := &peer{ws: ws, queue: make(chan []byte, queueDepth), remote: r.RemoteAddr}

	// Queued before the peer is visible to publish, so the first message a
	// client reads is always the current status.
	if msg, err := h.encode(); err == nil {
		p.queue <- msg
	}

	h.add(p)
	defer h.remove(p)
	slog.Debug("ws: client connected", "remote", p.remote, "clients", h.Count())

	go p.writeLoop()
	p.readLoop()
	slog.Debug("ws: client disconnected", "remote", p.remote)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

// remove closes p's queue once; later calls are no-ops.
func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.queue)
	}
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		delete(h.peers, p)
		close(p.queue)
	}
}

// publish encodes the status once and offers it to every client. Queues are
// written under the read lock so remove cannot close one mid-send.
func (h *Hub) publish() {
	msg, err := h.encode()
	if err != nil {
		slog.Error("ws: encode status", "err", err)
		return
	}

	var full []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.queue <- msg:
		default:
			full = append(full, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range full {
		slog.Warn("ws: dropping slow client", "remote", p.remote)
		h.remove(p)
	}
}

func (h *Hub) encode() ([]byte, error) {
	data := api.BuildSnapshot(h.store)
	event := EventSnapshot
	if !data.Available {
		event = EventUnavailable
	}
	return json.Marshal(Message{Event: event, Data: data})
}

// writeLoop forwards queued messages and pings until the queue is closed or a
// write fails.
func (p *peer) writeLoop() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		p.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-p.queue:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				p.ws.WriteMessage(websocket.CloseMessage, //nolint:errcheck
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := p.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes control frames and returns when the peer goes away or
// stops answering pings.
func (p *peer) readLoop() {
	defer p.ws.Close()
	p.ws.SetReadLimit(maxInbound)
	p.ws.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := p.ws.ReadMessage(); err != nil {
			return
		}
	}
}
