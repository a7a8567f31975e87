package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rackwatch/rackwatch/pkg/types"
	"github.com/rackwatch/rackwatch/pkg/wire"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers fleet snapshots and ships them to rackwatch-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest snapshot is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	endpoint string
	buf      chan *types.FleetSnapshot
	dialFn   dialFunc // injectable for tests

	delivered  atomic.Uint64
	rejected   atomic.Uint64
	superseded atomic.Uint64
	evicted    atomic.Uint64
}

// Stats counts snapshot outcomes since the Shipper was created.
type Stats struct {
	// Delivered snapshots were stored by the server.
	Delivered uint64
	// Rejected snapshots failed evaluation on the server and were discarded.
	Rejected uint64
	// Superseded snapshots were valid but older than the server's current one.
	Superseded uint64
	// Evicted snapshots were dropped from a full buffer before sending.
	Evicted uint64
}

// Stats returns a point-in-time copy of the outcome counters.
func (s *Shipper) Stats() Stats {
	return Stats{
		Delivered:  s.delivered.Load(),
		Rejected:   s.rejected.Load(),
		Superseded: s.superseded.Load(),
		Evicted:    s.evicted.Load(),
	}
}

// dialFunc is the function signature used to open a gRPC connection.
type dialFunc func(ctx context.Context, endpoint string) (*grpc.ClientConn, error)

// New creates a Shipper sending to endpoint, holding at most bufferSize
// undelivered snapshots.
func New(endpoint string, bufferSize int) *Shipper {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Shipper{
		endpoint: endpoint,
		buf:      make(chan *types.FleetSnapshot, bufferSize),
		dialFn:   defaultDial,
	}
}

// Ship enqueues snap. If the buffer is full the oldest entry is evicted to
// make room.
func (s *Shipper) Ship(snap *types.FleetSnapshot) {
	for {
		select {
		case s.buf <- snap:
			return
		default:
		}
		// Buffer full: drop the oldest snapshot, keep the newest.
		select {
		case old := <-s.buf:
			s.evicted.Add(1)
			slog.Warn("shipper: buffer full, evicted oldest snapshot",
				"snapshot", old.ID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Run drains the buffer, sending snapshots to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.endpoint)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.endpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", s.endpoint)
		bo.reset()

		err = s.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.endpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain reads from the buffer and sends snapshots until the connection fails
// or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn) error {
	client := wire.NewSnapshotServiceClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case snap := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			resp, err := client.SendSnapshot(sendCtx, snap)
			cancel()

			if err != nil {
				// The server evaluated and refused the snapshot; resending
				// the same data cannot succeed.
				if isPermanentError(err) {
					s.rejected.Add(1)
					slog.Error("shipper: snapshot rejected, discarding",
						"snapshot", snap.ID, "err", err)
					continue
				}
				// Put the snapshot back if there's room. Otherwise it is
				// superseded by the next cycle's data.
				select {
				case s.buf <- snap:
				default:
				}
				return fmt.Errorf("send: %w", err)
			}

			if !resp.Ok {
				s.superseded.Add(1)
				slog.Warn("shipper: server did not store snapshot",
					"snapshot", snap.ID, "message", resp.Message)
				continue
			}
			s.delivered.Add(1)
			if resp.Warnings > 0 {
				slog.Warn("shipper: server reported consistency warnings",
					"snapshot", snap.ID, "warnings", resp.Warnings)
			}
			slog.Debug("shipper: snapshot delivered",
				"snapshot", snap.ID, "cabinets", len(snap.Enclosures))
		}
	}
}

// isPermanentError returns true for gRPC errors that indicate the snapshot
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// defaultDial opens a plaintext gRPC connection to endpoint.
func defaultDial(ctx context.Context, endpoint string) (*grpc.ClientConn, error) {
	return grpc.DialContext(ctx, endpoint, //nolint:staticcheck // deprecated in 1.63 but DialContext is used for compat
		grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
