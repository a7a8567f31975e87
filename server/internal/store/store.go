package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rackwatch/rackwatch/pkg/compute"
)

// Entry is a fleet status together with the time it was received.
type Entry struct {
	Status    *compute.FleetStatus
	UpdatedAt time.Time
}

// Rejection describes the most recent snapshot the engine refused.
type Rejection struct {
	SnapshotID string
	Source     string
	Reason     string
	At         time.Time
}

// Store is a thread-safe holder of the last accepted fleet status.
type Store struct {
	mu        sync.RWMutex
	current   *Entry // cleared by Evict
	latest    *Entry // last accepted status, survives eviction
	rejection *Rejection
	ttl       time.Duration    // zero disables expiry
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the configured status lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put replaces the current status with st. A status whose snapshot timestamp
// is older than the last accepted one is ignored and Put returns false, even
// when that one has since expired.
// Callers must not modify st after calling Put.
func (s *Store) Put(st *compute.FleetStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil && st.Timestamp.Before(s.latest.Status.Timestamp) {
		return false
	}
	s.current = &Entry{Status: st, UpdatedAt: s.now()}
	s.latest = s.current
	return true
}

// Reject records a refused snapshot. The current status is left untouched.
func (s *Store) Reject(snapshotID, source string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejection = &Rejection{
		SnapshotID: snapshotID,
		Source:     source,
		Reason:     err.Error(),
		At:         s.now(),
	}
}

// Current returns the status if one was received within the TTL.
func (s *Store) Current() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.stale(s.current, s.now()) {
		return nil, false
	}
	return s.current, true
}

// Latest returns the last accepted status even after it expired or was
// evicted. Callers must check Current before serving it as live data.
func (s *Store) Latest() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// LastRejection returns the most recent rejection, if any.
func (s *Store) LastRejection() (*Rejection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rejection, s.rejection != nil
}

// Evict drops the current status if it is older than now minus TTL.
// Latest keeps returning it.
// It returns the number of entries removed (0 or 1).
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.stale(s.current, now) {
		return 0
	}
	s.current = nil
	return 1
}

func (s *Store) stale(e *Entry, now time.Time) bool {
	return s.ttl > 0 && !e.UpdatedAt.After(now.Add(-s.ttl))
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Warn("store: fleet status expired, no snapshot within ttl", "ttl", s.ttl)
			}
		}
	}
}
