// Package store holds the server's current fleet status in memory.
//
// The store keeps exactly one accepted FleetStatus, the last-known-good one.
// A rejected snapshot never replaces it; the rejection is recorded separately
// so the API can surface it. The status is considered current for the
// configured TTL after it was received; a background goroutine (Run) evicts
// it once the TTL has elapsed without a newer snapshot. Latest still returns
// an evicted status so the API can report when data was last seen.
package store
