// Package metrics provides lightweight, lock-free telemetry counters for
// the streaming engine's non-fatal error paths (overflow, poison messages,
// cache eviction). This is not a full metrics pipeline: the counters are
// read through Counters.Snapshot, and nothing in the service logs or serves
// them on a schedule.
package metrics

import "sync/atomic"

// Counters aggregates the handful of non-fatal event counters the engine
// exposes. All fields are accessed atomically so any component can bump
// them without coordination.
type Counters struct {
	overflowDrops  atomic.Int64
	poisonMessages atomic.Int64
	cacheEvictions atomic.Int64
}

// New returns a zeroed Counters instance.
func New() *Counters {
	return &Counters{}
}

// OverflowDrop records n dropped events for a slow subscriber on topic/sub.
// The topic/sub identifiers are accepted for future per-subscriber
// breakdown but are not yet exported per-label; only the aggregate is kept.
func (c *Counters) OverflowDrop(topic any, subscriberID string, n int64) {
	if c == nil {
		return
	}
	c.overflowDrops.Add(n)
}

// PoisonMessage records one record that failed to decode.
func (c *Counters) PoisonMessage() {
	if c == nil {
		return
	}
	c.poisonMessages.Add(1)
}

// CacheEviction records one cache eviction.
func (c *Counters) CacheEviction() {
	if c == nil {
		return
	}
	c.cacheEvictions.Add(1)
}

// Snapshot returns the current counter values for logging/health reporting.
func (c *Counters) Snapshot() (overflowDrops, poisonMessages, cacheEvictions int64) {
	if c == nil {
		return 0, 0, 0
	}
	return c.overflowDrops.Load(), c.poisonMessages.Load(), c.cacheEvictions.Load()
}
