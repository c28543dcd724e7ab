// Package cache implements C5: a bounded, thread-safe cache keyed by order
// or execution identity, with terminal-state-first eviction.
package cache

import (
	"container/list"
	"sync"

	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// entry is one cache slot tracked in LRU order via its list.Element.
type entry struct {
	key      string
	event    *model.Event
	terminal bool
}

// Cache is a bounded key -> Event store. On overflow it evicts the
// least-recently-updated entry among terminal-state payloads first, falling
// back to the global least-recently-updated entry when none are terminal
//. A hand-rolled container/list ordering is used rather than a
// generic LRU library because no library in the available stack exposes a
// custom, state-aware eviction predicate (see DESIGN.md).
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	items    map[string]*list.Element // key -> element holding *entry
	order    *list.List               // front = most recently updated
	counters *metrics.Counters
}

// New builds a Cache bounded at maxSize entries.
func New(maxSize int, counters *metrics.Counters) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize:  maxSize,
		items:    make(map[string]*list.Element, maxSize),
		order:    list.New(),
		counters: counters,
	}
}

// Put inserts or updates the entry for key, moving it to the
// most-recently-updated position. If the cache is at capacity and key is
// new, one entry is evicted first.
func (c *Cache) Put(key string, event *model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).event = event
		el.Value.(*entry).terminal = isTerminal(event)
		c.order.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		c.evictLocked()
	}

	el := c.order.PushFront(&entry{key: key, event: event, terminal: isTerminal(event)})
	c.items[key] = el
}

// Get returns the cached event for key, if present.
func (c *Cache) Get(key string) (*model.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).event, true
}

// Snapshot returns every cached event. Order is unspecified.
func (c *Cache) Snapshot() []*model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := make([]*model.Event, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		events = append(events, el.Value.(*entry).event)
	}
	return events
}

// evictLocked removes one entry under the held lock: the
// least-recently-updated terminal entry if one exists, else the overall
// least-recently-updated entry. Never blocks the caller;
// the telemetry counter is incremented synchronously since it is lock-free.
func (c *Cache) evictLocked() {
	victim := c.leastRecentlyUpdatedTerminalLocked()
	if victim == nil {
		victim = c.order.Back()
	}
	if victim == nil {
		return
	}
	c.order.Remove(victim)
	delete(c.items, victim.Value.(*entry).key)
	if c.counters != nil {
		c.counters.CacheEviction()
	}
}

func (c *Cache) leastRecentlyUpdatedTerminalLocked() *list.Element {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if el.Value.(*entry).terminal {
			return el
		}
	}
	return nil
}

func isTerminal(e *model.Event) bool {
	if e == nil || e.Order == nil {
		return false
	}
	return e.Order.State.IsTerminal()
}
