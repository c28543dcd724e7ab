// Package ingest implements C4: the event ingestor and its hot broadcast
// hub. The hub replays a bounded per-topic window to newly attached
// subscribers before handing them live events, which is what makes the
// subscription engine's snapshot->live handoff race-free.
package ingest

import (
	"sync"
	"sync/atomic"

	"github.com/golang/snappy"

	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// Topic identifies one of the ingested upstream streams.
type Topic string

const (
	TopicOrders     Topic = "orders"
	TopicExecutions Topic = "executions"
)

// ring is a fixed-capacity, snappy-compressed replay buffer. Compression
// trades CPU for memory headroom on the hot path's only unbounded-seeming
// resource; events are small and decode cheaply.
type ring struct {
	capacity int
	entries  [][]byte
	next     int
	full     bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{capacity: capacity, entries: make([][]byte, capacity)}
}

func (r *ring) push(e *model.Event) {
	encoded, err := encodeEvent(e)
	if err != nil {
		// A replay entry that cannot round-trip is dropped rather than
		// corrupting the ring; live delivery to attached subscribers still
		// happens via the uncompressed path in Hub.Publish.
		return
	}
	r.entries[r.next] = snappy.Encode(nil, encoded)
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns the ring's current contents in publish order.
func (r *ring) snapshot() []*model.Event {
	var ordered [][]byte
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
		ordered = append(ordered, r.entries[:r.next]...)
	} else {
		ordered = append(ordered, r.entries[:r.next]...)
	}

	events := make([]*model.Event, 0, len(ordered))
	for _, compressed := range ordered {
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			continue
		}
		e, err := decodeEvent(raw)
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events
}

// subscriber is one attached consumer's bounded inbox.
type subscriber struct {
	id      string
	inbox   chan *model.Event
	closed  bool
	dropped atomic.Int64
}

// Hub is the multi-subscriber broadcast point for one topic. Each
// subscriber has its own bounded inbox; a slow subscriber never slows the
// ingestor or other subscribers.
type Hub struct {
	mu            sync.Mutex
	topic         Topic
	buffer        *ring
	inboxCapacity int
	subscribers   map[string]*subscriber
	counters      *metrics.Counters
}

// NewHub builds a Hub with the given replay capacity and per-subscriber
// inbox capacity.
func NewHub(topic Topic, replayCapacity, inboxCapacity int, counters *metrics.Counters) *Hub {
	return &Hub{
		topic:         topic,
		buffer:        newRing(replayCapacity),
		inboxCapacity: inboxCapacity,
		subscribers:   make(map[string]*subscriber),
		counters:      counters,
	}
}

// Attachment is the handle a subscription engine (C6) holds on the hub.
type Attachment struct {
	hub *Hub
	sub *subscriber
}

// Inbox exposes the per-subscriber channel. The channel already contains the
// replayed buffer window, delivered before any live event.
func (a *Attachment) Inbox() <-chan *model.Event {
	return a.sub.inbox
}

// DrainOverflowCount returns the number of events dropped for this
// subscriber since the last call and resets the counter to zero, letting a
// caller surface OVERFLOW_DROP{n} warnings.
func (a *Attachment) DrainOverflowCount() int64 {
	return a.sub.dropped.Swap(0)
}

// Detach removes the subscriber from the hub; idempotent.
func (a *Attachment) Detach() {
	a.hub.detach(a.sub.id)
}

// Attach registers a new subscriber and immediately replays the hub's
// buffered window into its inbox before returning. Attaching must happen
// before the snapshot fetch begins — this function enforces
// that ordering by performing the replay synchronously, under the same lock
// that serializes against concurrent Publish calls.
func (h *Hub) Attach(id string) *Attachment {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{id: id, inbox: make(chan *model.Event, h.inboxCapacity)}
	for _, e := range h.buffer.snapshot() {
		sub.inbox <- e.Clone()
	}
	h.subscribers[id] = sub
	return &Attachment{hub: h, sub: sub}
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[id]
	if !ok || sub.closed {
		return
	}
	sub.closed = true
	close(sub.inbox)
	delete(h.subscribers, id)
}

// Publish appends e to the replay buffer and fans it out to every attached
// subscriber. A full inbox drops its oldest entry to make room (DROP_OLDEST)
// rather than block the ingestor.
func (h *Hub) Publish(e *model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffer.push(e)
	for _, sub := range h.subscribers {
		h.deliverLocked(sub, e)
	}
}

func (h *Hub) deliverLocked(sub *subscriber, e *model.Event) {
	select {
	case sub.inbox <- e.Clone():
		return
	default:
	}

	// Inbox full: drop the oldest queued event and retry once.
	select {
	case <-sub.inbox:
		sub.dropped.Add(1)
		if h.counters != nil {
			h.counters.OverflowDrop(h.topic, sub.id, 1)
		}
	default:
	}

	select {
	case sub.inbox <- e.Clone():
	default:
		sub.dropped.Add(1)
		if h.counters != nil {
			h.counters.OverflowDrop(h.topic, sub.id, 1)
		}
	}
}
