// Package subscription implements C6: the engine that turns a compiled
// filter, a hub attachment, and a cached snapshot sequence into a single
// deduplicated event stream for one client.
package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/ingest"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// Phase is the subscription's place in the snapshot-then-live lifecycle.
type Phase int

const (
	PhaseSnapshot Phase = iota
	PhaseLive
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseSnapshot:
		return "SNAPSHOT"
	case PhaseLive:
		return "LIVE"
	case PhaseClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SnapshotSource fetches the cached, at-most-once snapshot sequence for a
// subscription (the C3 contract, wrapped so C6 need not know about HTTP).
type SnapshotSource interface {
	Events() ([]*model.Event, error)
}

// InvalidFilter mirrors filter.InvalidFilterError for clients that only
// import this package.
type InvalidFilter struct {
	Field  string
	Reason string
}

func (e *InvalidFilter) Error() string { return "invalid filter: " + e.Field + ": " + e.Reason }

// SnapshotFailed is surfaced verbatim from C3 when the snapshot sequence
// aborts.
type SnapshotFailed struct {
	Cause error
}

func (e *SnapshotFailed) Error() string { return "snapshot failed: " + e.Cause.Error() }
func (e *SnapshotFailed) Unwrap() error { return e.Cause }

// OverflowDrop is a non-fatal warning emitted when the hub had to drop
// events for this subscription's inbox before they reached the engine.
type OverflowDrop struct {
	N int
}

func (e *OverflowDrop) Error() string { return "overflow: dropped events" }

// EventStream is what OpenSubscription hands back: a channel of events and
// a channel of terminal/non-fatal errors, plus a Close for client-driven
// cancellation.
type EventStream struct {
	ID     string
	Events <-chan *model.Event
	Errors <-chan error

	cancel context.CancelFunc
	once   sync.Once
}

// Close cancels the subscription; idempotent.
func (s *EventStream) Close() {
	s.once.Do(func() {
		s.cancel()
	})
}

// Engine wires together the registry (C2), the hub (C4), and a snapshot
// fetcher (C3) to service OpenSubscription calls.
type Engine struct {
	registry      *accessor.Registry
	hub           *ingest.Hub
	snapshotGrace time.Duration
	log           *logging.Logger
}

// New builds an Engine for one route (orders or executions); the blotter
// route multiplexes two Engines (see blotter.go).
func New(registry *accessor.Registry, hub *ingest.Hub, snapshotGrace time.Duration, log *logging.Logger) *Engine {
	return &Engine{registry: registry, hub: hub, snapshotGrace: snapshotGrace, log: log}
}

// OpenSubscription opens a subscription: it attaches to the hub (which
// replays its buffered window into the inbox), emits the snapshot (if
// requested), then hands off to live publication, dropping live events whose
// id appeared in the snapshot. demandCh, when non-nil, gates both snapshot
// and live emission on transport-level backpressure: the engine
// only emits once a value (of any kind) has been received on it, consuming
// exactly one credit per emitted event. A nil demandCh means unlimited demand.
func (e *Engine) OpenSubscription(ctx context.Context, filterPayload filter.Payload, fetchSnapshot func() SnapshotSource, demandCh <-chan struct{}) *EventStream {
	return e.openSubscription(ctx, e.registry, filterPayload, fetchSnapshot, demandCh)
}

// OpenSubscriptionWithRegistry is OpenSubscription with the compile-time
// field registry overridden. The blotter route uses this to validate a
// filter against the merged order+execution field set, since a single
// blotter subscription reads from both engines and a field valid for only
// one payload kind must not be rejected as unknown on the other.
func (e *Engine) OpenSubscriptionWithRegistry(ctx context.Context, registry *accessor.Registry, filterPayload filter.Payload, fetchSnapshot func() SnapshotSource, demandCh <-chan struct{}) *EventStream {
	return e.openSubscription(ctx, registry, filterPayload, fetchSnapshot, demandCh)
}

func (e *Engine) openSubscription(ctx context.Context, registry *accessor.Registry, filterPayload filter.Payload, fetchSnapshot func() SnapshotSource, demandCh <-chan struct{}) *EventStream {
	id := uuid.NewString()
	subCtx, cancel := context.WithCancel(ctx)

	events := make(chan *model.Event)
	errs := make(chan error, 1)

	stream := &EventStream{ID: id, Events: events, Errors: errs, cancel: cancel}

	pred, err := filter.Compile(filterPayload, registry)
	if err != nil {
		go func() {
			errs <- translateCompileError(err)
			close(events)
			close(errs)
		}()
		return stream
	}

	// Attach before fetch: the hub begins queueing/replaying
	// into this subscription's inbox immediately, before the snapshot I/O
	// even starts, which is what makes the handoff race-free.
	attachment := e.hub.Attach(id)

	if e.log != nil {
		e.log.Debug("subscription opened", logging.SubscriptionID(id))
	}

	go e.run(subCtx, id, pred, filterPayload.IncludeSnapshot, attachment, fetchSnapshot, demandCh, events, errs)

	return stream
}

func (e *Engine) run(
	ctx context.Context,
	id string,
	pred filter.Predicate,
	includeSnapshot bool,
	attachment *ingest.Attachment,
	fetchSnapshot func() SnapshotSource,
	demandCh <-chan struct{},
	events chan<- *model.Event,
	errs chan<- error,
) {
	defer attachment.Detach()
	defer close(events)
	defer close(errs)
	defer func() {
		if e.log != nil {
			e.log.Debug("subscription closed", logging.SubscriptionID(id))
		}
	}()

	snapshotIDs := make(map[int64]struct{})

	if includeSnapshot && fetchSnapshot != nil {
		if !e.runSnapshotPhase(ctx, pred, fetchSnapshot(), snapshotIDs, demandCh, events, errs) {
			return
		}
	}

	e.runLivePhase(ctx, pred, snapshotIDs, attachment, demandCh, events, errs)
}

// runSnapshotPhase drains the cached snapshot sequence, filtering, emitting,
// and recording event ids for later dedup. Returns false if
// the stream should terminate (snapshot failure or cancellation).
func (e *Engine) runSnapshotPhase(
	ctx context.Context,
	pred filter.Predicate,
	src SnapshotSource,
	snapshotIDs map[int64]struct{},
	demandCh <-chan struct{},
	events chan<- *model.Event,
	errs chan<- error,
) bool {
	snapshotEvents, err := src.Events()
	if err != nil {
		errs <- &SnapshotFailed{Cause: err}
		return false
	}

	for _, ev := range snapshotEvents {
		if ctx.Err() != nil {
			return false
		}
		if !pred(ev) {
			continue
		}
		if !waitForDemand(ctx, demandCh) {
			return false
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return false
		}
		snapshotIDs[ev.EventID] = struct{}{}
	}
	return true
}

// runLivePhase consumes the hub inbox for the lifetime of the subscription,
// deduplicating against snapshotIDs, filtering, and emitting.
// After snapshotGrace has elapsed since entering LIVE, snapshotIDs is
// cleared since any in-flight dedup race has necessarily resolved by then.
func (e *Engine) runLivePhase(
	ctx context.Context,
	pred filter.Predicate,
	snapshotIDs map[int64]struct{},
	attachment *ingest.Attachment,
	demandCh <-chan struct{},
	events chan<- *model.Event,
	errs chan<- error,
) {
	graceTimer := time.NewTimer(e.graceDuration())
	defer graceTimer.Stop()

	overflowTicker := time.NewTicker(time.Second)
	defer overflowTicker.Stop()

	inbox := attachment.Inbox()

	// pending holds one event that has passed dedup/filter and is waiting
	// on a demand credit. While pending is set, the inbox is not read
	// further (preserves per-subscription emission order); the grace timer
	// and overflow ticker keep firing regardless, so a stalled subscriber
	// (demand never arrives) still reports OVERFLOW_DROP and still GCs
	// snapshotIDs on schedule.
	var pending *model.Event

	for {
		var activeInbox <-chan *model.Event
		var activeDemand <-chan struct{}
		if pending == nil {
			activeInbox = inbox
		} else {
			activeDemand = demandCh
		}

		select {
		case <-ctx.Done():
			return
		case <-graceTimer.C:
			for k := range snapshotIDs {
				delete(snapshotIDs, k)
			}
		case <-overflowTicker.C:
			if n := attachment.DrainOverflowCount(); n > 0 {
				select {
				case errs <- &OverflowDrop{N: int(n)}:
				default:
				}
			}
		case <-activeDemand:
			select {
			case events <- pending:
				pending = nil
			case <-ctx.Done():
				return
			}
		case ev, ok := <-activeInbox:
			if !ok {
				return
			}
			if _, seen := snapshotIDs[ev.EventID]; seen {
				continue
			}
			if !pred(ev) {
				continue
			}
			if demandCh == nil {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				continue
			}
			pending = ev
		}
	}
}

func (e *Engine) graceDuration() time.Duration {
	if e.snapshotGrace <= 0 {
		return 5 * time.Second
	}
	return e.snapshotGrace
}

// waitForDemand blocks until one credit is available on demandCh, or
// returns false if ctx is cancelled first. A nil channel means unlimited
// demand (always proceeds immediately).
func waitForDemand(ctx context.Context, demandCh <-chan struct{}) bool {
	if demandCh == nil {
		return true
	}
	select {
	case <-demandCh:
		return true
	case <-ctx.Done():
		return false
	}
}

func translateCompileError(err error) error {
	if ife, ok := err.(*filter.InvalidFilterError); ok {
		return &InvalidFilter{Field: ife.Field, Reason: ife.Reason}
	}
	return err
}
