package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tbaderts/oms-sub001/internal/cache"
	"github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// State is one node of the ingestor state machine.
type State int

const (
	Stopped State = iota
	Starting
	Running
	Backoff
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Backoff:
		return "BACKOFF"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// RawRecord is one undecoded record read from the upstream bus. The concrete
// transport (broker client, wire format) is supplied by the Source the
// consumer is constructed with; no specific message-bus client ships in this
// package (see DESIGN.md).
type RawRecord struct {
	Topic Topic
	Key   []byte
	Value []byte
}

// Source abstracts the upstream message bus. Poll blocks until a record is
// available, ctx is cancelled, or an I/O error occurs. Commit advances the
// consumer group's committed offset; it is called only after a record has
// been placed into the replay buffer and handed to the hub (manual-ack-only).
type Source interface {
	Poll(ctx context.Context) (RawRecord, error)
	Commit(ctx context.Context, rec RawRecord) error
}

// Decoder converts one raw record into an Event. Fields absent from the wire
// record are left zero-valued on the Event/payload; this must never cause a
// decode error by itself.
type Decoder func(rec RawRecord) (*model.Event, error)

// poisonThreshold is the number of consecutive decode failures tolerated
// before the consumer treats the stream as unhealthy and moves to BACKOFF.
const poisonThreshold = 10

// Consumer drives one topic's state machine: poll, decode, publish to the
// hub, commit. It never terminates on its own; operator intervention is
// required to reach STOPPED once BACKOFF begins cycling.
type Consumer struct {
	topic    Topic
	source   Source
	decode   Decoder
	hub      *Hub
	cache    *cache.Cache
	counters *metrics.Counters
	log      *logging.Logger

	backoffCfg config.SupervisorConfig

	mu    sync.Mutex
	state State

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewConsumer builds a Consumer for one topic. The cache, when non-nil, is
// updated with every successfully decoded event (keyed by its identity)
// before the event is handed to the hub, maintaining a bounded materialized
// view of current order/execution state alongside the hub's transient
// replay window.
func NewConsumer(topic Topic, source Source, decode Decoder, hub *Hub, cache *cache.Cache, counters *metrics.Counters, log *logging.Logger, backoffCfg config.SupervisorConfig) *Consumer {
	return &Consumer{
		topic:      topic,
		source:     source,
		decode:     decode,
		hub:        hub,
		cache:      cache,
		counters:   counters,
		log:        log,
		backoffCfg: backoffCfg,
		state:      Stopped,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// State returns the consumer's current lifecycle state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("ingestor state transition", logging.String("topic", string(c.topic)), logging.String("state", s.String()))
	}
}

// Run drives the state machine until ctx is cancelled or Stop is called.
// Run is meant to be launched in its own goroutine by the supervisor (C8).
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.doneCh)

	c.setState(Starting)
	bo := c.newBackOff()
	poisonStreak := 0

	for {
		select {
		case <-ctx.Done():
			c.drainToStop()
			return
		case <-c.stopCh:
			c.drainToStop()
			return
		default:
		}

		c.setState(Running)
		poisonStreak = 0

	runLoop:
		for {
			select {
			case <-ctx.Done():
				c.drainToStop()
				return
			case <-c.stopCh:
				c.drainToStop()
				return
			default:
			}

			rec, err := c.source.Poll(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.drainToStop()
					return
				}
				break runLoop // fatal I/O error -> BACKOFF
			}

			event, err := c.decode(rec)
			if err != nil {
				poisonStreak++
				if c.counters != nil {
					c.counters.PoisonMessage()
				}
				if poisonStreak >= poisonThreshold {
					break runLoop // too many consecutive poison messages -> BACKOFF
				}
				continue
			}
			poisonStreak = 0

			if c.cache != nil {
				c.cache.Put(event.Key, event)
			}
			c.hub.Publish(event)

			if err := c.source.Commit(ctx, rec); err != nil {
				break runLoop
			}
			// A fully processed record means the upstream is healthy again,
			// so the next fault starts over from the initial delay.
			bo.Reset()
		}

		c.setState(Backoff)
		delay, err := bo.NextBackOff()
		if err != nil {
			// MaxElapsedTime is unset, so the backoff policy itself never
			// expires; fall back to the configured ceiling rather than spin.
			delay = c.backoffCfg.BackoffCeiling
		}
		select {
		case <-ctx.Done():
			c.drainToStop()
			return
		case <-c.stopCh:
			c.drainToStop()
			return
		case <-time.After(delay):
		}
	}
}

func (c *Consumer) drainToStop() {
	c.setState(Stopping)
	c.setState(Stopped)
}

// Stop requests a graceful shutdown: in-flight work finishes, the state
// moves through STOPPING to STOPPED. Idempotent.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Done is closed once Run has returned.
func (c *Consumer) Done() <-chan struct{} {
	return c.doneCh
}

func (c *Consumer) newBackOff() *backoff.ExponentialBackOff {
	// MaxElapsedTime is left at its zero value (never give up), unlike the
	// source's hard-capped retries — operator intervention is the
	// only way out of the BACKOFF cycle.
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.backoffCfg.BackoffInitial),
		backoff.WithMaxInterval(c.backoffCfg.BackoffCeiling),
		backoff.WithRandomizationFactor(c.backoffCfg.BackoffJitter),
		backoff.WithMultiplier(2),
	)
}
