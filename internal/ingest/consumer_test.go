package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/model"
)

type fakeSource struct {
	mu        sync.Mutex
	records   []RawRecord
	idx       int
	pollErr   error
	committed []RawRecord
}

func (f *fakeSource) Poll(ctx context.Context) (RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return RawRecord{}, f.pollErr
	}
	if f.idx >= len(f.records) {
		// No more fixture records: yield briefly rather than blocking
		// forever, so a caller relying purely on Consumer.Stop() (not
		// context cancellation) can still observe the next loop check.
		// Once ctx is cancelled Poll reports it; otherwise it hands back an
		// empty record, which the consumer decodes and commits like any other.
		time.Sleep(time.Millisecond)
		if err := ctx.Err(); err != nil {
			return RawRecord{}, err
		}
		return RawRecord{Topic: f.topic()}, nil
	}
	rec := f.records[f.idx]
	f.idx++
	return rec, nil
}

func (f *fakeSource) topic() Topic {
	if len(f.records) > 0 {
		return f.records[0].Topic
	}
	return TopicOrders
}

func (f *fakeSource) Commit(ctx context.Context, rec RawRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, rec)
	return nil
}

func decodeOK(rec RawRecord) (*model.Event, error) {
	return &model.Event{EventID: 1, PayloadKind: model.PayloadKindOrder, Order: &model.OrderPayload{OrderID: string(rec.Value)}}, nil
}

func decodeAlwaysFails(rec RawRecord) (*model.Event, error) {
	return nil, errors.New("malformed record")
}

func fastBackoffCfg() config.SupervisorConfig {
	return config.SupervisorConfig{
		BackoffInitial: time.Millisecond,
		BackoffCeiling: 5 * time.Millisecond,
		BackoffJitter:  0,
	}
}

func TestConsumerPublishesDecodedRecordsAndCommits(t *testing.T) {
	hub := NewHub(TopicOrders, 10, 10, metrics.New())
	att := hub.Attach("watcher")
	defer att.Detach()

	source := &fakeSource{records: []RawRecord{{Topic: TopicOrders, Value: []byte("o1")}}}
	consumer := NewConsumer(TopicOrders, source, decodeOK, hub, nil, metrics.New(), nil, fastBackoffCfg())

	ctx, cancel := context.WithCancel(context.Background())
	go consumer.Run(ctx)

	select {
	case e := <-att.Inbox():
		if e.Order.OrderID != "o1" {
			t.Fatalf("expected order o1, got %q", e.Order.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for published event")
	}

	cancel()
	<-consumer.Done()

	source.mu.Lock()
	defer source.mu.Unlock()
	if len(source.committed) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(source.committed))
	}
}

func TestConsumerEntersBackoffOnPoisonThreshold(t *testing.T) {
	hub := NewHub(TopicOrders, 10, 10, metrics.New())
	records := make([]RawRecord, poisonThreshold+1)
	for i := range records {
		records[i] = RawRecord{Topic: TopicOrders, Value: []byte("bad")}
	}
	source := &fakeSource{records: records}
	counters := metrics.New()
	consumer := NewConsumer(TopicOrders, source, decodeAlwaysFails, hub, nil, counters, nil, fastBackoffCfg())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	deadline := time.After(time.Second)
	for {
		if consumer.State() == Backoff {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("consumer never reached BACKOFF after %d poison messages", poisonThreshold)
		case <-time.After(time.Millisecond):
		}
	}

	_, poison, _ := counters.Snapshot()
	if poison < poisonThreshold {
		t.Fatalf("expected at least %d poison counter increments, got %d", poisonThreshold, poison)
	}
}

func TestConsumerStopIsIdempotentAndReachesStopped(t *testing.T) {
	hub := NewHub(TopicOrders, 10, 10, metrics.New())
	source := &fakeSource{}
	consumer := NewConsumer(TopicOrders, source, decodeOK, hub, nil, metrics.New(), nil, fastBackoffCfg())

	ctx := context.Background()
	go consumer.Run(ctx)

	time.Sleep(10 * time.Millisecond)
	consumer.Stop()
	consumer.Stop()

	select {
	case <-consumer.Done():
	case <-time.After(time.Second):
		t.Fatalf("consumer did not stop")
	}
	if consumer.State() != Stopped {
		t.Fatalf("expected Stopped, got %s", consumer.State())
	}
}
