package cache

import (
	"testing"

	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/model"
)

func orderEvent(id, state string) *model.Event {
	return &model.Event{
		PayloadKind: model.PayloadKindOrder,
		Order:       &model.OrderPayload{OrderID: id, State: model.OrderState(state)},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(10, metrics.New())
	c.Put("o1", orderEvent("o1", "NEW"))

	got, ok := c.Get("o1")
	if !ok || got.Order.OrderID != "o1" {
		t.Fatalf("expected to retrieve o1, got %v ok=%v", got, ok)
	}
}

func TestEvictsTerminalEntryFirst(t *testing.T) {
	counters := metrics.New()
	c := New(2, counters)
	c.Put("o1", orderEvent("o1", "FILLED")) // terminal
	c.Put("o2", orderEvent("o2", "LIVE"))   // non-terminal

	c.Put("o3", orderEvent("o3", "NEW"))

	if _, ok := c.Get("o1"); ok {
		t.Fatalf("expected terminal entry o1 to be evicted first")
	}
	if _, ok := c.Get("o2"); !ok {
		t.Fatalf("expected non-terminal entry o2 to survive")
	}
	if _, ok := c.Get("o3"); !ok {
		t.Fatalf("expected newly inserted o3 to be present")
	}

	_, _, evictions := counters.Snapshot()
	if evictions != 1 {
		t.Fatalf("expected 1 eviction counted, got %d", evictions)
	}
}

func TestFallsBackToGlobalLRUWhenNoTerminalEntries(t *testing.T) {
	c := New(2, metrics.New())
	c.Put("o1", orderEvent("o1", "NEW"))
	c.Put("o2", orderEvent("o2", "LIVE"))

	// touch o1 so it becomes most-recently-updated, leaving o2 as the LRU victim.
	c.Put("o1", orderEvent("o1", "NEW"))

	c.Put("o3", orderEvent("o3", "NEW"))

	if _, ok := c.Get("o2"); ok {
		t.Fatalf("expected least-recently-updated o2 to be evicted")
	}
	if _, ok := c.Get("o1"); !ok {
		t.Fatalf("expected recently touched o1 to survive")
	}
}

func TestUpdatingExistingKeyDoesNotEvict(t *testing.T) {
	counters := metrics.New()
	c := New(1, counters)
	c.Put("o1", orderEvent("o1", "NEW"))
	c.Put("o1", orderEvent("o1", "LIVE"))

	got, ok := c.Get("o1")
	if !ok || got.Order.State != model.OrderStateLive {
		t.Fatalf("expected updated state LIVE, got %v", got)
	}
	_, _, evictions := counters.Snapshot()
	if evictions != 0 {
		t.Fatalf("expected no eviction on update of existing key, got %d", evictions)
	}
}

func TestSnapshotReturnsAllEntries(t *testing.T) {
	c := New(5, metrics.New())
	c.Put("o1", orderEvent("o1", "NEW"))
	c.Put("o2", orderEvent("o2", "LIVE"))

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries in snapshot, got %d", len(snap))
	}
}
