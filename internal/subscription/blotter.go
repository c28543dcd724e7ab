package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// OpenBlotter implements the unified stream variant: two
// subscriptions — one against the orders engine, one against the
// executions engine — multiplexed into a single output. Interleaving order
// is not guaranteed beyond "snapshot first" for each source. The filter is
// validated against blotterRegistry (the merged order+execution field set)
// rather than each engine's own narrower registry, so a field that only
// exists on one payload kind is a valid condition, not an InvalidFilter.
func OpenBlotter(ctx context.Context, orders, executions *Engine, blotterRegistry *accessor.Registry, filterPayload filter.Payload, fetchOrderSnapshot, fetchExecutionSnapshot func() SnapshotSource, demandCh <-chan struct{}) *EventStream {
	blotterCtx, cancel := context.WithCancel(ctx)

	orderStream := orders.OpenSubscriptionWithRegistry(blotterCtx, blotterRegistry, filterPayload, fetchOrderSnapshot, demandCh)
	execStream := executions.OpenSubscriptionWithRegistry(blotterCtx, blotterRegistry, filterPayload, fetchExecutionSnapshot, demandCh)

	events := make(chan *model.Event)
	errs := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go forward(orderStream.Events, orderStream.Errors, events, errs, &wg)
	go forward(execStream.Events, execStream.Errors, events, errs, &wg)

	go func() {
		wg.Wait()
		close(events)
		close(errs)
	}()

	return &EventStream{
		ID:     uuid.NewString(),
		Events: events,
		Errors: errs,
		cancel: cancel,
	}
}

func forward(in <-chan *model.Event, inErrs <-chan error, out chan<- *model.Event, outErrs chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	for in != nil || inErrs != nil {
		select {
		case ev, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			out <- ev
		case err, ok := <-inErrs:
			if !ok {
				inErrs = nil
				continue
			}
			select {
			case outErrs <- err:
			default:
			}
		}
	}
}
