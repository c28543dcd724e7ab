package ingest

import (
	"context"
	"errors"
)

// ErrSourceUnconfigured is returned by UnconfiguredSource.Poll. No
// message-bus client ships with this package (see DESIGN.md); operators
// wire a concrete Source (a Kafka/NATS/etc. client satisfying the Source
// interface) for their deployment. Using UnconfiguredSource makes that
// omission visible immediately: the consumer cycles through BACKOFF and
// logs the cause instead of silently doing nothing.
var ErrSourceUnconfigured = errors.New("ingest: no upstream message-bus client configured")

// UnconfiguredSource is the default Source until a real client is wired.
type UnconfiguredSource struct{}

func (UnconfiguredSource) Poll(ctx context.Context) (RawRecord, error) {
	return RawRecord{}, ErrSourceUnconfigured
}

func (UnconfiguredSource) Commit(ctx context.Context, rec RawRecord) error {
	return nil
}
