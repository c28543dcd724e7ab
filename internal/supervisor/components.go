package supervisor

import (
	"context"
	"errors"
	"net/http"

	"github.com/tbaderts/oms-sub001/internal/ingest"
	"github.com/tbaderts/oms-sub001/internal/logging"
)

// ConsumerComponent wraps an ingest.Consumer (C4) as a supervised
// component. Start launches Run in its own goroutine and returns
// immediately; Stop requests a graceful stop and waits for Run to return,
// bounded by the context's deadline. The consumer's own state machine
// already restarts itself through BACKOFF without supervisor
// intervention, so the only thing the supervisor does for C4 is launch it
// once and stop it once.
func ConsumerComponent(name string, consumer *ingest.Consumer, log *logging.Logger) Component {
	return Component{
		Name: name,
		Start: func(ctx context.Context) error {
			go consumer.Run(context.Background())
			return nil
		},
		Stop: func(ctx context.Context) error {
			consumer.Stop()
			select {
			case <-consumer.Done():
				return nil
			case <-ctx.Done():
				if log != nil {
					log.Warn("consumer did not stop within grace period; abandoning", logging.Component(name))
				}
				return ctx.Err()
			}
		},
	}
}

// HTTPComponent wraps an http.Server (C7) as a supervised component. Start
// begins serving in its own goroutine; Stop performs a graceful shutdown
// bounded by the context's deadline.
func HTTPComponent(name string, server *http.Server, log *logging.Logger) Component {
	return Component{
		Name: name,
		Start: func(ctx context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					if log != nil {
						log.Error("http server terminated", logging.Component(name), logging.Error(err))
					}
				}
			}()
			return nil
		},
		Stop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	}
}

// FuncComponent adapts a plain start/stop pair (e.g. closing a pooled
// client) into a Component with no background goroutine.
func FuncComponent(name string, start, stop func(ctx context.Context) error) Component {
	return Component{Name: name, Start: start, Stop: stop}
}
