// Package supervisor implements C8: ordered startup of the streaming
// engine's components and reverse-order shutdown. The supervisor starts and
// stops the event ingestor once; the ingestor's consumer restarts itself
// through its own BACKOFF cycle without disturbing live subscriptions.
package supervisor

import (
	"context"
	"time"

	"github.com/tbaderts/oms-sub001/internal/logging"
)

// Component is one named unit the supervisor starts and stops, in the
// registered order (startup) and its reverse (shutdown). Start must return
// once the component is up (it may launch its own background goroutines);
// Stop must block until the component has released its resources or ctx
// expires, whichever comes first.
type Component struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Supervisor starts its registered components in registration order and
// stops them in reverse. main.go constructs C2 (registry) -> C5 (cache) ->
// C4 (ingestor) -> C3 (query client) -> C6 (subscription engines) -> C7
// (transport) in that order and registers the components with a lifecycle:
// the C4 consumers and the C7 HTTP server.
type Supervisor struct {
	components []Component
	started    []Component
	log        *logging.Logger
}

// New builds an empty Supervisor; call Register in startup order.
func New(log *logging.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Register appends a component to the startup sequence.
func (s *Supervisor) Register(c Component) {
	s.components = append(s.components, c)
}

// Start brings up every registered component in order. If one fails, every
// previously started component is stopped in reverse order before the error
// is returned.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, c := range s.components {
		if s.log != nil {
			s.log.Info("starting component", logging.Component(c.Name))
		}
		if c.Start != nil {
			if err := c.Start(ctx); err != nil {
				if s.log != nil {
					s.log.Error("component failed to start", logging.Component(c.Name), logging.Error(err))
				}
				s.shutdownStarted(context.Background(), 0)
				return err
			}
		}
		s.started = append(s.started, c)
	}
	return nil
}

// Shutdown stops every started component in reverse order, bounding each
// component's Stop call by grace. grace <= 0 means no bound.
func (s *Supervisor) Shutdown(ctx context.Context, grace time.Duration) {
	s.shutdownStarted(ctx, grace)
}

func (s *Supervisor) shutdownStarted(ctx context.Context, grace time.Duration) {
	for i := len(s.started) - 1; i >= 0; i-- {
		c := s.started[i]
		if c.Stop == nil {
			continue
		}
		stopCtx := ctx
		cancel := func() {}
		if grace > 0 {
			stopCtx, cancel = context.WithTimeout(ctx, grace)
		}
		if s.log != nil {
			s.log.Info("stopping component", logging.Component(c.Name))
		}
		if err := c.Stop(stopCtx); err != nil {
			if s.log != nil {
				s.log.Warn("component stop returned error", logging.Component(c.Name), logging.Error(err))
			}
		}
		cancel()
	}
	s.started = nil
}
