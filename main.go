package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/cache"
	configpkg "github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/ingest"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/queryclient"
	"github.com/tbaderts/oms-sub001/internal/subscription"
	"github.com/tbaderts/oms-sub001/internal/supervisor"
	"github.com/tbaderts/oms-sub001/internal/transport"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	counters := metrics.New()

	// C2: accessor registries, built once and never mutated again.
	orderRegistry := accessor.BuildOrderRegistry()
	executionRegistry := accessor.BuildExecutionRegistry()

	// C5: the bounded materialized-state cache, constructed before the
	// ingestor starts writing to it.
	stateCache := cache.New(cfg.CacheMaxEntries, counters)

	// C4: one hub and one consumer per topic. The consumer's Source is left
	// unconfigured until a concrete message-bus client is wired in for a
	// given deployment (see DESIGN.md); it surfaces that gap through the
	// ordinary BACKOFF cycle rather than failing silently.
	ordersHub := ingest.NewHub(ingest.TopicOrders, cfg.Stream.ReplayBufferSize, cfg.Stream.InboxCapacity, counters)
	executionsHub := ingest.NewHub(ingest.TopicExecutions, cfg.Stream.ReplayBufferSize, cfg.Stream.InboxCapacity, counters)

	ordersConsumer := ingest.NewConsumer(ingest.TopicOrders, ingest.UnconfiguredSource{}, ingest.DecodeOrderRecord, ordersHub, stateCache, counters, logger.With(logging.Component("orders-consumer")), cfg.Supervisor)
	executionsConsumer := ingest.NewConsumer(ingest.TopicExecutions, ingest.UnconfiguredSource{}, ingest.DecodeExecutionRecord, executionsHub, stateCache, counters, logger.With(logging.Component("executions-consumer")), cfg.Supervisor)

	// C3: the external snapshot query client.
	queryClient := queryclient.New(cfg.Query, logger.With(logging.Component("query-client")))

	// C6: one engine per topic; the transport layer multiplexes both for
	// the blotter route.
	ordersEngine := subscription.New(orderRegistry, ordersHub, cfg.Subscription.SnapshotIDGrace, logger.With(logging.Component("orders-engine")))
	executionsEngine := subscription.New(executionRegistry, executionsHub, cfg.Subscription.SnapshotIDGrace, logger.With(logging.Component("executions-engine")))

	// C7: the request/stream wire adapter.
	server := transport.NewServer(ordersEngine, executionsEngine, queryClient, logger.With(logging.Component("transport")))
	httpServer := &http.Server{Addr: cfg.Address, Handler: server.Handler()}

	sup := supervisor.New(logger)
	sup.Register(supervisor.ConsumerComponent("orders-consumer", ordersConsumer, logger))
	sup.Register(supervisor.ConsumerComponent("executions-consumer", executionsConsumer, logger))
	sup.Register(supervisor.HTTPComponent("transport", httpServer, logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Start(ctx); err != nil {
		logger.Fatal("failed to start service", logging.Error(err))
	}

	logger.Info("oms-sub001 listening", logging.String("address", cfg.Address))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sup.Shutdown(context.Background(), shutdownGrace)
}
