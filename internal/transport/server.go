package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/queryclient"
	"github.com/tbaderts/oms-sub001/internal/subscription"
)

// Server is C7: it exposes the route tokens named in the wire protocol as
// websocket stream endpoints and plain HTTP request/response endpoints.
type Server struct {
	orders          *subscription.Engine
	executions      *subscription.Engine
	blotterRegistry *accessor.Registry
	query           *queryclient.Client
	upgrader        websocket.Upgrader
	log             *logging.Logger
	startedAt       time.Time
}

// NewServer wires an Engine pair and the snapshot client into a request/stream adapter.
func NewServer(orders, executions *subscription.Engine, query *queryclient.Client, log *logging.Logger) *Server {
	return &Server{
		orders:          orders,
		executions:      executions,
		blotterRegistry: accessor.BuildBlotterRegistry(),
		query:           query,
		upgrader:        websocket.Upgrader{},
		log:             log,
		startedAt:       time.Now(),
	}
}

// Handler builds the route mux: stream routes upgrade to websocket, the
// remaining routes are plain request/response handlers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders.stream", func(w http.ResponseWriter, r *http.Request) { s.serveStream(w, r, kindOrders) })
	mux.HandleFunc("/executions.stream", func(w http.ResponseWriter, r *http.Request) { s.serveStream(w, r, kindExecutions) })
	mux.HandleFunc("/blotter.stream", func(w http.ResponseWriter, r *http.Request) { s.serveStream(w, r, kindBlotter) })
	mux.HandleFunc("/orders.snapshot", s.serveOrdersSnapshot)
	mux.HandleFunc("/executions.snapshot", s.serveExecutionsSnapshot)
	mux.HandleFunc("/health", s.serveHealth)
	mux.HandleFunc("/healthz", s.serveHealth)
	return logging.HTTPTraceMiddleware(s.log)(mux)
}

func (s *Server) fetchOrderSnapshot(ctx context.Context, payload filter.Payload) func() subscription.SnapshotSource {
	return func() subscription.SnapshotSource {
		return s.query.FetchSnapshot(ctx, payload, queryclient.OrderDecoder)
	}
}

func (s *Server) fetchExecutionSnapshot(ctx context.Context, payload filter.Payload) func() subscription.SnapshotSource {
	return func() subscription.SnapshotSource {
		return s.query.FetchSnapshot(ctx, payload, queryclient.ExecutionDecoder)
	}
}

func (s *Server) serveOrdersSnapshot(w http.ResponseWriter, r *http.Request) {
	s.serveSnapshot(w, r, queryclient.OrderDecoder)
}

func (s *Server) serveExecutionsSnapshot(w http.ResponseWriter, r *http.Request) {
	s.serveSnapshot(w, r, queryclient.ExecutionDecoder)
}

// serveSnapshot decodes the request body as a Filter, invokes C3 once, and
// returns the full decoded sequence as a single JSON array.
func (s *Server) serveSnapshot(w http.ResponseWriter, r *http.Request, decode queryclient.Decoder) {
	log := logging.LoggerFromContext(r.Context())
	if log == nil {
		log = s.log
	}

	var wf wireFilter
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&wf); err != nil && err.Error() != "EOF" {
			http.Error(w, "malformed filter payload", http.StatusBadRequest)
			return
		}
	}

	snapshot := s.query.FetchSnapshot(r.Context(), wf.toPayload(), decode)
	events, err := snapshot.Events()
	if err != nil {
		if log != nil {
			log.Error("snapshot fetch failed", logging.Error(err))
		}
		http.Error(w, "snapshot fetch failed", http.StatusBadGateway)
		return
	}

	wire := make([]wireEvent, len(events))
	for i, e := range events {
		wire[i] = toWireEvent(e)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wire); err != nil && log != nil {
		log.Error("encode snapshot response failed", logging.Error(err))
	}
}

// serveHealth returns a constant marker.
func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptimeSeconds"`
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{Status: "OK", UptimeSeconds: time.Since(s.startedAt).Seconds()})
}
