package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/subscription"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = pongWait * 9 / 10
	demandBacklog = 64
)

// streamKind selects which engine(s) a websocket connection is routed to.
type streamKind int

const (
	kindOrders streamKind = iota
	kindExecutions
	kindBlotter
)

// serveStream upgrades the HTTP request to a websocket, reads the client's
// initial request payload, opens a C6 subscription, and pipes emissions to
// the wire until the client disconnects or cancels.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, kind streamKind) {
	log := s.log
	if log != nil {
		log = log.With(logging.String("remote_addr", r.RemoteAddr))
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if log != nil {
			log.Warn("websocket upgrade failed", logging.Error(err))
		}
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		if log != nil {
			log.Warn("failed to read initial stream request", logging.Error(err))
		}
		return
	}

	payload, blotterType, err := parseStreamRequest(raw, kind)
	if err != nil {
		writeFrame(conn, frameEnvelope{Error: &wireErrorFrame{Code: "INVALID_FILTER", Message: err.Error()}})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	demandCh := make(chan struct{}, demandBacklog)
	// Grant one credit up front so a client that never sends demand still
	// receives its first event; every further snapshot or live emission
	// parks until the client grants more demand.
	demandCh <- struct{}{}

	stream := s.openStream(ctx, kind, blotterType, payload, demandCh)
	defer stream.Close()

	go s.readControlLoop(conn, cancel, demandCh)

	s.writeLoop(conn, stream, log)
}

func (s *Server) openStream(ctx context.Context, kind streamKind, blotterType string, payload filter.Payload, demandCh <-chan struct{}) *subscription.EventStream {
	switch kind {
	case kindOrders:
		return s.orders.OpenSubscription(ctx, payload, s.fetchOrderSnapshot(ctx, payload), demandCh)
	case kindExecutions:
		return s.executions.OpenSubscription(ctx, payload, s.fetchExecutionSnapshot(ctx, payload), demandCh)
	default:
		// A blotter subscription narrows to a single engine when the client
		// asked for ORDERS or EXECUTIONS specifically; it only multiplexes
		// both when streamType is ALL or omitted. Either way the filter is
		// validated against the merged blotter registry, since a field valid
		// on only one payload kind must not be rejected as unknown.
		switch blotterType {
		case streamTypeOrders:
			return s.orders.OpenSubscriptionWithRegistry(ctx, s.blotterRegistry, payload, s.fetchOrderSnapshot(ctx, payload), demandCh)
		case streamTypeExecutions:
			return s.executions.OpenSubscriptionWithRegistry(ctx, s.blotterRegistry, payload, s.fetchExecutionSnapshot(ctx, payload), demandCh)
		default:
			return subscription.OpenBlotter(ctx, s.orders, s.executions, s.blotterRegistry, payload, s.fetchOrderSnapshot(ctx, payload), s.fetchExecutionSnapshot(ctx, payload), demandCh)
		}
	}
}

func parseStreamRequest(raw []byte, kind streamKind) (filter.Payload, string, error) {
	if kind == kindBlotter {
		var req streamRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return filter.Payload{}, "", err
		}
		switch req.StreamType {
		case "", streamTypeOrders, streamTypeExecutions, streamTypeAll:
		default:
			return filter.Payload{}, "", fmt.Errorf("unknown streamType %q", req.StreamType)
		}
		return req.Filter.toPayload(), req.StreamType, nil
	}

	var wf wireFilter
	if err := json.Unmarshal(raw, &wf); err != nil {
		return filter.Payload{}, "", err
	}
	return wf.toPayload(), "", nil
}

// readControlLoop translates inbound demand-credit and cancel frames into
// the engine's demand channel and the subscription's context cancellation.
// It also keeps the read deadline alive via pong handling.
func (s *Server) readControlLoop(conn *websocket.Conn, cancel context.CancelFunc, demandCh chan struct{}) {
	defer cancel()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ctrl wireControl
		if err := json.Unmarshal(raw, &ctrl); err != nil {
			continue
		}
		switch ctrl.Type {
		case "cancel":
			return
		case "demand":
			credit := ctrl.Credit
			if credit <= 0 {
				credit = 1
			}
			for i := 0; i < credit; i++ {
				select {
				case demandCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// writeLoop forwards the subscription's event and error channels to the
// wire as JSON frames, and keeps the connection alive with periodic pings.
func (s *Server) writeLoop(conn *websocket.Conn, stream *subscription.EventStream, log *logging.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	events := stream.Events
	errs := stream.Errors
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			we := toWireEvent(ev)
			if err := writeFrame(conn, frameEnvelope{Event: &we}); err != nil {
				if log != nil {
					log.Warn("write error", logging.Error(err))
				}
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			frame := errorToFrame(err)
			if writeErr := writeFrame(conn, frameEnvelope{Error: &frame}); writeErr != nil {
				return
			}
			if isTerminalError(err) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameEnvelope is the outbound wire frame: exactly one of Event/Error is set.
type frameEnvelope struct {
	Event *wireEvent      `json:"event,omitempty"`
	Error *wireErrorFrame `json:"error,omitempty"`
}

func writeFrame(conn *websocket.Conn, f frameEnvelope) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

func errorToFrame(err error) wireErrorFrame {
	switch e := err.(type) {
	case *subscription.InvalidFilter:
		return wireErrorFrame{Code: "INVALID_FILTER", Field: e.Field, Reason: e.Reason}
	case *subscription.SnapshotFailed:
		return wireErrorFrame{Code: "SNAPSHOT_FAILED", Message: e.Cause.Error()}
	case *subscription.OverflowDrop:
		return wireErrorFrame{Code: "OVERFLOW_DROP", N: e.N}
	default:
		return wireErrorFrame{Code: "ERROR", Message: err.Error()}
	}
}

func isTerminalError(err error) bool {
	switch err.(type) {
	case *subscription.InvalidFilter, *subscription.SnapshotFailed:
		return true
	default:
		return false
	}
}
