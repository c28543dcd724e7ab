package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/ingest"
	"github.com/tbaderts/oms-sub001/internal/metrics"
	"github.com/tbaderts/oms-sub001/internal/queryclient"
	"github.com/tbaderts/oms-sub001/internal/subscription"
)

func newTestServer(t *testing.T, queryBaseURL string) *Server {
	t.Helper()
	registry := accessor.BuildOrderRegistry()
	execRegistry := accessor.BuildExecutionRegistry()
	hub := ingest.NewHub(ingest.TopicOrders, 10, 10, metrics.New())
	execHub := ingest.NewHub(ingest.TopicExecutions, 10, 10, metrics.New())

	orders := subscription.New(registry, hub, time.Hour, nil)
	executions := subscription.New(execRegistry, execHub, time.Hour, nil)

	client := queryclient.New(config.QueryConfig{
		BaseURL:        queryBaseURL,
		PageSize:       100,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
	}, nil)

	return NewServer(orders, executions, client, nil)
}

func TestHealthEndpointReturnsConstantMarker(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body.Status != "OK" {
		t.Fatalf("expected status OK, got %q", body.Status)
	}
}

func TestOrdersSnapshotReturnsDecodedEvents(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders":[{"eventId":1,"order":{"orderId":"o1","symbol":"AAPL","state":"LIVE","price":"100.5"}}],"hasNextPage":false}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/orders.snapshot", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /orders.snapshot: %v", err)
	}
	defer resp.Body.Close()

	var events []wireEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode snapshot response: %v", err)
	}
	if len(events) != 1 || events[0].Order == nil || events[0].Order.OrderID != "o1" {
		t.Fatalf("unexpected snapshot response: %+v", events)
	}
}

func TestOrdersStreamDeliversSnapshotEvent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders":[{"eventId":1,"order":{"orderId":"o1","symbol":"AAPL","state":"LIVE","price":"1"}}],"hasNextPage":false}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/orders.stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wireFilter{LogicalOperator: "AND"}); err != nil {
		t.Fatalf("write initial request: %v", err)
	}

	var first frameEnvelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot frame: %v", err)
	}
	if first.Event == nil || first.Event.Order == nil || first.Event.Order.OrderID != "o1" {
		t.Fatalf("expected snapshot order event, got %+v", first)
	}
}

func TestInvalidFilterClosesStreamWithErrorFrame(t *testing.T) {
	srv := newTestServer(t, "http://unused.invalid")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/orders.stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := wireFilter{Filters: []wireFilterCond{{Field: "nonexistent", Operator: "EQ", Value: "x"}}}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write initial request: %v", err)
	}

	var frame frameEnvelope
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if frame.Error == nil || frame.Error.Code != "INVALID_FILTER" {
		t.Fatalf("expected INVALID_FILTER error frame, got %+v", frame)
	}
}
