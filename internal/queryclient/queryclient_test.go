package queryclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/filter"
)

func TestFetchSnapshotPaginatesAndCaches(t *testing.T) {
	var requestCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		cursor := r.URL.Query().Get("cursor")
		w.Header().Set("Content-Type", "application/json")
		if cursor == "" {
			w.Header().Set("X-Next-Cursor", "page2")
			_ = json.NewEncoder(w).Encode(page{
				Orders:      []wireOrder{{EventID: 1, Order: json.RawMessage(`{"orderId":"o1","symbol":"AAPL"}`)}},
				HasNextPage: true,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(page{
			Orders:      []wireOrder{{EventID: 2, Order: json.RawMessage(`{"orderId":"o2","symbol":"MSFT"}`)}},
			HasNextPage: false,
		})
	}))
	defer server.Close()

	cfg := config.QueryConfig{BaseURL: server.URL, PageSize: 10, ConnectTimeout: 0, ReadTimeout: 0}
	client := New(cfg, nil)

	snapshot := client.FetchSnapshot(context.Background(), filter.Payload{}, OrderDecoder)

	events, err := snapshot.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events across 2 pages, got %d", len(events))
	}
	if requestCount != 2 {
		t.Fatalf("expected 2 HTTP requests for 2 pages, got %d", requestCount)
	}

	// second call must not reissue the HTTP request sequence.
	events2, err := snapshot.Events()
	if err != nil {
		t.Fatalf("Events (cached): %v", err)
	}
	if len(events2) != 2 {
		t.Fatalf("expected cached replay to still have 2 events, got %d", len(events2))
	}
	if requestCount != 2 {
		t.Fatalf("expected no additional HTTP requests on cached replay, got %d total", requestCount)
	}
}

func TestFetchSnapshotAbortsOnPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := config.QueryConfig{BaseURL: server.URL, PageSize: 10}
	client := New(cfg, nil)

	snapshot := client.FetchSnapshot(context.Background(), filter.Payload{}, OrderDecoder)
	_, err := snapshot.Events()
	if err == nil {
		t.Fatalf("expected SnapshotFailed error")
	}
	var sf *SnapshotFailed
	if e, ok := err.(*SnapshotFailed); ok {
		sf = e
	} else {
		t.Fatalf("expected *SnapshotFailed, got %T: %v", err, err)
	}
	if sf.Page != 1 {
		t.Fatalf("expected failure on page 1, got %d", sf.Page)
	}
}

func TestBuildQueryParamsMapping(t *testing.T) {
	p := filter.Payload{
		LogicalOperator: filter.And,
		Conditions: []filter.Condition{
			{Field: "symbol", Operator: filter.EQ, Value: "AAPL"},
			{Field: "price", Operator: filter.BETWEEN, Value: "10", Value2: "20"},
		},
	}
	q := buildQueryParams(p)
	if q.Get("symbol") != "AAPL" {
		t.Fatalf("expected EQ to map to bare field name, got %q", q.Get("symbol"))
	}
	if q.Get("price__between") != "10,20" {
		t.Fatalf("expected BETWEEN mapping, got %q", q.Get("price__between"))
	}
}
