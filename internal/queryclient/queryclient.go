// Package queryclient implements C3: fetching a filtered snapshot from the
// external order/execution query API, paginating through results and
// caching the resulting sequence so a subscription issues the request at
// most once.
package queryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzhttp"

	"github.com/tbaderts/oms-sub001/internal/config"
	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/logging"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// SnapshotFailed reports an aborted snapshot fetch. Snapshots
// never partially succeed: any page failure discards everything gathered so far.
type SnapshotFailed struct {
	Page  int
	Cause error
}

func (e *SnapshotFailed) Error() string {
	return fmt.Sprintf("snapshot failed on page %d: %v", e.Page, e.Cause)
}

func (e *SnapshotFailed) Unwrap() error { return e.Cause }

// page is the wire envelope returned by the external query API for one page.
type page struct {
	Orders      []wireOrder     `json:"orders,omitempty"`
	Executions  []wireExecution `json:"executions,omitempty"`
	HasNextPage bool            `json:"hasNextPage"`
}

type wireOrder struct {
	EventID int64           `json:"eventId"`
	Order   json.RawMessage `json:"order"`
}

type wireExecution struct {
	EventID   int64           `json:"eventId"`
	Execution json.RawMessage `json:"execution"`
}

// Decoder converts one raw page response into Events, tagged SNAPSHOT.
// Order and execution streams use distinct decoders since their wire
// payloads differ.
type Decoder func(raw []byte) ([]*model.Event, bool, error)

// Client issues paginated, filtered snapshot queries against the external
// query API.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	log        *logging.Logger
}

// New builds a Client from configuration, wrapping the transport in
// transparent gzip decoding — the external query API compresses large pages.
func New(cfg config.QueryConfig, log *logging.Logger) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	base := &http.Transport{DialContext: dialer.DialContext}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout:   cfg.ReadTimeout,
			Transport: gzhttp.Transport(base),
		},
		log: log,
	}
}

// Snapshot is the cached, at-most-once-fetched result of one FetchSnapshot
// call. Calling Events repeatedly
// replays the same in-memory slice; the HTTP request sequence runs exactly
// once regardless of how many times Events is called.
type Snapshot struct {
	once   sync.Once
	events []*model.Event
	err    error
	fetch  func() ([]*model.Event, error)
}

// Events triggers (on first call) or replays (on subsequent calls) the
// cached fetch, satisfying the at-most-once subscription contract.
func (s *Snapshot) Events() ([]*model.Event, error) {
	s.once.Do(func() {
		s.events, s.err = s.fetch()
	})
	return s.events, s.err
}

// FetchSnapshot compiles filterPayload into query parameters and returns a
// cached lazy sequence; decode picks the payload shape (order vs execution).
func (c *Client) FetchSnapshot(ctx context.Context, filterPayload filter.Payload, decode Decoder) *Snapshot {
	return &Snapshot{
		fetch: func() ([]*model.Event, error) {
			return c.fetchAllPages(ctx, filterPayload, decode)
		},
	}
}

func (c *Client) fetchAllPages(ctx context.Context, filterPayload filter.Payload, decode Decoder) ([]*model.Event, error) {
	var events []*model.Event
	pageNum := 0
	cursor := ""

	for {
		pageNum++
		raw, next, err := c.fetchPage(ctx, filterPayload, cursor)
		if err != nil {
			return nil, &SnapshotFailed{Page: pageNum, Cause: err}
		}

		decoded, hasMore, err := decode(raw)
		if err != nil {
			return nil, &SnapshotFailed{Page: pageNum, Cause: err}
		}
		events = append(events, decoded...)

		if !hasMore {
			break
		}
		cursor = next
	}

	if c.log != nil {
		c.log.Debug("snapshot fetch complete", logging.Int("pages", pageNum), logging.Int("events", len(events)))
	}
	return events, nil
}

func (c *Client) fetchPage(ctx context.Context, filterPayload filter.Payload, cursor string) ([]byte, string, error) {
	q := buildQueryParams(filterPayload)
	q.Set("page_size", fmt.Sprintf("%d", c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("query API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	nextCursor := resp.Header.Get("X-Next-Cursor")
	return body, nextCursor, nil
}

// buildQueryParams implements the total Filter -> query-parameter mapping.
// Unknown operator variants are never emitted: the operator switch has no
// default case, so such a condition adds no parameter. Subscriptions compile
// the filter before fetching; the *.snapshot routes pass the client's filter
// through without compiling it.
func buildQueryParams(p filter.Payload) url.Values {
	q := url.Values{}
	logical := p.LogicalOperator
	if logical == "" {
		logical = filter.And
	}
	q.Set("logical_operator", string(logical))

	for _, c := range p.Conditions {
		switch c.Operator {
		case filter.EQ:
			q.Set(c.Field, c.Value)
		case filter.LIKE:
			q.Set(c.Field+"__like", c.Value)
		case filter.GT:
			q.Set(c.Field+"__gt", c.Value)
		case filter.GTE:
			q.Set(c.Field+"__gte", c.Value)
		case filter.LT:
			q.Set(c.Field+"__lt", c.Value)
		case filter.LTE:
			q.Set(c.Field+"__lte", c.Value)
		case filter.BETWEEN:
			q.Set(c.Field+"__between", c.Value+","+c.Value2)
		}
	}
	return q
}
