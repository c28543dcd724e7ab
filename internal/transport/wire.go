// Package transport implements C7: the request/stream wire adapter that
// routes websocket clients to a subscription engine and plain HTTP clients
// to a one-shot snapshot or health check.
package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/filter"
	"github.com/tbaderts/oms-sub001/internal/model"
)

// wireFilter is the JSON shape of a Filter as received from the client.
type wireFilter struct {
	LogicalOperator string           `json:"logicalOperator"`
	Filters         []wireFilterCond `json:"filters"`
	IncludeSnapshot *bool            `json:"includeSnapshot"`
}

type wireFilterCond struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Value2   string `json:"value2"`
}

// streamRequest is the wire shape for the combined orders+executions route.
type streamRequest struct {
	BlotterID  string     `json:"blotterId"`
	StreamType string     `json:"streamType"`
	Filter     wireFilter `json:"filter"`
}

// Blotter stream-type values a streamRequest.StreamType may carry. ORDERS and
// EXECUTIONS narrow the blotter route to a single engine; ALL (and an empty
// value, for clients that omit the field) multiplexes both.
const (
	streamTypeOrders     = "ORDERS"
	streamTypeExecutions = "EXECUTIONS"
	streamTypeAll        = "ALL"
)

// toPayload converts the wire filter into the compiler's input, applying
// the documented defaults: logicalOperator AND, includeSnapshot true.
func (w wireFilter) toPayload() filter.Payload {
	logical := filter.LogicalOp(w.LogicalOperator)
	if logical == "" {
		logical = filter.And
	}
	includeSnapshot := true
	if w.IncludeSnapshot != nil {
		includeSnapshot = *w.IncludeSnapshot
	}

	conditions := make([]filter.Condition, 0, len(w.Filters))
	for _, c := range w.Filters {
		conditions = append(conditions, filter.Condition{
			Field:    c.Field,
			Operator: filter.Operator(c.Operator),
			Value:    c.Value,
			Value2:   c.Value2,
		})
	}

	return filter.Payload{
		LogicalOperator: logical,
		Conditions:      conditions,
		IncludeSnapshot: includeSnapshot,
	}
}

// wireOrderPayload is the JSON projection of model.OrderPayload sent to clients.
type wireOrderPayload struct {
	OrderID       string          `json:"orderId"`
	ParentOrderID string          `json:"parentOrderId,omitempty"`
	RootOrderID   string          `json:"rootOrderId,omitempty"`
	ClientOrderID string          `json:"clientOrderId,omitempty"`
	Account       string          `json:"account,omitempty"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side,omitempty"`
	OrderType     string          `json:"orderType,omitempty"`
	State         string          `json:"state"`
	CancelState   string          `json:"cancelState,omitempty"`
	OrderQty      decimal.Decimal `json:"orderQty"`
	CumQty        decimal.Decimal `json:"cumQty"`
	LeavesQty     decimal.Decimal `json:"leavesQty"`
	Price         decimal.Decimal `json:"price"`
	StopPx        decimal.Decimal `json:"stopPx"`
	AvgPx         decimal.Decimal `json:"avgPx"`
	TimeInForce   string          `json:"timeInForce,omitempty"`
	SecurityID    string          `json:"securityId,omitempty"`
	SecurityType  string          `json:"securityType,omitempty"`
	ExDestination string          `json:"exDestination,omitempty"`
	Text          string          `json:"text,omitempty"`
	SendingTime   time.Time       `json:"sendingTime"`
	TransactTime  time.Time       `json:"transactTime"`
	ExpireTime    time.Time       `json:"expireTime,omitempty"`
}

// wireExecutionPayload is the JSON projection of model.ExecutionPayload.
type wireExecutionPayload struct {
	ExecID       string          `json:"execId"`
	OrderID      string          `json:"orderId"`
	LastQty      decimal.Decimal `json:"lastQty"`
	LastPx       decimal.Decimal `json:"lastPx"`
	CumQty       decimal.Decimal `json:"cumQty"`
	AvgPx        decimal.Decimal `json:"avgPx"`
	LeavesQty    decimal.Decimal `json:"leavesQty"`
	ExecType     string          `json:"execType"`
	LastMkt      string          `json:"lastMkt,omitempty"`
	LastCapacity string          `json:"lastCapacity,omitempty"`
	TransactTime time.Time       `json:"transactTime"`
	CreationDate time.Time       `json:"creationDate"`
}

// wireEvent is the envelope placed on the wire for one emitted model.Event.
// Exactly one of Order/Execution is populated, matching the event's kind.
type wireEvent struct {
	EventType      string                `json:"eventType"`
	OrderID        string                `json:"orderId,omitempty"`
	ExecID         string                `json:"execId,omitempty"`
	EventID        int64                 `json:"eventId"`
	SequenceNumber *int64                `json:"sequenceNumber,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	Order          *wireOrderPayload     `json:"order,omitempty"`
	Execution      *wireExecutionPayload `json:"execution,omitempty"`
}

func toWireEvent(e *model.Event) wireEvent {
	w := wireEvent{
		EventType: string(e.EventType),
		EventID:   e.EventID,
		Timestamp: e.EventTime,
	}
	if e.HasSequence {
		seq := e.SequenceNumber
		w.SequenceNumber = &seq
	}
	switch e.PayloadKind {
	case model.PayloadKindOrder:
		if e.Order != nil {
			w.OrderID = e.Order.OrderID
			w.Order = &wireOrderPayload{
				OrderID:       e.Order.OrderID,
				ParentOrderID: e.Order.ParentOrderID,
				RootOrderID:   e.Order.RootOrderID,
				ClientOrderID: e.Order.ClientOrderID,
				Account:       e.Order.Account,
				Symbol:        e.Order.Symbol,
				Side:          string(e.Order.Side),
				OrderType:     string(e.Order.OrderType),
				State:         string(e.Order.State),
				CancelState:   string(e.Order.CancelState),
				OrderQty:      e.Order.OrderQty,
				CumQty:        e.Order.CumQty,
				LeavesQty:     e.Order.LeavesQty,
				Price:         e.Order.Price,
				StopPx:        e.Order.StopPx,
				AvgPx:         e.Order.AvgPx,
				TimeInForce:   string(e.Order.TimeInForce),
				SecurityID:    e.Order.SecurityID,
				SecurityType:  e.Order.SecurityType,
				ExDestination: e.Order.ExDestination,
				Text:          e.Order.Text,
				SendingTime:   e.Order.SendingTime,
				TransactTime:  e.Order.TransactTime,
				ExpireTime:    e.Order.ExpireTime,
			}
		}
	case model.PayloadKindExecution:
		if e.Execution != nil {
			w.ExecID = e.Execution.ExecID
			w.OrderID = e.Execution.OrderID
			w.Execution = &wireExecutionPayload{
				ExecID:       e.Execution.ExecID,
				OrderID:      e.Execution.OrderID,
				LastQty:      e.Execution.LastQty,
				LastPx:       e.Execution.LastPx,
				CumQty:       e.Execution.CumQty,
				AvgPx:        e.Execution.AvgPx,
				LeavesQty:    e.Execution.LeavesQty,
				ExecType:     string(e.Execution.ExecType),
				LastMkt:      e.Execution.LastMkt,
				LastCapacity: e.Execution.LastCapacity,
				TransactTime: e.Execution.TransactTime,
				CreationDate: e.Execution.CreationDate,
			}
		}
	}
	return w
}

// wireControl is the inbound control envelope a client sends over the
// stream: either a demand credit grant or a cancellation.
type wireControl struct {
	Type   string `json:"type"`
	Credit int    `json:"credit"`
}

// wireErrorFrame is the outbound shape for a non-fatal or terminal error.
type wireErrorFrame struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Page    int    `json:"page,omitempty"`
	N       int    `json:"n,omitempty"`
	Message string `json:"message,omitempty"`
}
