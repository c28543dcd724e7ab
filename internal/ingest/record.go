package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

// wireOrderRecord and wireExecutionRecord mirror the upstream bus's
// JSON-encoded record body. The actual wire format is whatever the
// concrete Source implementation speaks; JSON is the lowest common
// denominator most brokers in the ecosystem carry as payload encoding, and
// keeps this decoder independent of the (unshipped) broker client.
type wireOrderRecord struct {
	EventID        int64         `json:"eventId"`
	SequenceNumber *int64        `json:"sequenceNumber,omitempty"`
	EventType      string        `json:"eventType"`
	EventTime      time.Time     `json:"eventTime"`
	Order          wireOrderBody `json:"order"`
}

type wireOrderBody struct {
	OrderID       string          `json:"orderId"`
	ParentOrderID string          `json:"parentOrderId"`
	RootOrderID   string          `json:"rootOrderId"`
	ClientOrderID string          `json:"clientOrderId"`
	Account       string          `json:"account"`
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	OrderType     string          `json:"orderType"`
	State         string          `json:"state"`
	CancelState   string          `json:"cancelState"`
	OrderQty      decimal.Decimal `json:"orderQty"`
	CumQty        decimal.Decimal `json:"cumQty"`
	LeavesQty     decimal.Decimal `json:"leavesQty"`
	Price         decimal.Decimal `json:"price"`
	StopPx        decimal.Decimal `json:"stopPx"`
	AvgPx         decimal.Decimal `json:"avgPx"`
	TimeInForce   string          `json:"timeInForce"`
	SecurityID    string          `json:"securityId"`
	SecurityType  string          `json:"securityType"`
	ExDestination string          `json:"exDestination"`
	Text          string          `json:"text"`
	SendingTime   time.Time       `json:"sendingTime"`
	TransactTime  time.Time       `json:"transactTime"`
	ExpireTime    time.Time       `json:"expireTime"`
}

type wireExecutionRecord struct {
	EventID        int64             `json:"eventId"`
	SequenceNumber *int64            `json:"sequenceNumber,omitempty"`
	EventType      string            `json:"eventType"`
	EventTime      time.Time         `json:"eventTime"`
	Execution      wireExecutionBody `json:"execution"`
}

type wireExecutionBody struct {
	ExecID       string          `json:"execId"`
	OrderID      string          `json:"orderId"`
	LastQty      decimal.Decimal `json:"lastQty"`
	LastPx       decimal.Decimal `json:"lastPx"`
	CumQty       decimal.Decimal `json:"cumQty"`
	AvgPx        decimal.Decimal `json:"avgPx"`
	LeavesQty    decimal.Decimal `json:"leavesQty"`
	ExecType     string          `json:"execType"`
	LastMkt      string          `json:"lastMkt"`
	LastCapacity string          `json:"lastCapacity"`
	TransactTime time.Time       `json:"transactTime"`
	CreationDate time.Time       `json:"creationDate"`
}

// DecodeOrderRecord decodes one upstream orders-topic record into an Event.
// A malformed record is reported as an error, which the consumer counts
// toward its poison-message threshold rather than crashing.
func DecodeOrderRecord(rec RawRecord) (*model.Event, error) {
	var w wireOrderRecord
	if err := json.Unmarshal(rec.Value, &w); err != nil {
		return nil, fmt.Errorf("decode order record: %w", err)
	}

	e := &model.Event{
		EventID:     w.EventID,
		EventTime:   w.EventTime,
		EventType:   model.EventType(w.EventType),
		Key:         w.Order.OrderID,
		PayloadKind: model.PayloadKindOrder,
		Order: &model.OrderPayload{
			OrderID:       w.Order.OrderID,
			ParentOrderID: w.Order.ParentOrderID,
			RootOrderID:   w.Order.RootOrderID,
			ClientOrderID: w.Order.ClientOrderID,
			Account:       w.Order.Account,
			Symbol:        w.Order.Symbol,
			Side:          model.OrderSide(w.Order.Side),
			OrderType:     model.OrderType(w.Order.OrderType),
			State:         model.OrderState(w.Order.State),
			CancelState:   model.CancelState(w.Order.CancelState),
			OrderQty:      w.Order.OrderQty,
			CumQty:        w.Order.CumQty,
			LeavesQty:     w.Order.LeavesQty,
			Price:         w.Order.Price,
			StopPx:        w.Order.StopPx,
			AvgPx:         w.Order.AvgPx,
			TimeInForce:   model.TimeInForce(w.Order.TimeInForce),
			SecurityID:    w.Order.SecurityID,
			SecurityType:  w.Order.SecurityType,
			ExDestination: w.Order.ExDestination,
			Text:          w.Order.Text,
			SendingTime:   w.Order.SendingTime,
			TransactTime:  w.Order.TransactTime,
			ExpireTime:    w.Order.ExpireTime,
		},
	}
	if w.SequenceNumber != nil {
		e.HasSequence = true
		e.SequenceNumber = *w.SequenceNumber
	}
	return e, nil
}

// DecodeExecutionRecord decodes one upstream executions-topic record.
func DecodeExecutionRecord(rec RawRecord) (*model.Event, error) {
	var w wireExecutionRecord
	if err := json.Unmarshal(rec.Value, &w); err != nil {
		return nil, fmt.Errorf("decode execution record: %w", err)
	}

	e := &model.Event{
		EventID:     w.EventID,
		EventTime:   w.EventTime,
		EventType:   model.EventType(w.EventType),
		Key:         w.Execution.ExecID,
		PayloadKind: model.PayloadKindExecution,
		Execution: &model.ExecutionPayload{
			ExecID:       w.Execution.ExecID,
			OrderID:      w.Execution.OrderID,
			LastQty:      w.Execution.LastQty,
			LastPx:       w.Execution.LastPx,
			CumQty:       w.Execution.CumQty,
			AvgPx:        w.Execution.AvgPx,
			LeavesQty:    w.Execution.LeavesQty,
			ExecType:     model.ExecType(w.Execution.ExecType),
			LastMkt:      w.Execution.LastMkt,
			LastCapacity: w.Execution.LastCapacity,
			TransactTime: w.Execution.TransactTime,
			CreationDate: w.Execution.CreationDate,
		},
	}
	if w.SequenceNumber != nil {
		e.HasSequence = true
		e.SequenceNumber = *w.SequenceNumber
	}
	return e, nil
}
