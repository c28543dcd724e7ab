package queryclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

// wireOrderPayload mirrors the external query API's order JSON shape.
type wireOrderPayload struct {
	OrderID       string `json:"orderId"`
	ParentOrderID string `json:"parentOrderId"`
	RootOrderID   string `json:"rootOrderId"`
	ClientOrderID string `json:"clientOrderId"`
	Account       string `json:"account"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	OrderType     string `json:"orderType"`
	State         string `json:"state"`
	CancelState   string `json:"cancelState"`
	OrderQty      string `json:"orderQty"`
	CumQty        string `json:"cumQty"`
	LeavesQty     string `json:"leavesQty"`
	Price         string `json:"price"`
	StopPx        string `json:"stopPx"`
	AvgPx         string `json:"avgPx"`
	TimeInForce   string `json:"timeInForce"`
	SecurityID    string `json:"securityId"`
	SecurityType  string `json:"securityType"`
	ExDestination string `json:"exDestination"`
	Text          string `json:"text"`
	SendingTime   string `json:"sendingTime"`
	TransactTime  string `json:"transactTime"`
	ExpireTime    string `json:"expireTime"`
}

type wireExecutionPayload struct {
	ExecID       string `json:"execId"`
	OrderID      string `json:"orderId"`
	LastQty      string `json:"lastQty"`
	LastPx       string `json:"lastPx"`
	CumQty       string `json:"cumQty"`
	AvgPx        string `json:"avgPx"`
	LeavesQty    string `json:"leavesQty"`
	ExecType     string `json:"execType"`
	LastMkt      string `json:"lastMkt"`
	LastCapacity string `json:"lastCapacity"`
	TransactTime string `json:"transactTime"`
	CreationDate string `json:"creationDate"`
}

func parseOptionalDecimal(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseOptionalTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// OrderDecoder unmarshals one page of the orders snapshot query into Events
// with event_type SNAPSHOT.
func OrderDecoder(raw []byte) ([]*model.Event, bool, error) {
	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode order snapshot page: %w", err)
	}

	events := make([]*model.Event, 0, len(p.Orders))
	for _, wo := range p.Orders {
		var wp wireOrderPayload
		if err := json.Unmarshal(wo.Order, &wp); err != nil {
			return nil, false, fmt.Errorf("decode order payload %d: %w", wo.EventID, err)
		}
		events = append(events, &model.Event{
			EventID:     wo.EventID,
			EventTime:   parseOptionalTime(wp.TransactTime),
			EventType:   model.EventTypeSnapshot,
			Key:         wp.OrderID,
			PayloadKind: model.PayloadKindOrder,
			Order: &model.OrderPayload{
				OrderID:       wp.OrderID,
				ParentOrderID: wp.ParentOrderID,
				RootOrderID:   wp.RootOrderID,
				ClientOrderID: wp.ClientOrderID,
				Account:       wp.Account,
				Symbol:        wp.Symbol,
				Side:          model.OrderSide(wp.Side),
				OrderType:     model.OrderType(wp.OrderType),
				State:         model.OrderState(wp.State),
				CancelState:   model.CancelState(wp.CancelState),
				OrderQty:      parseOptionalDecimal(wp.OrderQty),
				CumQty:        parseOptionalDecimal(wp.CumQty),
				LeavesQty:     parseOptionalDecimal(wp.LeavesQty),
				Price:         parseOptionalDecimal(wp.Price),
				StopPx:        parseOptionalDecimal(wp.StopPx),
				AvgPx:         parseOptionalDecimal(wp.AvgPx),
				TimeInForce:   model.TimeInForce(wp.TimeInForce),
				SecurityID:    wp.SecurityID,
				SecurityType:  wp.SecurityType,
				ExDestination: wp.ExDestination,
				Text:          wp.Text,
				SendingTime:   parseOptionalTime(wp.SendingTime),
				TransactTime:  parseOptionalTime(wp.TransactTime),
				ExpireTime:    parseOptionalTime(wp.ExpireTime),
			},
		})
	}
	return events, p.HasNextPage, nil
}

// ExecutionDecoder unmarshals one page of the executions snapshot query
// response.
func ExecutionDecoder(raw []byte) ([]*model.Event, bool, error) {
	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode execution snapshot page: %w", err)
	}

	events := make([]*model.Event, 0, len(p.Executions))
	for _, we := range p.Executions {
		var wp wireExecutionPayload
		if err := json.Unmarshal(we.Execution, &wp); err != nil {
			return nil, false, fmt.Errorf("decode execution payload %d: %w", we.EventID, err)
		}
		events = append(events, &model.Event{
			EventID:     we.EventID,
			EventTime:   parseOptionalTime(wp.TransactTime),
			EventType:   model.EventTypeSnapshot,
			Key:         wp.ExecID,
			PayloadKind: model.PayloadKindExecution,
			Execution: &model.ExecutionPayload{
				ExecID:       wp.ExecID,
				OrderID:      wp.OrderID,
				LastQty:      parseOptionalDecimal(wp.LastQty),
				LastPx:       parseOptionalDecimal(wp.LastPx),
				CumQty:       parseOptionalDecimal(wp.CumQty),
				AvgPx:        parseOptionalDecimal(wp.AvgPx),
				LeavesQty:    parseOptionalDecimal(wp.LeavesQty),
				ExecType:     model.ExecType(wp.ExecType),
				LastMkt:      wp.LastMkt,
				LastCapacity: wp.LastCapacity,
				TransactTime: parseOptionalTime(wp.TransactTime),
				CreationDate: parseOptionalTime(wp.CreationDate),
			},
		})
	}
	return events, p.HasNextPage, nil
}
