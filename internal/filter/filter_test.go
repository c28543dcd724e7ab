package filter

import (
	"testing"
	"time"

	"github.com/tbaderts/oms-sub001/internal/accessor"
	"github.com/tbaderts/oms-sub001/internal/model"
	"github.com/shopspring/decimal"
)

func newOrderEvent(symbol string, price string, state model.OrderState, sendingTime time.Time) *model.Event {
	p := decimal.RequireFromString(price)
	return &model.Event{
		EventID:     1,
		EventType:   model.EventTypeCreate,
		PayloadKind: model.PayloadKindOrder,
		Order: &model.OrderPayload{
			Symbol:      symbol,
			Price:       p,
			State:       state,
			SendingTime: sendingTime,
		},
	}
}

func TestCompileZeroConditionsMatchesAll(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	pred, err := Compile(Payload{}, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !pred(newOrderEvent("AAPL", "10", model.OrderStateNew, time.Now())) {
		t.Fatalf("expected zero-condition filter to match everything")
	}
}

func TestCompileUnknownFieldRejected(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	_, err := Compile(Payload{Conditions: []Condition{{Field: "nope", Operator: EQ, Value: "x"}}}, reg)
	var ife *InvalidFilterError
	if err == nil {
		t.Fatalf("expected error")
	}
	if !asInvalidFilterError(err, &ife) {
		t.Fatalf("expected InvalidFilterError, got %T: %v", err, err)
	}
	if ife.Field != "nope" {
		t.Fatalf("expected field %q, got %q", "nope", ife.Field)
	}
}

func TestCompileBetweenSwappedEndpointsRejected(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	_, err := Compile(Payload{Conditions: []Condition{
		{Field: "price", Operator: BETWEEN, Value: "100", Value2: "10"},
	}}, reg)
	if err == nil {
		t.Fatalf("expected swapped BETWEEN endpoints to be rejected")
	}
}

func TestCompileLikeOnNumericFieldRejected(t *testing.T) {
	// No boolean fields are currently registered on OrderPayload, so the
	// operator/type compatibility check is exercised through LIKE's
	// string-only requirement instead.
	reg := accessor.BuildOrderRegistry()
	_, err := Compile(Payload{Conditions: []Condition{
		{Field: "price", Operator: LIKE, Value: "1"},
	}}, reg)
	if err == nil {
		t.Fatalf("expected LIKE on a numeric field to be rejected")
	}
}

func TestEvaluateEQCaseInsensitive(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	pred, err := Compile(Payload{Conditions: []Condition{{Field: "symbol", Operator: EQ, Value: "aapl"}}}, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !pred(newOrderEvent("AAPL", "10", model.OrderStateNew, time.Now())) {
		t.Fatalf("expected case-insensitive EQ to match")
	}
	if pred(newOrderEvent("MSFT", "10", model.OrderStateNew, time.Now())) {
		t.Fatalf("expected non-matching symbol to fail")
	}
}

func TestEvaluateMissingFieldNeverMatches(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	pred, err := Compile(Payload{Conditions: []Condition{{Field: "symbol", Operator: LIKE, Value: "aap"}}}, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	emptyEvent := &model.Event{EventType: model.EventTypeCreate, PayloadKind: model.PayloadKindOrder}
	if pred(emptyEvent) {
		t.Fatalf("expected missing field to yield false, not true")
	}
}

func TestEvaluateBetweenClosedInterval(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	pred, err := Compile(Payload{Conditions: []Condition{
		{Field: "price", Operator: BETWEEN, Value: "10", Value2: "20"},
	}}, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	cases := []struct {
		price string
		want  bool
	}{
		{"10", true},
		{"20", true},
		{"15", true},
		{"9.99", false},
		{"20.01", false},
	}
	for _, c := range cases {
		got := pred(newOrderEvent("AAPL", c.price, model.OrderStateNew, time.Now()))
		if got != c.want {
			t.Errorf("price %s: got %v, want %v", c.price, got, c.want)
		}
	}
}

func TestEvaluateORLogicalOperator(t *testing.T) {
	reg := accessor.BuildOrderRegistry()
	pred, err := Compile(Payload{
		LogicalOperator: Or,
		Conditions: []Condition{
			{Field: "symbol", Operator: EQ, Value: "AAPL"},
			{Field: "symbol", Operator: EQ, Value: "MSFT"},
		},
	}, reg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !pred(newOrderEvent("MSFT", "1", model.OrderStateNew, time.Now())) {
		t.Fatalf("expected OR match on second condition")
	}
	if pred(newOrderEvent("GOOG", "1", model.OrderStateNew, time.Now())) {
		t.Fatalf("expected no match for unrelated symbol")
	}
}

func asInvalidFilterError(err error, target **InvalidFilterError) bool {
	ife, ok := err.(*InvalidFilterError)
	if !ok {
		return false
	}
	*target = ife
	return true
}
