package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState enumerates the order lifecycle states.
type OrderState string

const (
	OrderStateNew    OrderState = "NEW"
	OrderStateUnack  OrderState = "UNACK"
	OrderStateLive   OrderState = "LIVE"
	OrderStateFilled OrderState = "FILLED"
	OrderStateCxl    OrderState = "CXL"
	OrderStateRej    OrderState = "REJ"
	OrderStateClosed OrderState = "CLOSED"
	OrderStateExp    OrderState = "EXP"
)

// TerminalOrderStates is the subset of OrderState used by C5's eviction policy.
var TerminalOrderStates = map[OrderState]struct{}{
	OrderStateFilled: {},
	OrderStateCxl:    {},
	OrderStateRej:    {},
	OrderStateClosed: {},
	OrderStateExp:    {},
}

// IsTerminal reports whether the state will see no further lifecycle changes.
func (s OrderState) IsTerminal() bool {
	_, ok := TerminalOrderStates[s]
	return ok
}

// OrderSide is the buy/sell direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType enumerates the supported order types.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// TimeInForce enumerates the order's time-in-force instruction.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceDAY TimeInForce = "DAY"
)

// CancelState tracks the order's pending-cancel sub-state independent of its
// primary lifecycle state.
type CancelState string

const (
	CancelStateNone     CancelState = "NONE"
	CancelStatePending  CancelState = "PENDING_CANCEL"
	CancelStateComplete CancelState = "CANCELLED"
)

// OrderPayload is the read-model projection of one order.
type OrderPayload struct {
	OrderID       string
	ParentOrderID string
	RootOrderID   string
	ClientOrderID string
	Account       string
	Symbol        string
	Side          OrderSide
	OrderType     OrderType
	State         OrderState
	CancelState   CancelState
	OrderQty      decimal.Decimal
	CumQty        decimal.Decimal
	LeavesQty     decimal.Decimal
	Price         decimal.Decimal
	StopPx        decimal.Decimal
	AvgPx         decimal.Decimal
	TimeInForce   TimeInForce
	SecurityID    string
	SecurityType  string
	ExDestination string
	Text          string
	SendingTime   time.Time
	TransactTime  time.Time
	ExpireTime    time.Time
}
