package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecType enumerates execution payload lifecycle markers.
type ExecType string

const (
	ExecTypeNew      ExecType = "NEW"
	ExecTypeCorrect  ExecType = "CORRECT"
	ExecTypeBust     ExecType = "BUST"
	ExecTypeSnapshot ExecType = "SNAPSHOT"
	ExecTypeCache    ExecType = "CACHE"
)

// ExecutionPayload is the read-model projection of one execution.
type ExecutionPayload struct {
	ExecID       string
	OrderID      string
	LastQty      decimal.Decimal
	LastPx       decimal.Decimal
	CumQty       decimal.Decimal
	AvgPx        decimal.Decimal
	LeavesQty    decimal.Decimal
	ExecType     ExecType
	LastMkt      string
	LastCapacity string
	TransactTime time.Time
	CreationDate time.Time
}
