package accessor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

func execStr(name string, get func(*model.ExecutionPayload) string) Accessor {
	return stringField(name, func(e *model.Event) (string, bool) {
		if e == nil || e.Execution == nil {
			return "", false
		}
		return get(e.Execution), true
	})
}

func execEnum(name string, get func(*model.ExecutionPayload) string) Accessor {
	return enumField(name, func(e *model.Event) (string, bool) {
		if e == nil || e.Execution == nil {
			return "", false
		}
		return get(e.Execution), true
	})
}

func execNum(name string, get func(*model.ExecutionPayload) decimal.Decimal) Accessor {
	return numberField(name, func(e *model.Event) (decimal.Decimal, bool) {
		if e == nil || e.Execution == nil {
			return decimal.Zero, false
		}
		return get(e.Execution), true
	})
}

func execTime(name string, get func(*model.ExecutionPayload) time.Time) Accessor {
	return timeField(name, func(e *model.Event) (time.Time, bool) {
		if e == nil || e.Execution == nil {
			return time.Time{}, false
		}
		return get(e.Execution), true
	})
}

// BuildExecutionRegistry registers every filterable ExecutionPayload field.
func BuildExecutionRegistry() *Registry {
	fields := []Accessor{
		execStr("exec_id", func(x *model.ExecutionPayload) string { return x.ExecID }),
		execStr("order_id", func(x *model.ExecutionPayload) string { return x.OrderID }),
		execNum("last_qty", func(x *model.ExecutionPayload) decimal.Decimal { return x.LastQty }),
		execNum("last_px", func(x *model.ExecutionPayload) decimal.Decimal { return x.LastPx }),
		execNum("cum_qty", func(x *model.ExecutionPayload) decimal.Decimal { return x.CumQty }),
		execNum("avg_px", func(x *model.ExecutionPayload) decimal.Decimal { return x.AvgPx }),
		execNum("leaves_qty", func(x *model.ExecutionPayload) decimal.Decimal { return x.LeavesQty }),
		execEnum("exec_type", func(x *model.ExecutionPayload) string { return string(x.ExecType) }),
		execStr("last_mkt", func(x *model.ExecutionPayload) string { return x.LastMkt }),
		execStr("last_capacity", func(x *model.ExecutionPayload) string { return x.LastCapacity }),
		execTime("transact_time", func(x *model.ExecutionPayload) time.Time { return x.TransactTime }),
		execTime("creation_date", func(x *model.ExecutionPayload) time.Time { return x.CreationDate }),
	}
	fields = append(fields, eventMetaFields()...)
	return NewRegistry(fields)
}

// BuildBlotterRegistry merges order and execution fields for the unified
// "blotter.stream" route. A field present on only one payload kind
// simply yields Present=false on events of the other kind, which the
// evaluator already treats as a non-match — no special-casing needed.
func BuildBlotterRegistry() *Registry {
	orders := BuildOrderRegistry()
	executions := BuildExecutionRegistry()

	merged := make(map[string]Accessor, len(orders.fields)+len(executions.fields))
	for name, a := range orders.fields {
		merged[name] = a
	}
	for name, execAcc := range executions.fields {
		if orderAcc, exists := merged[name]; exists {
			merged[name] = Accessor{
				Name: name,
				Type: orderAcc.Type,
				Extractor: func(e *model.Event) Value {
					if e != nil && e.PayloadKind == model.PayloadKindExecution {
						return execAcc.Extractor(e)
					}
					return orderAcc.Extractor(e)
				},
			}
			continue
		}
		merged[name] = execAcc
	}
	return &Registry{fields: merged}
}
