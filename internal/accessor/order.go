package accessor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

func orderStr(name string, get func(*model.OrderPayload) string) Accessor {
	return stringField(name, func(e *model.Event) (string, bool) {
		if e == nil || e.Order == nil {
			return "", false
		}
		return get(e.Order), true
	})
}

func orderEnum(name string, get func(*model.OrderPayload) string) Accessor {
	return enumField(name, func(e *model.Event) (string, bool) {
		if e == nil || e.Order == nil {
			return "", false
		}
		return get(e.Order), true
	})
}

func orderNum(name string, get func(*model.OrderPayload) decimal.Decimal) Accessor {
	return numberField(name, func(e *model.Event) (decimal.Decimal, bool) {
		if e == nil || e.Order == nil {
			return decimal.Zero, false
		}
		return get(e.Order), true
	})
}

func orderTime(name string, get func(*model.OrderPayload) time.Time) Accessor {
	return timeField(name, func(e *model.Event) (time.Time, bool) {
		if e == nil || e.Order == nil {
			return time.Time{}, false
		}
		return get(e.Order), true
	})
}

// BuildOrderRegistry registers every filterable OrderPayload field,
// plus the Event-level metadata fields common to both payload kinds.
func BuildOrderRegistry() *Registry {
	fields := []Accessor{
		orderStr("order_id", func(o *model.OrderPayload) string { return o.OrderID }),
		orderStr("parent_order_id", func(o *model.OrderPayload) string { return o.ParentOrderID }),
		orderStr("root_order_id", func(o *model.OrderPayload) string { return o.RootOrderID }),
		orderStr("client_order_id", func(o *model.OrderPayload) string { return o.ClientOrderID }),
		orderStr("account", func(o *model.OrderPayload) string { return o.Account }),
		orderStr("symbol", func(o *model.OrderPayload) string { return o.Symbol }),
		orderEnum("side", func(o *model.OrderPayload) string { return string(o.Side) }),
		orderEnum("order_type", func(o *model.OrderPayload) string { return string(o.OrderType) }),
		orderEnum("state", func(o *model.OrderPayload) string { return string(o.State) }),
		orderEnum("cancel_state", func(o *model.OrderPayload) string { return string(o.CancelState) }),
		orderNum("order_qty", func(o *model.OrderPayload) decimal.Decimal { return o.OrderQty }),
		orderNum("cum_qty", func(o *model.OrderPayload) decimal.Decimal { return o.CumQty }),
		orderNum("leaves_qty", func(o *model.OrderPayload) decimal.Decimal { return o.LeavesQty }),
		orderNum("price", func(o *model.OrderPayload) decimal.Decimal { return o.Price }),
		orderNum("stop_px", func(o *model.OrderPayload) decimal.Decimal { return o.StopPx }),
		orderNum("avg_px", func(o *model.OrderPayload) decimal.Decimal { return o.AvgPx }),
		orderEnum("time_in_force", func(o *model.OrderPayload) string { return string(o.TimeInForce) }),
		orderStr("security_id", func(o *model.OrderPayload) string { return o.SecurityID }),
		orderStr("security_type", func(o *model.OrderPayload) string { return o.SecurityType }),
		orderStr("ex_destination", func(o *model.OrderPayload) string { return o.ExDestination }),
		orderStr("text", func(o *model.OrderPayload) string { return o.Text }),
		orderTime("sending_time", func(o *model.OrderPayload) time.Time { return o.SendingTime }),
		orderTime("transact_time", func(o *model.OrderPayload) time.Time { return o.TransactTime }),
		orderTime("expire_time", func(o *model.OrderPayload) time.Time { return o.ExpireTime }),
	}
	fields = append(fields, eventMetaFields()...)
	return NewRegistry(fields)
}
