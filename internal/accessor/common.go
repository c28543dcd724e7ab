package accessor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/model"
)

// stringField builds a STRING accessor from an extractor that returns the
// raw string and whether it applies to the given event.
func stringField(name string, get func(e *model.Event) (string, bool)) Accessor {
	return Accessor{Name: name, Type: String, Extractor: func(e *model.Event) Value {
		v, ok := get(e)
		if !ok {
			return Value{Type: String}
		}
		return Value{Type: String, Str: v, Present: true}
	}}
}

// enumField builds an ENUM accessor; enum comparisons reuse STRING's
// case-insensitive EQ semantics.
func enumField(name string, get func(e *model.Event) (string, bool)) Accessor {
	return Accessor{Name: name, Type: Enum, Extractor: func(e *model.Event) Value {
		v, ok := get(e)
		if !ok {
			return Value{Type: Enum}
		}
		return Value{Type: Enum, Str: v, Present: true}
	}}
}

// numberField builds a NUMBER accessor backed by arbitrary-precision decimal,
// matching the monetary semantics order and execution fields require.
func numberField(name string, get func(e *model.Event) (decimal.Decimal, bool)) Accessor {
	return Accessor{Name: name, Type: Number, Extractor: func(e *model.Event) Value {
		v, ok := get(e)
		if !ok {
			return Value{Type: Number}
		}
		return Value{Type: Number, Num: v, Present: true}
	}}
}

// timeField builds a TIMESTAMP accessor.
func timeField(name string, get func(e *model.Event) (time.Time, bool)) Accessor {
	return Accessor{Name: name, Type: Timestamp, Extractor: func(e *model.Event) Value {
		v, ok := get(e)
		if !ok || v.IsZero() {
			return Value{Type: Timestamp}
		}
		return Value{Type: Timestamp, Instant: v, Present: true}
	}}
}

// eventMetaFields registers the fields every Event carries regardless of
// payload kind: event type, key, event id and event time.
func eventMetaFields() []Accessor {
	return []Accessor{
		enumField("event_type", func(e *model.Event) (string, bool) {
			if e == nil {
				return "", false
			}
			return string(e.EventType), true
		}),
		stringField("key", func(e *model.Event) (string, bool) {
			if e == nil || e.Key == "" {
				return "", false
			}
			return e.Key, true
		}),
		numberField("event_id", func(e *model.Event) (decimal.Decimal, bool) {
			if e == nil {
				return decimal.Zero, false
			}
			return decimal.NewFromInt(e.EventID), true
		}),
		timeField("event_time", func(e *model.Event) (time.Time, bool) {
			if e == nil {
				return time.Time{}, false
			}
			return e.EventTime, true
		}),
	}
}
