package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbaderts/oms-sub001/internal/accessor"
)

// buildEvaluator parses a condition's wire-level Value/Value2 into the
// field's runtime type and returns a closure over the parsed values, so the
// hot path performs no parsing and no allocation.
func buildEvaluator(t accessor.SemanticType, c Condition) (func(accessor.Value) bool, error) {
	switch t {
	case accessor.String, accessor.Enum:
		return buildStringEvaluator(c)
	case accessor.Number:
		return buildNumberEvaluator(c)
	case accessor.Timestamp:
		return buildTimestampEvaluator(c)
	default:
		return nil, fmt.Errorf("unsupported field type %s", t)
	}
}

func buildStringEvaluator(c Condition) (func(accessor.Value) bool, error) {
	want := strings.ToLower(c.Value)

	switch c.Operator {
	case EQ:
		return func(v accessor.Value) bool {
			return v.Present && strings.EqualFold(v.Str, c.Value)
		}, nil
	case LIKE:
		return func(v accessor.Value) bool {
			return v.Present && strings.Contains(strings.ToLower(v.Str), want)
		}, nil
	case GT:
		return func(v accessor.Value) bool { return v.Present && v.Str > c.Value }, nil
	case GTE:
		return func(v accessor.Value) bool { return v.Present && v.Str >= c.Value }, nil
	case LT:
		return func(v accessor.Value) bool { return v.Present && v.Str < c.Value }, nil
	case LTE:
		return func(v accessor.Value) bool { return v.Present && v.Str <= c.Value }, nil
	case BETWEEN:
		if c.Value2 == "" {
			return nil, fmt.Errorf("BETWEEN requires value2")
		}
		if c.Value > c.Value2 {
			return nil, fmt.Errorf("BETWEEN endpoints are swapped (%q > %q)", c.Value, c.Value2)
		}
		lo, hi := c.Value, c.Value2
		return func(v accessor.Value) bool { return v.Present && v.Str >= lo && v.Str <= hi }, nil
	default:
		return nil, fmt.Errorf("operator %s is not supported for string fields", c.Operator)
	}
}

func buildNumberEvaluator(c Condition) (func(accessor.Value) bool, error) {
	parse := func(raw string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("malformed numeric value %q: %w", raw, err)
		}
		return d, nil
	}

	switch c.Operator {
	case EQ:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Num.Equal(want) }, nil
	case GT:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Num.GreaterThan(want) }, nil
	case GTE:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Num.GreaterThanOrEqual(want) }, nil
	case LT:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Num.LessThan(want) }, nil
	case LTE:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Num.LessThanOrEqual(want) }, nil
	case BETWEEN:
		if c.Value2 == "" {
			return nil, fmt.Errorf("BETWEEN requires value2")
		}
		lo, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		hi, err := parse(c.Value2)
		if err != nil {
			return nil, err
		}
		if lo.GreaterThan(hi) {
			return nil, fmt.Errorf("BETWEEN endpoints are swapped (%s > %s)", lo, hi)
		}
		return func(v accessor.Value) bool {
			return v.Present && v.Num.GreaterThanOrEqual(lo) && v.Num.LessThanOrEqual(hi)
		}, nil
	default:
		return nil, fmt.Errorf("operator %s is not supported for numeric fields", c.Operator)
	}
}

func buildTimestampEvaluator(c Condition) (func(accessor.Value) bool, error) {
	parse := func(raw string) (time.Time, error) {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", raw, err)
		}
		return t, nil
	}

	switch c.Operator {
	case EQ:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Instant.Equal(want) }, nil
	case GT:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Instant.After(want) }, nil
	case GTE:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool {
			return v.Present && !v.Instant.Before(want)
		}, nil
	case LT:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool { return v.Present && v.Instant.Before(want) }, nil
	case LTE:
		want, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		return func(v accessor.Value) bool {
			return v.Present && !v.Instant.After(want)
		}, nil
	case BETWEEN:
		if c.Value2 == "" {
			return nil, fmt.Errorf("BETWEEN requires value2")
		}
		lo, err := parse(c.Value)
		if err != nil {
			return nil, err
		}
		hi, err := parse(c.Value2)
		if err != nil {
			return nil, err
		}
		if lo.After(hi) {
			return nil, fmt.Errorf("BETWEEN endpoints are swapped (%s > %s)", lo, hi)
		}
		return func(v accessor.Value) bool {
			return v.Present && !v.Instant.Before(lo) && !v.Instant.After(hi)
		}, nil
	default:
		return nil, fmt.Errorf("operator %s is not supported for timestamp fields", c.Operator)
	}
}
