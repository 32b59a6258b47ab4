/*
Package dynastore – range descriptors and intervals.

A RangeDescriptor is the declarative form callers write; ToInterval
normalises it into a bounded Interval the rest of the query engine
consumes. Malformed descriptors are rejected here, before any store
access happens.
*/
package dynastore

import (
	"fmt"
	"time"
)

// RangeDescriptor selects records whose field value falls in a range.
// Exactly one form must be used: Between (two element slice, optionally
// opened at either end) or any combination of one lower comparator
// (GT or GTE) and one upper comparator (LT or LTE).
type RangeDescriptor struct {
	Between   []any `json:"between,omitempty" yaml:"between,omitempty"`
	LowerOpen bool  `json:"lowerOpen,omitempty" yaml:"lowerOpen,omitempty"`
	UpperOpen bool  `json:"upperOpen,omitempty" yaml:"upperOpen,omitempty"`

	GT  any `json:"gt,omitempty" yaml:"gt,omitempty"`
	GTE any `json:"gte,omitempty" yaml:"gte,omitempty"`
	LT  any `json:"lt,omitempty" yaml:"lt,omitempty"`
	LTE any `json:"lte,omitempty" yaml:"lte,omitempty"`
}

// Between selects records with lo <= value <= hi.
func Between(lo, hi any) RangeDescriptor { return RangeDescriptor{Between: []any{lo, hi}} }

// GT selects records with value > v.
func GT(v any) RangeDescriptor { return RangeDescriptor{GT: v} }

// GTE selects records with value >= v.
func GTE(v any) RangeDescriptor { return RangeDescriptor{GTE: v} }

// LT selects records with value < v.
func LT(v any) RangeDescriptor { return RangeDescriptor{LT: v} }

// LTE selects records with value <= v.
func LTE(v any) RangeDescriptor { return RangeDescriptor{LTE: v} }

// Interval is the normalised form of a range: optional bounds with
// explicit inclusivity. A nil bound means unbounded on that side.
type Interval struct {
	Lower          any
	Upper          any
	LowerInclusive bool
	UpperInclusive bool
}

// equalityInterval wraps a single value as the degenerate interval [v, v].
func equalityInterval(v any) Interval {
	return Interval{Lower: v, Upper: v, LowerInclusive: true, UpperInclusive: true}
}

// isEquality reports whether the interval selects exactly one value.
func (iv Interval) isEquality() bool {
	return iv.Lower != nil && iv.Upper != nil &&
		iv.LowerInclusive && iv.UpperInclusive &&
		compareValues(iv.Lower, iv.Upper) == 0
}

// contains reports whether v falls inside the interval.
func (iv Interval) contains(v any) bool {
	if v == nil {
		return false
	}
	if iv.Lower != nil {
		c := compareValues(v, iv.Lower)
		if c < 0 || (c == 0 && !iv.LowerInclusive) {
			return false
		}
	}
	if iv.Upper != nil {
		c := compareValues(v, iv.Upper)
		if c > 0 || (c == 0 && !iv.UpperInclusive) {
			return false
		}
	}
	return true
}

// ToInterval normalises a RangeDescriptor into an Interval.
// Errors carry the InvalidRange code and are produced without touching
// any store.
func ToInterval(rd RangeDescriptor) (Interval, error) {
	if rd.Between != nil {
		if rd.GT != nil || rd.GTE != nil || rd.LT != nil || rd.LTE != nil {
			return Interval{}, NewError("Range mixes between with comparators",
				WithCode(ErrInvalidRange))
		}
		if len(rd.Between) != 2 {
			return Interval{}, NewError(
				fmt.Sprintf("Range between requires exactly two bounds, got %d", len(rd.Between)),
				WithCode(ErrInvalidRange))
		}
		iv := Interval{
			Lower: rd.Between[0], Upper: rd.Between[1],
			LowerInclusive: !rd.LowerOpen, UpperInclusive: !rd.UpperOpen,
		}
		if iv.Lower == nil || iv.Upper == nil {
			return Interval{}, NewError("Range between bounds must be non-nil",
				WithCode(ErrInvalidRange))
		}
		if compareValues(iv.Lower, iv.Upper) > 0 {
			return Interval{}, NewError("Range lower bound exceeds upper bound",
				WithCode(ErrInvalidRange))
		}
		return iv, nil
	}

	if rd.GT != nil && rd.GTE != nil {
		return Interval{}, NewError("Range declares both gt and gte",
			WithCode(ErrInvalidRange))
	}
	if rd.LT != nil && rd.LTE != nil {
		return Interval{}, NewError("Range declares both lt and lte",
			WithCode(ErrInvalidRange))
	}

	var iv Interval
	switch {
	case rd.GT != nil:
		iv.Lower, iv.LowerInclusive = rd.GT, false
	case rd.GTE != nil:
		iv.Lower, iv.LowerInclusive = rd.GTE, true
	}
	switch {
	case rd.LT != nil:
		iv.Upper, iv.UpperInclusive = rd.LT, false
	case rd.LTE != nil:
		iv.Upper, iv.UpperInclusive = rd.LTE, true
	}
	if iv.Lower == nil && iv.Upper == nil {
		return Interval{}, NewError("Empty range descriptor",
			WithCode(ErrInvalidRange))
	}
	if iv.Lower != nil && iv.Upper != nil && compareValues(iv.Lower, iv.Upper) > 0 {
		return Interval{}, NewError("Range lower bound exceeds upper bound",
			WithCode(ErrInvalidRange))
	}
	return iv, nil
}

// compareValues is the engine's total order over record values: numeric
// values (including dates) compare numerically, everything else compares
// by its printed form.
func compareValues(a, b any) int {
	an, aok := numericValue(a)
	bn, bok := numericValue(b)
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	as, bs := stringValue(a), stringValue(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// numericValue reports v as a float64 when it is any numeric kind or a
// time value.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case time.Time:
		return float64(n.UnixMilli()), true
	}
	return 0, false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
