package interval

import (
	"fmt"
	"time"
)

// Bound is satisfied by values that can order themselves against another
// value of the same type. time.Time already does.
type Bound[T any] interface {
	Compare(T) int
}

// Interval is a half-open range [Lower, Upper). A nil bound is unbounded in
// that direction. Equal bounds denote the empty interval.
type Interval[T Bound[T]] struct {
	Lower *T `json:"lower" bson:"lower" yaml:"lower"`
	Upper *T `json:"upper" bson:"upper" yaml:"upper"`
}

// Period is a range of instants.
type Period = Interval[time.Time]

// IntRange is a range of whole numbers (feet, hour of day).
type IntRange = Interval[Int]

// Int is an int that satisfies Bound.
type Int int

func (i Int) Compare(j Int) int {
	switch {
	case i < j:
		return -1
	case i > j:
		return 1
	}
	return 0
}

// InvalidRangeError is returned when a range is built with lower > upper.
type InvalidRangeError struct {
	Lower string
	Upper string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: lower bound %s is after upper bound %s", e.Lower, e.Upper)
}

// New builds an interval from two optional endpoints.
func New[T Bound[T]](lower, upper *T) (Interval[T], error) {
	if lower != nil && upper != nil && (*lower).Compare(*upper) > 0 {
		return Interval[T]{}, &InvalidRangeError{
			Lower: fmt.Sprint(*lower),
			Upper: fmt.Sprint(*upper),
		}
	}
	return Interval[T]{Lower: copyOf(lower), Upper: copyOf(upper)}, nil
}

// Between is New for two present endpoints.
func Between[T Bound[T]](lower, upper T) (Interval[T], error) {
	return New(&lower, &upper)
}

// MustBetween panics on an invalid range. Intended for literals and tests.
func MustBetween[T Bound[T]](lower, upper T) Interval[T] {
	iv, err := Between(lower, upper)
	if err != nil {
		panic(err)
	}
	return iv
}

// Unbounded returns (-inf, +inf).
func Unbounded[T Bound[T]]() Interval[T] {
	return Interval[T]{}
}

func (iv Interval[T]) LowerInclusive() bool { return true }
func (iv Interval[T]) UpperInclusive() bool { return false }

func (iv Interval[T]) IsUnboundedLower() bool { return iv.Lower == nil }
func (iv Interval[T]) IsUnboundedUpper() bool { return iv.Upper == nil }

// IsEmpty reports whether both bounds are set and equal (or inverted, which
// New never produces but a decoded value might).
func (iv Interval[T]) IsEmpty() bool {
	return iv.Lower != nil && iv.Upper != nil && (*iv.Lower).Compare(*iv.Upper) >= 0
}

// Overlaps reports whether the two intervals share at least one point.
func (iv Interval[T]) Overlaps(other Interval[T]) bool {
	if iv.IsEmpty() || other.IsEmpty() {
		return false
	}
	// a.lower < b.upper && b.lower < a.upper, with nil as -inf / +inf
	if iv.Lower != nil && other.Upper != nil && (*iv.Lower).Compare(*other.Upper) >= 0 {
		return false
	}
	if other.Lower != nil && iv.Upper != nil && (*other.Lower).Compare(*iv.Upper) >= 0 {
		return false
	}
	return true
}

// Contains reports whether lower <= p < upper.
func (iv Interval[T]) Contains(p T) bool {
	if iv.IsEmpty() {
		return false
	}
	if iv.Lower != nil && (*iv.Lower).Compare(p) > 0 {
		return false
	}
	if iv.Upper != nil && (*iv.Upper).Compare(p) <= 0 {
		return false
	}
	return true
}

// Equal compares bounds, treating two nil bounds as equal.
func (iv Interval[T]) Equal(other Interval[T]) bool {
	return boundEqual(iv.Lower, other.Lower) && boundEqual(iv.Upper, other.Upper)
}

// WithLower returns a copy with the lower bound replaced. No ordering check is
// made so that partially observed windows can be recorded as they happen.
func (iv Interval[T]) WithLower(lower *T) Interval[T] {
	return Interval[T]{Lower: copyOf(lower), Upper: copyOf(iv.Upper)}
}

// WithUpper is the counterpart of WithLower.
func (iv Interval[T]) WithUpper(upper *T) Interval[T] {
	return Interval[T]{Lower: copyOf(iv.Lower), Upper: copyOf(upper)}
}

func (iv Interval[T]) String() string {
	lower, upper := "-inf", "+inf"
	if iv.Lower != nil {
		lower = formatBound(*iv.Lower)
	}
	if iv.Upper != nil {
		upper = formatBound(*iv.Upper)
	}
	return "[" + lower + ", " + upper + ")"
}

// Duration returns upper - lower. ok is false when either side is unbounded.
func Duration(p Period) (d time.Duration, ok bool) {
	if p.Lower == nil || p.Upper == nil {
		return 0, false
	}
	return p.Upper.Sub(*p.Lower), true
}

func formatBound(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func boundEqual[T Bound[T]](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return (*a).Compare(*b) == 0
}

func copyOf[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
