package validator

import (
	"fmt"
	"poolsched/pkg/interval"
	"slices"
	"time"
)

const (
	BoundLower = "lower"
	BoundUpper = "upper"

	ModeMin = "min"
	ModeMax = "max"
)

// Lane and locker limits.
const (
	LaneMinDuration   = 9 * time.Hour
	LockerMaxDuration = 20 * 24 * time.Hour
)

// GridMinutes are the minute values a reservation bound may fall on.
var GridMinutes = []int{0, 30}

// PeriodRule checks one property of a period. Rules are pure.
type PeriodRule func(p interval.Period) error

// OutOfGridError reports a bound whose minute is not in Allowed. Minute is -1
// for an unbounded side.
type OutOfGridError struct {
	Bound   string
	Minute  int
	Allowed []int
}

func (e *OutOfGridError) Error() string {
	if e.Minute < 0 {
		return fmt.Sprintf("the %s bound of the range is unbounded; it must be in %v", e.Bound, e.Allowed)
	}
	return fmt.Sprintf("the %s bound of the range is at minute %d; it must be in %v", e.Bound, e.Minute, e.Allowed)
}

// DurationRangeError reports a period shorter than a minimum or longer than
// a maximum.
type DurationRangeError struct {
	Mode      string
	Bound     time.Duration
	Actual    time.Duration
	Unbounded bool
}

func (e *DurationRangeError) Error() string {
	if e.Unbounded {
		return fmt.Sprintf("the duration of an unbounded range cannot be checked against %s %s", e.Mode, e.Bound)
	}
	if e.Mode == ModeMin {
		return fmt.Sprintf("the duration %s must be greater than or equal to %s", e.Actual, e.Bound)
	}
	return fmt.Sprintf("the duration %s must be less than or equal to %s", e.Actual, e.Bound)
}

// SubMinutePrecisionError reports a bound with nonzero seconds or
// nanoseconds, or an unbounded side.
type SubMinutePrecisionError struct {
	Bound string
}

func (e *SubMinutePrecisionError) Error() string {
	return fmt.Sprintf("seconds and sub-seconds of the %s bound must be zero", e.Bound)
}

// MinuteWhitelist fails for each bound that is missing or whose minute is
// not one of allowed.
func MinuteWhitelist(allowed ...int) PeriodRule {
	allowed = append([]int(nil), allowed...)
	return func(p interval.Period) error {
		var errs ValidationErrors
		check := func(name string, t *time.Time) {
			if t == nil {
				errs = append(errs, fieldError(&OutOfGridError{Bound: name, Minute: -1, Allowed: allowed}))
				return
			}
			if !slices.Contains(allowed, t.Minute()) {
				errs = append(errs, fieldError(&OutOfGridError{Bound: name, Minute: t.Minute(), Allowed: allowed}))
			}
		}
		check(BoundLower, p.Lower)
		check(BoundUpper, p.Upper)
		return result(errs)
	}
}

// MinDuration requires upper - lower >= d.
func MinDuration(d time.Duration) PeriodRule {
	return func(p interval.Period) error {
		actual, ok := interval.Duration(p)
		if !ok {
			return &DurationRangeError{Mode: ModeMin, Bound: d, Unbounded: true}
		}
		if actual < d {
			return &DurationRangeError{Mode: ModeMin, Bound: d, Actual: actual}
		}
		return nil
	}
}

// MaxDuration requires upper - lower <= d.
func MaxDuration(d time.Duration) PeriodRule {
	return func(p interval.Period) error {
		actual, ok := interval.Duration(p)
		if !ok {
			return &DurationRangeError{Mode: ModeMax, Bound: d, Unbounded: true}
		}
		if actual > d {
			return &DurationRangeError{Mode: ModeMax, Bound: d, Actual: actual}
		}
		return nil
	}
}

func ZeroSubMinute() PeriodRule {
	return func(p interval.Period) error {
		var errs ValidationErrors
		check := func(name string, t *time.Time) {
			if t == nil || t.Second() != 0 || t.Nanosecond() != 0 {
				errs = append(errs, fieldError(&SubMinutePrecisionError{Bound: name}))
			}
		}
		check(BoundLower, p.Lower)
		check(BoundUpper, p.Upper)
		return result(errs)
	}
}

// Apply runs every rule against p and collects all failures.
func Apply(p interval.Period, rules ...PeriodRule) ValidationErrors {
	var errs ValidationErrors
	for _, rule := range rules {
		err := rule(p)
		if err == nil {
			continue
		}
		if many, ok := err.(ValidationErrors); ok {
			errs = append(errs, many...)
			continue
		}
		errs = append(errs, fieldError(err))
	}
	return errs
}

func LaneRules() []PeriodRule {
	return []PeriodRule{
		MinuteWhitelist(GridMinutes...),
		MinDuration(LaneMinDuration),
		ZeroSubMinute(),
	}
}

func LockerRules() []PeriodRule {
	return []PeriodRule{
		MinuteWhitelist(GridMinutes...),
		MaxDuration(LockerMaxDuration),
		ZeroSubMinute(),
	}
}

func fieldError(err error) ValidationError {
	return ValidationError{Field: "Period", Message: err.Error(), Err: err}
}
