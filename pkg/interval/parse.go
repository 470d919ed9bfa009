package interval

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout accepts "MM/DD/YYYY".
	DateLayout = "01/02/2006"
	// DateTimeLayout accepts "MM/DD/YYYY (HH:MM)".
	DateTimeLayout = "01/02/2006 (15:04)"

	RangeSeparator = " - "
)

// ParseError reports input that does not match the expected layout.
type ParseError struct {
	Input  string
	Layout string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse %q as %q: %v", e.Input, e.Layout, e.Err)
	}
	return fmt.Sprintf("cannot parse %q as %q", e.Input, e.Layout)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseDate parses "MM/DD/YYYY" as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return parse(s, DateLayout, loc)
}

// ParseDateTime parses "MM/DD/YYYY (HH:MM)" in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	return parse(s, DateTimeLayout, loc)
}

// ParseDateRange parses "MM/DD/YYYY - MM/DD/YYYY".
func ParseDateRange(s string, loc *time.Location) (Period, error) {
	return parseRange(s, DateLayout, loc)
}

// ParseDateTimeRange parses "MM/DD/YYYY (HH:MM) - MM/DD/YYYY (HH:MM)".
func ParseDateTimeRange(s string, loc *time.Location) (Period, error) {
	return parseRange(s, DateTimeLayout, loc)
}

// RangeFromStrings combines two already split values of the same layout.
func RangeFromStrings(lower, upper, layout string, loc *time.Location) (Period, error) {
	lo, err := parse(lower, layout, loc)
	if err != nil {
		return Period{}, err
	}
	hi, err := parse(upper, layout, loc)
	if err != nil {
		return Period{}, err
	}
	return Between(lo, hi)
}

func parseRange(s, layout string, loc *time.Location) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), RangeSeparator)
	if len(parts) != 2 {
		return Period{}, &ParseError{
			Input:  s,
			Layout: layout + RangeSeparator + layout,
			Err:    fmt.Errorf("expected 2 values separated by %q, got %d", RangeSeparator, len(parts)),
		}
	}
	return RangeFromStrings(parts[0], parts[1], layout, loc)
}

func parse(s, layout string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, &ParseError{Input: s, Layout: layout, Err: err}
	}
	return t, nil
}
