package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestThisWeek(t *testing.T) {
	// Wednesday
	now := time.Date(2031, time.January, 15, 13, 45, 0, 0, time.UTC)

	sunday := ThisWeek(now, true)
	assert.True(t, sunday.Lower.Equal(day(2031, time.January, 12)))
	assert.True(t, sunday.Upper.Equal(day(2031, time.January, 18)))

	monday := ThisWeek(now, false)
	assert.True(t, monday.Lower.Equal(day(2031, time.January, 13)))
	assert.True(t, monday.Upper.Equal(day(2031, time.January, 19)))
}

func TestThisWeek_OnFirstDay(t *testing.T) {
	sun := time.Date(2031, time.January, 12, 8, 0, 0, 0, time.UTC)
	assert.True(t, ThisWeek(sun, true).Lower.Equal(day(2031, time.January, 12)))
	assert.True(t, ThisWeek(sun, false).Lower.Equal(day(2031, time.January, 6)))

	mon := time.Date(2031, time.January, 13, 8, 0, 0, 0, time.UTC)
	assert.True(t, ThisWeek(mon, false).Lower.Equal(day(2031, time.January, 13)))
}

func TestThisMonth(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		lower time.Time
		upper time.Time
	}{
		{
			name:  "early in the month",
			now:   time.Date(2031, time.March, 3, 10, 0, 0, 0, time.UTC),
			lower: day(2031, time.March, 1),
			upper: day(2031, time.April, 1),
		},
		{
			name:  "on the 25th",
			now:   time.Date(2031, time.March, 25, 10, 0, 0, 0, time.UTC),
			lower: day(2031, time.March, 1),
			upper: day(2031, time.April, 1),
		},
		{
			name:  "late in the month rolls forward",
			now:   time.Date(2031, time.March, 28, 10, 0, 0, 0, time.UTC),
			lower: day(2031, time.April, 1),
			upper: day(2031, time.May, 1),
		},
		{
			name:  "late december rolls into next year",
			now:   time.Date(2031, time.December, 30, 10, 0, 0, 0, time.UTC),
			lower: day(2032, time.January, 1),
			upper: day(2032, time.February, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ThisMonth(tt.now)
			assert.True(t, got.Lower.Equal(tt.lower), "lower %s", got.Lower)
			assert.True(t, got.Upper.Equal(tt.upper), "upper %s", got.Upper)
		})
	}
}

func TestYearWindows(t *testing.T) {
	now := time.Date(2031, time.June, 10, 12, 0, 0, 0, time.UTC)

	ytd := YearToDate(now)
	assert.True(t, ytd.Lower.Equal(day(2031, time.January, 1)))
	assert.True(t, ytd.Upper.Equal(now))

	rest := TilEndOfYear(now)
	assert.True(t, rest.Lower.Equal(now))
	assert.True(t, rest.Upper.Equal(day(2032, time.January, 1)))

	assert.False(t, ytd.Overlaps(rest))
}
