package interval

import "time"

// Calendar windows used by the reservation queries. Every helper works in the
// location of now.

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func StartOfYear(now time.Time) time.Time {
	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
}

func StartOfNextYear(now time.Time) time.Time {
	return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, now.Location())
}

// ThisWeek starts at midnight of the most recent Sunday (or Monday when
// startSunday is false) and ends six days later, so the last day of the week
// itself falls outside the range.
func ThisWeek(now time.Time, startSunday bool) Period {
	today := midnight(now)
	back := int(today.Weekday())
	if !startSunday {
		back = (back + 6) % 7
	}
	start := today.AddDate(0, 0, -back)
	return MustBetween(start, start.AddDate(0, 0, 6))
}

// ThisMonth covers the whole current month. Late in the month (after the
// 25th) the following month is returned instead.
func ThisMonth(now time.Time) Period {
	ref := midnight(now)
	if ref.Day() > 25 {
		ref = ref.AddDate(0, 0, 7)
	}
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	return MustBetween(start, start.AddDate(0, 1, 0))
}

// YearToDate is [Jan 1 00:00, now).
func YearToDate(now time.Time) Period {
	return MustBetween(StartOfYear(now), now)
}

// TilEndOfYear is [now, Jan 1 of next year 00:00).
func TilEndOfYear(now time.Time) Period {
	return MustBetween(now, StartOfNextYear(now))
}
