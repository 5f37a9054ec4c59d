// Time-window filtering uses one strategy per window so the calendar
// arithmetic lives in exactly one place.

package core

import (
	"strings"
	"time"
)

const (
	AllTime   TimeWindow = "all"
	LastMonth TimeWindow = "month"
	LastWeek  TimeWindow = "week"
)

// TimeWindow selects how far back the feed reaches, relative to "now".
type TimeWindow string

// ParseTimeWindow maps a query token to a window. Unknown tokens fall back to
// AllTime, the identity filter.
func ParseTimeWindow(s string) TimeWindow {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "last_week", "lastweek":
		return LastWeek
	case "month", "last_month", "lastmonth":
		return LastMonth
	default:
		return AllTime
	}
}

// WindowChecker is the strategy interface for time-window membership. Each
// implementation encapsulates the cutoff arithmetic for one window.
type WindowChecker interface {
	// Contains reports whether a date falls inside the window evaluated at now.
	Contains(d Date, now time.Time) bool
}

// AllTimeChecker passes everything, including malformed (zero) dates, so the
// identity path never drops a record.
type AllTimeChecker struct{}

func (AllTimeChecker) Contains(Date, time.Time) bool { return true }

// LastWeekChecker keeps dates within the last 7 days.
type LastWeekChecker struct{}

func (LastWeekChecker) Contains(d Date, now time.Time) bool {
	if d.IsZero() {
		return false
	}
	cutoff := DateOf(now.AddDate(0, 0, -7))
	return !d.Before(cutoff.Time)
}

// LastMonthChecker keeps dates within the last calendar month. Month
// subtraction preserves the day-of-month where valid and clamps to the last
// day of the shorter month otherwise (Mar 31 -> Feb 28/29), which is not what
// time.AddDate does.
type LastMonthChecker struct{}

func (LastMonthChecker) Contains(d Date, now time.Time) bool {
	if d.IsZero() {
		return false
	}
	cutoff := DateOf(subtractMonth(now))
	return !d.Before(cutoff.Time)
}

// CheckerFor returns the strategy for a window. Unknown windows behave as
// AllTime.
func CheckerFor(w TimeWindow) WindowChecker {
	switch w {
	case LastWeek:
		return LastWeekChecker{}
	case LastMonth:
		return LastMonthChecker{}
	default:
		return AllTimeChecker{}
	}
}

func subtractMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	month--
	if month < time.January {
		month = time.December
		year--
	}
	if max := daysIn(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// daysIn returns the number of days in a month; day 0 of the next month
// normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
