// Package recurrence computes the next occurrence of a repeating task.
// All functions are pure; the calendar is the location carried by the
// input time, so DST transitions are handled by the time package.
package recurrence

import (
	"time"

	"github.com/jarvis-app/jarvis-backend/internal/domain"
)

// NextOccurrence returns the due date of the successor task spawned when
// a repeating task is completed, or nil when the rule yields none
// (kind none, the reserved custom kind, or an exhausted weekday search).
// The time-of-day components of dueDate are preserved.
func NextOccurrence(dueDate time.Time, rule domain.RepeatRule) *time.Time {
	switch rule.Kind {
	case domain.RepeatDaily:
		next := dueDate.AddDate(0, 0, 1)
		return &next
	case domain.RepeatWeekly:
		if len(rule.Weekdays) == 0 {
			// Same weekday, one week later.
			next := dueDate.AddDate(0, 0, 7)
			return &next
		}
		return NextWeekday(dueDate, rule.Weekdays)
	case domain.RepeatMonthly:
		if rule.IsLastDayOfMonth {
			next := NextMonthEnd(dueDate)
			return &next
		}
		day := rule.DayOfMonth
		if day == 0 {
			day = dueDate.Day()
		}
		next := AddMonthsClamped(dueDate, 1, day)
		return &next
	default:
		// none and custom
		return nil
	}
}

// NextWeekday finds the nearest date strictly after date whose weekday is
// in the set (1..7, Sunday=1). The search window is 14 days: any
// non-empty set resolves within 7, the margin covers calendar anomalies.
func NextWeekday(date time.Time, weekdays []int) *time.Time {
	set := make(map[int]bool, len(weekdays))
	for _, w := range weekdays {
		set[w] = true
	}
	for offset := 1; offset <= 14; offset++ {
		d := date.AddDate(0, 0, offset)
		if set[int(d.Weekday())+1] {
			return &d
		}
	}
	return nil
}

// NextMonthEnd returns the last calendar day of the month that follows
// date's month, keeping the time of day.
func NextMonthEnd(date time.Time) time.Time {
	y, m, _ := date.Date()
	last := daysInMonth(y, m+1)
	return time.Date(y, m+1, last,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

// AddMonthsClamped adds months to date and sets the day to targetDay
// clamped into [1, daysInTargetMonth]. Day 31 against February resolves
// to the 28th or 29th; it never rolls over into the next month.
func AddMonthsClamped(date time.Time, months, targetDay int) time.Time {
	y, m, _ := date.Date()
	last := daysInMonth(y, m+time.Month(months))
	day := targetDay
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(y, m+time.Month(months), day,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

// daysInMonth tolerates an un-normalized month (e.g. month 13).
func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
