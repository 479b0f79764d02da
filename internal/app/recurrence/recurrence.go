// Package recurrence computes the next occurrence of a recurring capture
// series from a reference time.
package recurrence

import (
	"fmt"
	"time"

	"radiorec/internal/app/model"
)

// Next returns the occurrence following ref for the given recurrence type.
// Monthly steps advance one calendar month with the day clipped to the
// target month's length (Jan 31 -> Feb 28/29). An unknown type is an error,
// never a default.
func Next(ref time.Time, recurrenceType string) (time.Time, error) {
	switch recurrenceType {
	case model.RecurrenceDaily:
		return ref.AddDate(0, 0, 1), nil

	case model.RecurrenceWeekly:
		return ref.AddDate(0, 0, 7), nil

	case model.RecurrenceWeekdays:
		next := ref.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case model.RecurrenceWeekends:
		next := ref.AddDate(0, 0, 1)
		for next.Weekday() != time.Saturday && next.Weekday() != time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case model.RecurrenceMonthly:
		return addMonthClipped(ref), nil

	default:
		return time.Time{}, fmt.Errorf("unknown recurrence type: %q", recurrenceType)
	}
}

// addMonthClipped advances one calendar month. time.AddDate normalizes
// overflow (Jan 31 + 1 month = Mar 3), so the day is clipped explicitly.
func addMonthClipped(t time.Time) time.Time {
	year, month, day := t.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
