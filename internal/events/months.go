package events

import "time"

// MonthKeyFormat renders a calendar month as it appears in message headers.
const MonthKeyFormat = "2006-01"

// RangeKeyed marks payloads whose external publication fans out into one
// message per calendar month covered by the range, each keyed by the
// affected person rather than the aggregate root. Contract consultant
// changes use this so downstream billing partitions by consultant.
type RangeKeyed interface {
	DateRange() (from, to time.Time)
	RangeKey() string
}

// MonthsBetween lists the calendar months touched by [from, to], inclusive
// on both ends. Day-of-month is irrelevant: a range from Jan 28 to Mar 2
// yields three months. An inverted or zero range yields nothing.
func MonthsBetween(from, to time.Time) []string {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	var months []string
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 1, 0) {
		months = append(months, cursor.Format(MonthKeyFormat))
	}
	return months
}
