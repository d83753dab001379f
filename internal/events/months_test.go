package events

import (
	"reflect"
	"testing"
	"time"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestMonthsBetween_SingleMonth(t *testing.T) {
	months := MonthsBetween(date(2026, time.March, 5), date(2026, time.March, 28))
	if !reflect.DeepEqual(months, []string{"2026-03"}) {
		t.Fatalf("unexpected months: %v", months)
	}
}

func TestMonthsBetween_DayOfMonthIrrelevant(t *testing.T) {
	months := MonthsBetween(date(2026, time.January, 28), date(2026, time.March, 2))
	want := []string{"2026-01", "2026-02", "2026-03"}
	if !reflect.DeepEqual(months, want) {
		t.Fatalf("expected %v, got %v", want, months)
	}
}

func TestMonthsBetween_CrossesYearBoundary(t *testing.T) {
	months := MonthsBetween(date(2025, time.November, 15), date(2026, time.February, 1))
	want := []string{"2025-11", "2025-12", "2026-01", "2026-02"}
	if !reflect.DeepEqual(months, want) {
		t.Fatalf("expected %v, got %v", want, months)
	}
}

func TestMonthsBetween_SameDay(t *testing.T) {
	day := date(2026, time.June, 10)
	months := MonthsBetween(day, day)
	if !reflect.DeepEqual(months, []string{"2026-06"}) {
		t.Fatalf("unexpected months: %v", months)
	}
}

func TestMonthsBetween_InvertedRange(t *testing.T) {
	if months := MonthsBetween(date(2026, time.May, 1), date(2026, time.April, 1)); months != nil {
		t.Fatalf("expected nil for inverted range, got %v", months)
	}
}

func TestMonthsBetween_ZeroTimes(t *testing.T) {
	if months := MonthsBetween(time.Time{}, date(2026, time.April, 1)); months != nil {
		t.Fatalf("expected nil for zero from, got %v", months)
	}
	if months := MonthsBetween(date(2026, time.April, 1), time.Time{}); months != nil {
		t.Fatalf("expected nil for zero to, got %v", months)
	}
}
