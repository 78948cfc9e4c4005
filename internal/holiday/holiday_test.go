package holiday

import (
	"testing"
	"time"
)

func TestCalendar(t *testing.T) {
	t.Parallel()
	cal, err := New([]string{"2026-09-01", "2026-12-25"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"saturday", time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), true},
		{"sunday", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), true},
		{"configured holiday", time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC), true},
		{"christmas", time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC), true},
		{"plain weekday", time.Date(2026, 9, 2, 8, 30, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsHoliday(tt.date); got != tt.want {
				t.Fatalf("IsHoliday(%s) = %v, want %v", tt.date.Format("2006-01-02"), got, tt.want)
			}
			if got := cal.IsWorkday(tt.date); got == tt.want {
				t.Fatalf("IsWorkday should be the negation of IsHoliday")
			}
		})
	}
}

func TestNewRejectsBadDate(t *testing.T) {
	t.Parallel()
	if _, err := New([]string{"01/09/2026"}); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestNilCalendarWeekendsOnly(t *testing.T) {
	t.Parallel()
	var cal *Calendar
	if !cal.IsHoliday(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)) {
		t.Error("nil calendar should still treat Sunday as holiday")
	}
	if cal.IsHoliday(time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Error("nil calendar should not flag weekdays")
	}
}
