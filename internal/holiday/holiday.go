// Package holiday answers "is today a working day" for the office briefing.
package holiday

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Calendar holds configured non-working dates. Weekends are always holidays.
type Calendar struct {
	dates map[string]struct{}
}

// New builds a calendar from ISO dates (YYYY-MM-DD). Invalid dates are errors
// so config typos fail loudly at startup.
func New(dates []string) (*Calendar, error) {
	m := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("holiday: invalid date %q (want YYYY-MM-DD)", d)
		}
		m[t.Format(dateLayout)] = struct{}{}
	}
	return &Calendar{dates: m}, nil
}

// IsHoliday reports whether t falls on a weekend or a configured holiday.
// Only the date portion of t (in its own location) is considered.
func (c *Calendar) IsHoliday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	if c == nil || c.dates == nil {
		return false
	}
	_, ok := c.dates[t.Format(dateLayout)]
	return ok
}

// IsWorkday is the negation of IsHoliday.
func (c *Calendar) IsWorkday(t time.Time) bool { return !c.IsHoliday(t) }
