package core

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// PERIOD - A month/year pair, the incentive calculation boundary
// =============================================================================

// Period identifies one calendar month. Month is a two-digit string
// ("01".."12") and Year a four-digit string ("2025") so equality and
// lexicographic comparisons stay stable across the external stores.
type Period struct {
	Month string
	Year  string
}

// ParsePeriod validates a month/year pair and returns the Period.
// Anything outside two-digit "01".."12" / four-digit year is rejected
// with a ValidationError.
func ParsePeriod(month, year string) (Period, error) {
	if len(month) != 2 {
		return Period{}, &ValidationError{Field: "month", Message: fmt.Sprintf("month must be two digits, got %q", month)}
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Period{}, &ValidationError{Field: "month", Message: fmt.Sprintf("month must be 01-12, got %q", month)}
	}
	if len(year) != 4 {
		return Period{}, &ValidationError{Field: "year", Message: fmt.Sprintf("year must be four digits, got %q", year)}
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return Period{}, &ValidationError{Field: "year", Message: fmt.Sprintf("year must be numeric, got %q", year)}
	}
	return Period{Month: month, Year: year}, nil
}

// PeriodOf returns the period containing the given time.
func PeriodOf(t time.Time) Period {
	return Period{
		Month: fmt.Sprintf("%02d", int(t.Month())),
		Year:  fmt.Sprintf("%04d", t.Year()),
	}
}

// Contains reports whether the timestamp falls within the period's month.
func (p Period) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return PeriodOf(t) == p
}

// Bounds returns the first instant of the month and the first instant of
// the next month, in UTC. Useful for range queries at the storage layer.
func (p Period) Bounds() (start, end time.Time) {
	y, _ := strconv.Atoi(p.Year)
	m, _ := strconv.Atoi(p.Month)
	start = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

func (p Period) String() string { return p.Year + "-" + p.Month }
