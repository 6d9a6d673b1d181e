package generic

import (
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the inclusive day range [Start, End].
//
// Examples:
//   - Accrual month: Mar 1 - Mar 31
//   - Accrual term:  May 1 - Aug 31
//   - Suspension:    the days an employee was on unpaid leave
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod rejects a range whose start is after its end. The bounds are
// never swapped silently.
func NewPeriod(start, end TimePoint) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, &ValidationError{Field: "period", Message: "start and end dates are required"}
	}
	if start.After(end) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Intersect returns the shared days of both periods.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start, end := p.Start, p.End
	if other.Start.After(start) {
		start = other.Start
	}
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

// TotalDays counts calendar days, both bounds included.
func (p Period) TotalDays() int {
	return DaysBetween(p.Start, p.End) + 1
}

// WorkingDays counts Monday to Friday days, both bounds included.
func (p Period) WorkingDays() int {
	total := p.TotalDays()
	if total <= 0 {
		return 0
	}
	weeks, rest := total/7, total%7
	count := weeks * 5
	wd := p.Start.Weekday()
	for i := 0; i < rest; i++ {
		d := (wd + time.Weekday(i)) % 7
		if d != time.Saturday && d != time.Sunday {
			count++
		}
	}
	return count
}

func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// CALENDAR PERIODS
// =============================================================================

func MonthOf(date TimePoint) Period {
	return Period{Start: StartOfMonth(date.Year(), date.Month()), End: EndOfMonth(date.Year(), date.Month())}
}

func YearOf(date TimePoint) Period {
	return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
}

// TermOf returns the four-month term containing date: Jan-Apr, May-Aug or Sep-Dec.
func TermOf(date TimePoint) Period {
	first := time.Month((int(date.Month())-1)/4*4 + 1)
	last := first + 3
	return Period{Start: StartOfMonth(date.Year(), first), End: EndOfMonth(date.Year(), last)}
}
