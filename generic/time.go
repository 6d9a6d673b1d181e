package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Day-granular date
// =============================================================================

// TimePoint is a calendar day. Time of day is ignored for every comparison,
// range and overlap check in the ledger.
type TimePoint struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day, keeping the calendar date as seen in t's location.
func DateOf(t time.Time) TimePoint {
	if t.IsZero() {
		return TimePoint{}
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return DateOf(time.Now())
}

// ParseTimePoint accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseTimePoint(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.day().Before(other.day()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.day().Equal(other.day()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.day().After(other.day()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) day() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return DateOf(tp.day().AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return DateOf(tp.day().AddDate(0, n, 0)) }
func (tp TimePoint) AddYears(n int) TimePoint  { return DateOf(tp.day().AddDate(n, 0, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) IsWorkday() bool       { return !tp.IsWeekend() }

func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

func (tp TimePoint) MarshalText() ([]byte, error) {
	return []byte(tp.String()), nil
}

func (tp *TimePoint) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*tp = TimePoint{}
		return nil
	}
	parsed, err := ParseTimePoint(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// HolidayCalendar answers whether a day is a company holiday.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// HolidaySet is a fixed list of holiday dates.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates ...TimePoint) HolidaySet {
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d.String()] = struct{}{}
	}
	return set
}

func (h HolidaySet) IsHoliday(date TimePoint) bool {
	_, ok := h[date.String()]
	return ok
}

// IsNonWorking reports weekends and, when a calendar is given, holidays.
func (tp TimePoint) IsNonWorking(calendar HolidayCalendar) bool {
	if tp.IsWeekend() {
		return true
	}
	return calendar != nil && calendar.IsHoliday(tp)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween is the signed number of calendar days from 'from' to 'to'.
func DaysBetween(from, to TimePoint) int {
	return int(to.day().Sub(from.day()).Hours() / 24)
}

func StartOfYear(year int) TimePoint                    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return DateOf(time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1))
}
