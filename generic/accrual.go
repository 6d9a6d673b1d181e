package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCRUAL METHOD - How often a yearly allotment is paid out
// =============================================================================

type AccrualMethod string

const (
	AccrualMonthly AccrualMethod = "monthly"  // yearly / 12, once per month
	AccrualYearly  AccrualMethod = "yearly"   // the full amount, once per year
	AccrualPerTerm AccrualMethod = "per_term" // yearly / 3, once per four-month term
)

func (m AccrualMethod) Valid() bool {
	switch m {
	case AccrualMonthly, AccrualYearly, AccrualPerTerm:
		return true
	}
	return false
}

// Divisor is the number of accrual events in a year.
func (m AccrualMethod) Divisor() decimal.Decimal {
	switch m {
	case AccrualMonthly:
		return decimal.NewFromInt(12)
	case AccrualPerTerm:
		return decimal.NewFromInt(3)
	default:
		return decimal.NewFromInt(1)
	}
}

// Increment is the nominal amount accrued per event, before rounding.
func (m AccrualMethod) Increment(yearly decimal.Decimal) decimal.Decimal {
	return yearly.Div(m.Divisor())
}

// PeriodFor returns the accrual period implied by the reference date.
func (m AccrualMethod) PeriodFor(ref TimePoint) Period {
	switch m {
	case AccrualYearly:
		return YearOf(ref)
	case AccrualPerTerm:
		return TermOf(ref)
	default:
		return MonthOf(ref)
	}
}

// =============================================================================
// PRORATION
// =============================================================================

// PresenceRatio is the fraction of a period's working days not covered by
// absences: max(0, (periodWD - absentWD) / periodWD). Overlapping absences
// are counted once.
func PresenceRatio(period Period, absences []Period) decimal.Decimal {
	total := period.WorkingDays()
	if total == 0 {
		return decimal.NewFromInt(1)
	}
	absent := 0
	for _, day := range period.Days() {
		if day.IsWeekend() {
			continue
		}
		for _, a := range absences {
			if a.Contains(day) {
				absent++
				break
			}
		}
	}
	ratio := decimal.NewFromInt(int64(total - absent)).Div(decimal.NewFromInt(int64(total)))
	return ClampZero(ratio)
}
