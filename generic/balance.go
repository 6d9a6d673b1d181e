package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTITLEMENT - Per employee, per leave type balance record
// =============================================================================

// Entitlement is the single live balance record for an EntitlementKey.
// It is created lazily, mutated only through a Store's UpdateEntitlement and
// never deleted.
//
//	Remaining = YearlyEntitlement + CarryForward + Accrued - Taken - Pending
type Entitlement struct {
	ID          string
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	PolicyYear  int

	YearlyEntitlement decimal.Decimal

	// CarryForward is migrated in from the previous period and expires
	// separately from the yearly allotment.
	CarryForward       decimal.Decimal
	CarryForwardExpiry *TimePoint

	// Accrued holds accrual increments and corrections that are not part of
	// the yearly allotment. It may be negative after a suspension deduction.
	Accrued decimal.Decimal

	Taken   decimal.Decimal
	Pending decimal.Decimal

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e Entitlement) Key() EntitlementKey {
	return EntitlementKey{EmployeeID: e.EmployeeID, LeaveTypeID: e.LeaveTypeID}
}

func (e Entitlement) Remaining() decimal.Decimal {
	return e.YearlyEntitlement.
		Add(e.CarryForward).
		Add(e.Accrued).
		Sub(e.Taken).
		Sub(e.Pending)
}

// UnusedCarryForward is the part of CarryForward not yet consumed.
// Consumption draws from carry-forward first.
func (e Entitlement) UnusedCarryForward() decimal.Decimal {
	return ClampZero(e.CarryForward.Sub(e.Taken))
}

// CarryForwardExpired reports whether unused carry-forward is past its expiry on asOf.
func (e Entitlement) CarryForwardExpired(asOf TimePoint) bool {
	if e.CarryForwardExpiry == nil || !asOf.After(*e.CarryForwardExpiry) {
		return false
	}
	return e.UnusedCarryForward().IsPositive()
}

// RemainingAsOf treats unused carry-forward as zero once it has expired.
func (e Entitlement) RemainingAsOf(asOf TimePoint) decimal.Decimal {
	if e.CarryForwardExpired(asOf) {
		return e.Remaining().Sub(e.UnusedCarryForward())
	}
	return e.Remaining()
}

// CarryableAsOf is RemainingAsOf with pending reservations added back.
// Pending days stay reserved across a period reset, so they are not part
// of what a period boundary carries or expires.
func (e Entitlement) CarryableAsOf(asOf TimePoint) decimal.Decimal {
	return e.RemainingAsOf(asOf).Add(e.Pending)
}

// ExpireCarryForward drops the unused carry-forward when it is past expiry and
// returns how many days were removed. Already-consumed carry-forward stays.
func (e *Entitlement) ExpireCarryForward(asOf TimePoint) decimal.Decimal {
	if !e.CarryForwardExpired(asOf) {
		return decimal.Zero
	}
	expired := e.UnusedCarryForward()
	e.CarryForward = e.CarryForward.Sub(expired)
	return expired
}

// =============================================================================
// BALANCE - Read model
// =============================================================================

// Balance is what callers see when they read an entitlement.
type Balance struct {
	Entitlement
	Remaining             decimal.Decimal
	CarryForwardAvailable decimal.Decimal
	AsOf                  TimePoint
}

func NewBalance(e Entitlement, asOf TimePoint) Balance {
	available := e.UnusedCarryForward()
	if e.CarryForwardExpired(asOf) {
		available = decimal.Zero
	}
	return Balance{
		Entitlement:           e,
		Remaining:             e.RemainingAsOf(asOf),
		CarryForwardAvailable: available,
		AsOf:                  asOf,
	}
}
