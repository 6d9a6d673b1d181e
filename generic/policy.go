/*
policy.go - Carry-forward rules and the year-end reconciliation formula

PURPOSE:
  Defines what happens to an unused balance at a period boundary. The
  formula is pure so preview and commit share exactly one implementation.

RECONCILIATION:
  At the boundary, per (employee, leave type):
  1. Take the remaining balance as of the reference date
  2. Carry forward up to the cap (negative balances carry nothing)
  3. Expire everything above the cap
  4. The new carry-forward expires ExpiryMonths after the reference date

EXAMPLE:
  rule := CarryForwardRule{CanCarryForward: true, Cap: Days(10), ExpiryMonths: 6}
  out := rule.Apply(Days(15), NewTimePoint(2026, time.January, 1))
  // out.CarriedForward = 10, out.Expired = 5, out.ExpiryDate = 2026-07-01
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CARRY-FORWARD RULE
// =============================================================================

type CarryForwardRule struct {
	CanCarryForward bool
	Cap             decimal.Decimal
	ExpiryMonths    int
}

func (r CarryForwardRule) Validate() error {
	if r.Cap.IsNegative() {
		return Invalid("cap", "must not be negative")
	}
	if r.ExpiryMonths < 0 {
		return Invalid("expiry_months", "must not be negative")
	}
	return nil
}

// CarryForwardOutcome is the result of applying a rule to one balance.
type CarryForwardOutcome struct {
	PreviousRemaining decimal.Decimal
	CappedAmount      decimal.Decimal
	CarriedForward    decimal.Decimal
	Expired           decimal.Decimal
	ExpiryDate        *TimePoint
}

func (r CarryForwardRule) Apply(previousRemaining decimal.Decimal, ref TimePoint) CarryForwardOutcome {
	out := CarryForwardOutcome{
		PreviousRemaining: previousRemaining,
		CappedAmount:      decimal.Zero,
		CarriedForward:    decimal.Zero,
	}
	if !r.CanCarryForward {
		out.Expired = ClampZero(previousRemaining)
		return out
	}

	out.CappedAmount = decimal.Min(ClampZero(previousRemaining), r.Cap)
	out.CarriedForward = out.CappedAmount
	out.Expired = ClampZero(previousRemaining.Sub(out.CappedAmount))
	expiry := ref.AddMonths(r.ExpiryMonths)
	out.ExpiryDate = &expiry
	return out
}
