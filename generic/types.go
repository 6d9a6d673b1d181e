/*
Package generic provides the core leave ledger primitives.

PURPOSE:
  Domain-agnostic records and helpers shared by the ledger service, the
  stores and the transport layer. Nothing in here knows about specific
  leave types; that is the job of the leave package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Day amounts: decimal.Decimal everywhere, half days are first class
  - Rounding: how an accrual increment is rounded before it is booked
  - Identifiers: type-safe employee, leave type, request and adjustment IDs
  - Adjustment: the immutable audit entry behind every balance mutation

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64, for day counts
  2. Type Safety: distinct ID types so an employee ID cannot be passed as a leave type
  3. Auditability: every mutation of taken, carry-forward or the yearly allotment
     is traceable to exactly one Adjustment

USAGE:
  adj := generic.Adjustment{
      EmployeeID:  "emp-123",
      LeaveTypeID: "annual",
      Type:        generic.AdjustmentDeduct,
      Kind:        generic.KindManual,
      Amount:      generic.Days(2.5),
      Reason:      "manual correction",
  }

SEE ALSO:
  - balance.go: Entitlement record and its derived balance
  - store.go: Persistence interfaces
  - ledger.go: Serialized read-modify-write over a Store
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY AMOUNTS
// =============================================================================

// Days builds a day amount from a literal. Use for constants and tests;
// parsed input should go through decimal.NewFromString.
func Days(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Percent converts a ratio to a percentage rounded to one decimal place.
func Percent(ratio decimal.Decimal) float64 {
	f, _ := ratio.Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return f
}

// =============================================================================
// ROUNDING
// =============================================================================

type Rounding string

const (
	RoundNone Rounding = "none"
	RoundHalf Rounding = "round"      // half-up to whole days
	RoundUp   Rounding = "round_up"   // ceiling
	RoundDown Rounding = "round_down" // floor
)

func (r Rounding) Valid() bool {
	switch r {
	case "", RoundNone, RoundHalf, RoundUp, RoundDown:
		return true
	}
	return false
}

// Apply rounds d according to the rule. The empty rule keeps the exact value.
func (r Rounding) Apply(d decimal.Decimal) decimal.Decimal {
	switch r {
	case RoundHalf:
		return d.Round(0)
	case RoundUp:
		return d.Ceil()
	case RoundDown:
		return d.Floor()
	default:
		return d
	}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LeaveTypeID string
type RequestID string
type AdjustmentID string

// EntitlementKey addresses the single live entitlement record of an
// employee for one leave type.
type EntitlementKey struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
}

func (k EntitlementKey) String() string {
	return string(k.EmployeeID) + "/" + string(k.LeaveTypeID)
}

// Employee is the directory entry the accrual engine iterates over.
type Employee struct {
	ID         EmployeeID
	Name       string
	Department string
	HireDate   TimePoint
	CreatedAt  time.Time
}

// =============================================================================
// ADJUSTMENT - Immutable audit entry
// =============================================================================

type AdjustmentType string

const (
	AdjustmentAdd    AdjustmentType = "add"
	AdjustmentDeduct AdjustmentType = "deduct"
)

func (t AdjustmentType) Valid() bool {
	return t == AdjustmentAdd || t == AdjustmentDeduct
}

// AdjustmentKind records which operation produced an adjustment.
type AdjustmentKind string

const (
	KindManual               AdjustmentKind = "manual"
	KindAccrual              AdjustmentKind = "accrual"
	KindAssignment           AdjustmentKind = "assignment"
	KindInitialization       AdjustmentKind = "initialization"
	KindSuspension           AdjustmentKind = "suspension"
	KindCarryForward         AdjustmentKind = "carry_forward"
	KindCarryForwardExpired  AdjustmentKind = "carry_forward_expired"
	KindCarryForwardOverride AdjustmentKind = "carry_forward_override"
	KindRequestApproved      AdjustmentKind = "request_approved"
	KindRequestRejected      AdjustmentKind = "request_rejected"
	KindRecalculation        AdjustmentKind = "recalculation"
)

// Adjustment is never updated or deleted once stored.
type Adjustment struct {
	ID          AdjustmentID
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Type        AdjustmentType
	Kind        AdjustmentKind
	Amount      decimal.Decimal // always >= 0, direction is carried by Type

	Reason    string
	ActorID   string
	RequestID RequestID

	// Override marks a decision that reverses an earlier one by another role.
	Override bool

	// IdempotencyKey, when set, is unique across the log.
	IdempotencyKey string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// Signed returns the amount as a delta on the remaining balance.
func (a Adjustment) Signed() decimal.Decimal {
	if a.Type == AdjustmentDeduct {
		return a.Amount.Neg()
	}
	return a.Amount
}

// NewAdjustment builds an adjustment whose direction follows the sign of delta.
func NewAdjustment(key EntitlementKey, kind AdjustmentKind, delta decimal.Decimal, reason, actorID string) Adjustment {
	adjType := AdjustmentAdd
	if delta.IsNegative() {
		adjType = AdjustmentDeduct
	}
	return Adjustment{
		EmployeeID:  key.EmployeeID,
		LeaveTypeID: key.LeaveTypeID,
		Type:        adjType,
		Kind:        kind,
		Amount:      delta.Abs(),
		Reason:      reason,
		ActorID:     actorID,
	}
}
