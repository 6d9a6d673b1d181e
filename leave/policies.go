/*
policies.go - Leave type configuration

PURPOSE:
  Holds the per-leave-type rules the ledger applies: default yearly
  allotment, whether the balance may go negative, and the carry-forward
  rule. The values in DefaultPolicy are defaults only; every operation
  reads them from the Policy the Service was built with, so a deployment
  can replace them with a JSON policy file (see factory/policy.go).

DEFAULT LEAVE TYPES:
  annual     21 days, auto-initialized, carry up to 10 days for 6 months
  sick       14 days, auto-initialized, not carryable
  personal    5 days, auto-initialized, carry up to 5 days for 3 months
  paternity   assigned explicitly, carry up to 5 days for 3 months
  unpaid     assigned explicitly, overdraft allowed, not carryable

SEE ALSO:
  - generic/policy.go: CarryForwardRule and the carry-forward formula
  - factory/policy.go: JSON policy documents
*/
package leave

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

const (
	Annual    generic.LeaveTypeID = "annual"
	Sick      generic.LeaveTypeID = "sick"
	Personal  generic.LeaveTypeID = "personal"
	Paternity generic.LeaveTypeID = "paternity"
	Unpaid    generic.LeaveTypeID = "unpaid"
)

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType struct {
	ID                 generic.LeaveTypeID
	Name               string
	DefaultEntitlement decimal.Decimal

	// AllowOverdraft lets Remaining go negative without an override.
	AllowOverdraft bool

	// AutoInitialize creates the entitlement on first read or accrual run.
	AutoInitialize bool

	// IsSick marks the type for the excessive-sick-leave detector.
	IsSick bool

	CarryForward generic.CarryForwardRule
}

// =============================================================================
// POLICY
// =============================================================================

// Policy is the set of leave types a ledger knows about.
type Policy struct {
	LeaveTypes map[generic.LeaveTypeID]LeaveType
}

func DefaultPolicy() Policy {
	return NewPolicy(
		LeaveType{
			ID:                 Annual,
			Name:               "Annual Leave",
			DefaultEntitlement: decimal.NewFromInt(21),
			AutoInitialize:     true,
			CarryForward:       generic.CarryForwardRule{CanCarryForward: true, Cap: decimal.NewFromInt(10), ExpiryMonths: 6},
		},
		LeaveType{
			ID:                 Sick,
			Name:               "Sick Leave",
			DefaultEntitlement: decimal.NewFromInt(14),
			AutoInitialize:     true,
			IsSick:             true,
		},
		LeaveType{
			ID:                 Personal,
			Name:               "Personal Leave",
			DefaultEntitlement: decimal.NewFromInt(5),
			AutoInitialize:     true,
			CarryForward:       generic.CarryForwardRule{CanCarryForward: true, Cap: decimal.NewFromInt(5), ExpiryMonths: 3},
		},
		LeaveType{
			ID:                 Paternity,
			Name:               "Paternity Leave",
			DefaultEntitlement: decimal.Zero,
			CarryForward:       generic.CarryForwardRule{CanCarryForward: true, Cap: decimal.NewFromInt(5), ExpiryMonths: 3},
		},
		LeaveType{
			ID:                 Unpaid,
			Name:               "Unpaid Leave",
			DefaultEntitlement: decimal.Zero,
			AllowOverdraft:     true,
		},
	)
}

func NewPolicy(types ...LeaveType) Policy {
	p := Policy{LeaveTypes: make(map[generic.LeaveTypeID]LeaveType, len(types))}
	for _, lt := range types {
		p.LeaveTypes[lt.ID] = lt
	}
	return p
}

func (p Policy) Validate() error {
	if len(p.LeaveTypes) == 0 {
		return generic.Invalid("leave_types", "at least one leave type is required")
	}
	for id, lt := range p.LeaveTypes {
		if id == "" || id != lt.ID {
			return generic.Invalid("leave_types", "leave type key %q does not match id %q", id, lt.ID)
		}
		if lt.DefaultEntitlement.IsNegative() {
			return generic.Invalid("default_entitlement", "%s: must not be negative", id)
		}
		if err := lt.CarryForward.Validate(); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

// LeaveType looks up a leave type, wrapping ErrLeaveTypeNotFound.
func (p Policy) LeaveType(id generic.LeaveTypeID) (LeaveType, error) {
	lt, ok := p.LeaveTypes[id]
	if !ok {
		return LeaveType{}, fmt.Errorf("%w: %s", generic.ErrLeaveTypeNotFound, id)
	}
	return lt, nil
}

// AutoInitialized returns the leave types created for every employee, sorted by ID.
func (p Policy) AutoInitialized() []LeaveType {
	var out []LeaveType
	for _, lt := range p.LeaveTypes {
		if lt.AutoInitialize {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Name returns the display name, falling back to the ID for unknown types.
func (p Policy) Name(id generic.LeaveTypeID) string {
	if lt, ok := p.LeaveTypes[id]; ok && lt.Name != "" {
		return lt.Name
	}
	return string(id)
}

// CarryForwardRules returns the configured rule for every leave type.
func (p Policy) CarryForwardRules() map[generic.LeaveTypeID]generic.CarryForwardRule {
	rules := make(map[generic.LeaveTypeID]generic.CarryForwardRule, len(p.LeaveTypes))
	for id, lt := range p.LeaveTypes {
		rules[id] = lt.CarryForward
	}
	return rules
}

// SickTypes lists leave types flagged as sick leave.
func (p Policy) SickTypes() []generic.LeaveTypeID {
	var out []generic.LeaveTypeID
	for id, lt := range p.LeaveTypes {
		if lt.IsSick {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
