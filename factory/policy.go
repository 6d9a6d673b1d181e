/*
Package factory provides JSON to Go leave policy conversion.

PURPOSE:
  Converts a JSON leave policy document into leave.Policy. This lets HR
  change default allotments and carry-forward rules without a release:
  the server reads the document named by POLICY_FILE at startup.

JSON SCHEMA:
  {
    "leave_types": [
      {
        "id": "annual",
        "name": "Annual Leave",
        "default_entitlement": 21,
        "auto_initialize": true,
        "carry_forward": {"enabled": true, "cap": 10, "expiry_months": 6}
      },
      {
        "id": "unpaid",
        "name": "Unpaid Leave",
        "default_entitlement": 0,
        "allow_overdraft": true
      }
    ]
  }

KEY FEATURES:
  - Rejects unknown fields and duplicate leave type IDs
  - Day amounts are decimals, given as JSON numbers or strings
  - A missing carry_forward block means the type is not carryable
  - The result is validated with leave.Policy.Validate

USAGE:
  factory := NewPolicyFactory()
  policy, err := factory.LoadFile("policy.json")
  svc, err := leave.NewService(store, policy)

SEE ALSO:
  - leave/policies.go: LeaveType and the built-in default policy
  - generic/policy.go: CarryForwardRule
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a leave policy.
type PolicyJSON struct {
	LeaveTypes []LeaveTypeJSON `json:"leave_types"`
}

// LeaveTypeJSON is one leave type.
type LeaveTypeJSON struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	DefaultEntitlement decimal.Decimal   `json:"default_entitlement"`
	AllowOverdraft     bool              `json:"allow_overdraft,omitempty"`
	AutoInitialize     bool              `json:"auto_initialize,omitempty"`
	IsSick             bool              `json:"is_sick,omitempty"`
	CarryForward       *CarryForwardJSON `json:"carry_forward,omitempty"`
}

// CarryForwardJSON is the year-end carry-forward rule of a leave type.
type CarryForwardJSON struct {
	Enabled      bool            `json:"enabled"`
	Cap          decimal.Decimal `json:"cap"`
	ExpiryMonths int             `json:"expiry_months"`
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to leave.Policy.
type PolicyFactory struct{}

func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// LoadFile reads and parses a policy document from disk.
func (f *PolicyFactory) LoadFile(path string) (leave.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return leave.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return f.ParsePolicy(data)
}

// ParsePolicy parses a JSON document into a validated leave.Policy.
func (f *PolicyFactory) ParsePolicy(data []byte) (leave.Policy, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var pj PolicyJSON
	if err := dec.Decode(&pj); err != nil {
		return leave.Policy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to leave.Policy.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (leave.Policy, error) {
	types := make([]leave.LeaveType, 0, len(pj.LeaveTypes))
	seen := make(map[string]bool, len(pj.LeaveTypes))
	for _, lj := range pj.LeaveTypes {
		if lj.ID == "" {
			return leave.Policy{}, generic.Invalid("id", "leave type id is required")
		}
		if seen[lj.ID] {
			return leave.Policy{}, generic.Invalid("id", "duplicate leave type %q", lj.ID)
		}
		seen[lj.ID] = true
		types = append(types, parseLeaveType(lj))
	}

	policy := leave.NewPolicy(types...)
	if err := policy.Validate(); err != nil {
		return leave.Policy{}, err
	}
	return policy, nil
}

// ToJSON converts a Policy to PolicyJSON, leave types sorted by ID.
func (f *PolicyFactory) ToJSON(policy leave.Policy) PolicyJSON {
	ids := make([]string, 0, len(policy.LeaveTypes))
	for id := range policy.LeaveTypes {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	pj := PolicyJSON{LeaveTypes: make([]LeaveTypeJSON, 0, len(ids))}
	for _, id := range ids {
		lt := policy.LeaveTypes[generic.LeaveTypeID(id)]
		lj := LeaveTypeJSON{
			ID:                 id,
			Name:               lt.Name,
			DefaultEntitlement: lt.DefaultEntitlement,
			AllowOverdraft:     lt.AllowOverdraft,
			AutoInitialize:     lt.AutoInitialize,
			IsSick:             lt.IsSick,
		}
		if lt.CarryForward.CanCarryForward {
			lj.CarryForward = &CarryForwardJSON{
				Enabled:      true,
				Cap:          lt.CarryForward.Cap,
				ExpiryMonths: lt.CarryForward.ExpiryMonths,
			}
		}
		pj.LeaveTypes = append(pj.LeaveTypes, lj)
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseLeaveType(lj LeaveTypeJSON) leave.LeaveType {
	lt := leave.LeaveType{
		ID:                 generic.LeaveTypeID(lj.ID),
		Name:               lj.Name,
		DefaultEntitlement: lj.DefaultEntitlement,
		AllowOverdraft:     lj.AllowOverdraft,
		AutoInitialize:     lj.AutoInitialize,
		IsSick:             lj.IsSick,
	}
	if lt.Name == "" {
		lt.Name = lj.ID
	}
	if lj.CarryForward != nil && lj.CarryForward.Enabled {
		lt.CarryForward = generic.CarryForwardRule{
			CanCarryForward: true,
			Cap:             lj.CarryForward.Cap,
			ExpiryMonths:    lj.CarryForward.ExpiryMonths,
		}
	}
	return lt
}
