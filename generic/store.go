/*
store.go - Persistence interfaces

PURPOSE:
  Defines what the ledger needs from storage. The ledger never talks to a
  database directly; sqlite, postgres, mongo and the in-memory store all
  implement these interfaces.

ATOMICITY:
  UpdateEntitlement is the only write path for an existing entitlement.
  It is a per-record read-modify-write: the store loads the record, hands a
  copy to the MutateFunc, then persists the modified record together with
  the adjustments the callback returned, all or nothing.

  If any returned adjustment carries an idempotency key that already exists
  in the log, nothing is written and ErrDuplicateIdempotencyKey is returned.

APPEND-ONLY AUDIT LOG:
  Adjustments are only ever inserted, inside UpdateEntitlement or
  CreateEntitlement. There is no update or delete path.

SEE ALSO:
  - store/memory.go: In-memory implementation
  - ledger.go: Adds per-key locking and retries on top of a Store
*/
package generic

import (
	"context"
	"time"
)

// MutateFunc modifies the entitlement in place and returns the adjustments
// that explain the change. Returning an error aborts the update.
type MutateFunc func(e *Entitlement) ([]Adjustment, error)

// EntitlementStore persists entitlement records.
type EntitlementStore interface {
	GetEntitlement(ctx context.Context, key EntitlementKey) (*Entitlement, error)

	// CreateEntitlement inserts a new record and its opening adjustments.
	// Returns ErrEntitlementExists when the key is taken.
	CreateEntitlement(ctx context.Context, e Entitlement, adjustments []Adjustment) error

	// UpdateEntitlement atomically applies fn to the stored record.
	// Returns ErrEntitlementNotFound when there is nothing to update.
	UpdateEntitlement(ctx context.Context, key EntitlementKey, fn MutateFunc) (*Entitlement, error)

	ListEntitlements(ctx context.Context, filter EntitlementFilter) ([]Entitlement, error)
}

// AdjustmentLog reads the audit trail.
type AdjustmentLog interface {
	ListAdjustments(ctx context.Context, filter AdjustmentFilter) ([]Adjustment, error)
	AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// RequestStore is the boundary to the externally owned leave requests.
type RequestStore interface {
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	SaveRequest(ctx context.Context, r LeaveRequest) error
	SetRequestStatus(ctx context.Context, id RequestID, status RequestStatus, actorID string) error
	FlagIrregular(ctx context.Context, id RequestID, flagged bool, reason string) error
}

type EmployeeDirectory interface {
	SaveEmployee(ctx context.Context, emp Employee) error
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
}

type SuspensionStore interface {
	SaveSuspension(ctx context.Context, s Suspension) error
	ListSuspensions(ctx context.Context, filter SuspensionFilter) ([]Suspension, error)
}

// Store is everything the ledger service needs.
type Store interface {
	EntitlementStore
	AdjustmentLog
	RequestStore
	EmployeeDirectory
	SuspensionStore
}

// =============================================================================
// FILTERS
// =============================================================================

type EntitlementFilter struct {
	EmployeeID  EmployeeID  // empty = all employees
	LeaveTypeID LeaveTypeID // empty = all leave types
}

func (f EntitlementFilter) Matches(e Entitlement) bool {
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if f.LeaveTypeID != "" && e.LeaveTypeID != f.LeaveTypeID {
		return false
	}
	return true
}

type AdjustmentFilter struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Kinds       []AdjustmentKind
	Since       time.Time
	Limit       int // 0 = no limit
}

func (f AdjustmentFilter) Matches(a Adjustment) bool {
	if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
		return false
	}
	if f.LeaveTypeID != "" && a.LeaveTypeID != f.LeaveTypeID {
		return false
	}
	if !f.Since.IsZero() && a.CreatedAt.Before(f.Since) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if a.Kind == k {
			return true
		}
	}
	return false
}

// RequestFilter selects requests. From and To bound the request's start
// date, inclusive; a zero value leaves that side open.
type RequestFilter struct {
	EmployeeIDs []EmployeeID    // empty = all employees
	Statuses    []RequestStatus // empty = all statuses
	From        TimePoint
	To          TimePoint
}

func (f RequestFilter) Matches(r LeaveRequest) bool {
	if len(f.EmployeeIDs) > 0 && !containsID(f.EmployeeIDs, r.EmployeeID) {
		return false
	}
	if !f.From.IsZero() && r.From.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.From.After(f.To) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

type SuspensionFilter struct {
	EmployeeID EmployeeID
	Overlaps   *Period
	Unsettled  bool
}

func (f SuspensionFilter) Matches(s Suspension) bool {
	if f.EmployeeID != "" && s.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Unsettled && s.Settled {
		return false
	}
	if f.Overlaps != nil && !s.Period().Overlaps(*f.Overlaps) {
		return false
	}
	return true
}

func containsID(ids []EmployeeID, id EmployeeID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
