/*
request.go - Leave requests and suspensions as seen by the ledger

PURPOSE:
  Leave requests are owned by an external workflow. The ledger only reads
  them (recalculation, finalization, pattern analysis) and writes back two
  narrow things: the decision status after a finalization and the
  irregular-usage flag.

  Suspensions record periods of unpaid leave or long absence that reduce
  accrual. They are created by the ledger itself.

REQUEST STATUSES:
  pending                  days are reserved in Entitlement.Pending
  approved                 days are counted in Entitlement.Taken
  rejected                 no balance effect
  returned_for_correction  no balance effect, may come back as pending
  cancelled                no balance effect

SEE ALSO:
  - store.go: RequestStore and SuspensionStore interfaces
  - leave/ledger.go: FinalizeRequest and RecalcEmployee
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type RequestStatus string

const (
	RequestPending               RequestStatus = "pending"
	RequestApproved              RequestStatus = "approved"
	RequestRejected              RequestStatus = "rejected"
	RequestReturnedForCorrection RequestStatus = "returned_for_correction"
	RequestCancelled             RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestReturnedForCorrection, RequestCancelled:
		return true
	}
	return false
}

type LeaveRequest struct {
	ID           RequestID
	EmployeeID   EmployeeID
	EmployeeName string
	LeaveTypeID  LeaveTypeID
	From         TimePoint
	To           TimePoint
	DurationDays decimal.Decimal
	Status       RequestStatus
	Reason       string
	CreatedAt    time.Time

	FlaggedIrregular bool
	IrregularReason  string
	DecidedBy        string
	UpdatedAt        time.Time
}

// Period returns the request's date range and whether it is well formed.
func (r LeaveRequest) Period() (Period, bool) {
	if r.From.IsZero() || r.To.IsZero() || r.From.After(r.To) {
		return Period{}, false
	}
	return Period{Start: r.From, End: r.To}, true
}

// Validate checks the fields a store needs before accepting a request.
func (r LeaveRequest) Validate() error {
	if r.ID == "" {
		return Invalid("id", "is required")
	}
	if r.EmployeeID == "" {
		return Invalid("employee_id", "is required")
	}
	if r.LeaveTypeID == "" {
		return Invalid("leave_type_id", "is required")
	}
	if _, ok := r.Period(); !ok {
		return Invalid("from", "must be on or before to")
	}
	if !r.DurationDays.IsPositive() {
		return Invalid("duration_days", "must be greater than zero")
	}
	if !r.Status.Valid() {
		return Invalid("status", "unknown status %q", r.Status)
	}
	return nil
}

// =============================================================================
// SUSPENSION
// =============================================================================

type SuspensionType string

const (
	SuspensionUnpaid      SuspensionType = "unpaid"
	SuspensionLongAbsence SuspensionType = "long_absence"
)

func (t SuspensionType) Valid() bool {
	return t == SuspensionUnpaid || t == SuspensionLongAbsence
}

// Suspension is a recorded absence. A settled suspension has already been
// deducted and is ignored by the accrual engine; an unsettled one prorates
// every accrual period it overlaps.
type Suspension struct {
	ID           string
	EmployeeID   EmployeeID
	LeaveTypeID  LeaveTypeID
	Type         SuspensionType
	From         TimePoint
	To           TimePoint
	Reason       string
	ActorID      string
	Settled      bool
	DeductedDays decimal.Decimal
	CreatedAt    time.Time
}

func (s Suspension) Period() Period {
	return Period{Start: s.From, End: s.To}
}
