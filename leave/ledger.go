/*
ledger.go - Balance ledger operations

PURPOSE:
  The manual and request-driven write paths for a balance:

    AssignEntitlement  set or create the yearly allotment
    CreateAdjustment   manual add/deduct with a mandatory reason
    RecalcEmployee     rebuild taken/pending from the request store
    FinalizeRequest    approve or reject a request, overdraft-aware
    FlagIrregular      passthrough to the request store

OVERDRAFT:
  A leave type that does not allow overdraft may not end below zero after
  an operation unless the caller passes AllowNegative. The error names the
  employee, leave type, amount and shortfall.

FINALIZATION:
  Approve moves the request's days from pending into taken, or straight
  into taken when the request was not pending. Reject releases pending.
  Reversing an earlier decision needs IsOverride and a reason; overriding
  an approval into a rejection returns the days from taken. Overrides are
  marked on the audit entry.

SEE ALSO:
  - service.go: mutate, auto-initialization and lazy expiry
  - generic/ledger.go: Locking and adjustment stamping
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// ASSIGN ENTITLEMENT
// =============================================================================

type AssignInput struct {
	EmployeeID        generic.EmployeeID
	LeaveTypeID       generic.LeaveTypeID
	YearlyEntitlement decimal.Decimal
	ActorID           string
	Reason            string
}

// AssignEntitlement sets the yearly allotment, creating the entitlement if needed.
func (s *Service) AssignEntitlement(ctx context.Context, in AssignInput) (*generic.Entitlement, error) {
	if in.EmployeeID == "" {
		return nil, generic.Invalid("employee_id", "is required")
	}
	if in.LeaveTypeID == "" {
		return nil, generic.Invalid("leave_type_id", "is required")
	}
	if !in.YearlyEntitlement.IsPositive() {
		return nil, generic.Invalid("yearly_entitlement", "must be greater than zero (got %s)", in.YearlyEntitlement)
	}
	lt, err := s.policy.LeaveType(in.LeaveTypeID)
	if err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("yearly entitlement set to %s days", in.YearlyEntitlement)
	}
	key := generic.EntitlementKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID}

	if _, err := s.store.GetEntitlement(ctx, key); errors.Is(err, generic.ErrEntitlementNotFound) {
		e := generic.Entitlement{
			EmployeeID:        in.EmployeeID,
			LeaveTypeID:       in.LeaveTypeID,
			PolicyYear:        s.today().Year(),
			YearlyEntitlement: in.YearlyEntitlement,
		}
		opening := generic.NewAdjustment(key, generic.KindAssignment, in.YearlyEntitlement, reason, in.ActorID)
		created, adjustments, err := s.ledger.Create(ctx, e, []generic.Adjustment{opening})
		if err == nil {
			s.publish(ctx, adjustments)
			return created, nil
		}
		if !errors.Is(err, generic.ErrEntitlementExists) {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	asOf := s.today()
	updated, _, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		adjustments := expireInPlace(e, asOf)
		delta := in.YearlyEntitlement.Sub(e.YearlyEntitlement)
		if delta.IsZero() {
			return adjustments, nil
		}
		e.YearlyEntitlement = in.YearlyEntitlement
		if delta.IsNegative() {
			if err := checkOverdraft(lt, e, delta.Abs(), false, asOf); err != nil {
				return nil, err
			}
		}
		adj := generic.NewAdjustment(key, generic.KindAssignment, delta, reason, in.ActorID)
		adj.Metadata = map[string]string{"yearly_entitlement": in.YearlyEntitlement.String()}
		return append(adjustments, adj), nil
	})
	return updated, err
}

// =============================================================================
// MANUAL ADJUSTMENT
// =============================================================================

type AdjustmentInput struct {
	EmployeeID    generic.EmployeeID
	LeaveTypeID   generic.LeaveTypeID
	Type          generic.AdjustmentType
	Amount        decimal.Decimal
	Reason        string
	ActorID       string
	AllowNegative bool
}

type AdjustmentResult struct {
	Entitlement *generic.Entitlement
	Adjustment  generic.Adjustment
	Remaining   decimal.Decimal
}

func (in AdjustmentInput) validate() error {
	if in.EmployeeID == "" {
		return generic.Invalid("employee_id", "is required")
	}
	if in.LeaveTypeID == "" {
		return generic.Invalid("leave_type_id", "is required")
	}
	if !in.Type.Valid() {
		return generic.Invalid("type", "must be add or deduct (got %q)", in.Type)
	}
	if !in.Amount.IsPositive() {
		return generic.Invalid("amount", "must be greater than zero (got %s)", in.Amount)
	}
	return requireText("reason", in.Reason)
}

// CreateAdjustment books a manual correction. Deduct increases taken; add
// gives days back by lowering taken, with any excess going to accrued.
func (s *Service) CreateAdjustment(ctx context.Context, in AdjustmentInput) (*AdjustmentResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	lt, err := s.policy.LeaveType(in.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	asOf := s.today()
	key := generic.EntitlementKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID}
	updated, adjustments, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		out := expireInPlace(e, asOf)
		delta := in.Amount
		if in.Type == generic.AdjustmentDeduct {
			delta = in.Amount.Neg()
			e.Taken = e.Taken.Add(in.Amount)
			if err := checkOverdraft(lt, e, in.Amount, in.AllowNegative, asOf); err != nil {
				return nil, err
			}
		} else {
			returned := decimal.Min(in.Amount, e.Taken)
			e.Taken = e.Taken.Sub(returned)
			e.Accrued = e.Accrued.Add(in.Amount.Sub(returned))
		}
		adj := generic.NewAdjustment(key, generic.KindManual, delta, in.Reason, in.ActorID)
		adj.Override = in.AllowNegative
		return append(out, adj), nil
	})
	if err != nil {
		return nil, err
	}

	return &AdjustmentResult{
		Entitlement: updated,
		Adjustment:  adjustments[len(adjustments)-1],
		Remaining:   updated.RemainingAsOf(asOf),
	}, nil
}

// =============================================================================
// RECALCULATION
// =============================================================================

type RecalcEntry struct {
	LeaveTypeID     generic.LeaveTypeID
	PreviousTaken   decimal.Decimal
	Taken           decimal.Decimal
	PreviousPending decimal.Decimal
	Pending         decimal.Decimal
	Remaining       decimal.Decimal
	Changed         bool
	Overdrawn       bool
}

type RecalcResult struct {
	EmployeeID   generic.EmployeeID
	Entitlements []RecalcEntry
}

type requestTotals struct {
	taken, pending decimal.Decimal
}

// RecalcEmployee rebuilds taken and pending from the employee's requests:
// approved requests count as taken, pending ones as pending. Leave types
// with no such requests drop to zero. Yearly entitlement and carry-forward
// are untouched. Running it twice without request changes is a no-op.
//
// Once a leave type has been through a carry-forward, approved requests
// from before that boundary belong to the closed period and are skipped.
// Pending requests always count: their reservation moved across.
func (s *Service) RecalcEmployee(ctx context.Context, employeeID generic.EmployeeID, actorID string) (*RecalcResult, error) {
	if employeeID == "" {
		return nil, generic.Invalid("employee_id", "is required")
	}
	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{EmployeeID: employeeID})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	totals := make(map[generic.LeaveTypeID]*requestTotals)
	total := func(id generic.LeaveTypeID) *requestTotals {
		if t, ok := totals[id]; ok {
			return t
		}
		t := &requestTotals{taken: decimal.Zero, pending: decimal.Zero}
		totals[id] = t
		return t
	}
	boundaries := make(map[generic.LeaveTypeID]*periodBoundary)
	for _, e := range entitlements {
		total(e.LeaveTypeID)
		b, err := s.boundaryOf(ctx, e.Key())
		if err != nil {
			return nil, err
		}
		if b != nil {
			boundaries[e.LeaveTypeID] = b
		}
	}

	pending, err := s.store.ListRequests(ctx, generic.RequestFilter{
		EmployeeIDs: []generic.EmployeeID{employeeID},
		Statuses:    []generic.RequestStatus{generic.RequestPending},
	})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	for _, r := range pending {
		t := total(r.LeaveTypeID)
		t.pending = t.pending.Add(r.DurationDays)
	}

	approved, err := s.approvedInPeriod(ctx, employeeID, boundaries)
	if err != nil {
		return nil, err
	}
	for _, r := range approved {
		t := total(r.LeaveTypeID)
		t.taken = t.taken.Add(r.DurationDays)
	}

	types := make([]generic.LeaveTypeID, 0, len(totals))
	for id := range totals {
		types = append(types, id)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	asOf := s.today()
	result := &RecalcResult{EmployeeID: employeeID}
	for _, id := range types {
		entry, err := s.recalcEntitlement(ctx, generic.EntitlementKey{EmployeeID: employeeID, LeaveTypeID: id}, *totals[id], actorID, asOf)
		if err != nil {
			return nil, err
		}
		result.Entitlements = append(result.Entitlements, entry)
	}
	return result, nil
}

// periodBoundary marks where the current period of one entitlement began.
type periodBoundary struct {
	start         generic.TimePoint
	approvedSince map[generic.RequestID]bool
}

// boundaryOf finds the latest carry-forward on key, along with the
// requests approved after it. It returns nil when key never carried forward.
func (s *Service) boundaryOf(ctx context.Context, key generic.EntitlementKey) (*periodBoundary, error) {
	history, err := s.store.ListAdjustments(ctx, generic.AdjustmentFilter{
		EmployeeID:  key.EmployeeID,
		LeaveTypeID: key.LeaveTypeID,
		Kinds:       []generic.AdjustmentKind{generic.KindCarryForward, generic.KindRequestApproved},
	})
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	approved := make(map[generic.RequestID]bool)
	for _, adj := range history {
		if adj.Kind == generic.KindRequestApproved {
			if adj.RequestID != "" {
				approved[adj.RequestID] = true
			}
			continue
		}
		start, err := generic.ParseTimePoint(adj.Metadata["reference_date"])
		if err != nil {
			return nil, fmt.Errorf("carry-forward %s: reference date: %w", adj.ID, err)
		}
		return &periodBoundary{start: start, approvedSince: approved}, nil
	}
	return nil, nil
}

// approvedInPeriod returns the employee's approved requests that count
// toward the current period of their leave type.
func (s *Service) approvedInPeriod(ctx context.Context, employeeID generic.EmployeeID, boundaries map[generic.LeaveTypeID]*periodBoundary) ([]generic.LeaveRequest, error) {
	employees := []generic.EmployeeID{employeeID}
	statuses := []generic.RequestStatus{generic.RequestApproved}

	all, err := s.store.ListRequests(ctx, generic.RequestFilter{EmployeeIDs: employees, Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	var result []generic.LeaveRequest
	for _, r := range all {
		if boundaries[r.LeaveTypeID] == nil {
			result = append(result, r)
		}
	}

	for id, b := range boundaries {
		current, err := s.store.ListRequests(ctx, generic.RequestFilter{EmployeeIDs: employees, Statuses: statuses, From: b.start})
		if err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		seen := make(map[generic.RequestID]bool)
		for _, r := range current {
			if r.LeaveTypeID == id {
				result = append(result, r)
				seen[r.ID] = true
			}
		}
		// Requests dated before the boundary but approved after it were
		// still pending when the period turned over.
		for requestID := range b.approvedSince {
			if seen[requestID] {
				continue
			}
			r, err := s.store.GetRequest(ctx, requestID)
			if errors.Is(err, generic.ErrRequestNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if r.Status == generic.RequestApproved && r.EmployeeID == employeeID && r.LeaveTypeID == id {
				result = append(result, *r)
			}
		}
	}
	return result, nil
}

func (s *Service) recalcEntitlement(ctx context.Context, key generic.EntitlementKey, t requestTotals, actorID string, asOf generic.TimePoint) (RecalcEntry, error) {
	entry := RecalcEntry{LeaveTypeID: key.LeaveTypeID, Taken: t.taken, Pending: t.pending}

	current, err := s.store.GetEntitlement(ctx, key)
	if err != nil && !errors.Is(err, generic.ErrEntitlementNotFound) {
		return entry, err
	}
	var e *generic.Entitlement
	if current != nil && current.Taken.Equal(t.taken) && current.Pending.Equal(t.pending) {
		if e, err = s.refresh(ctx, current); err != nil {
			return entry, err
		}
		entry.PreviousTaken = current.Taken
		entry.PreviousPending = current.Pending
	} else {
		e, _, err = s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
			out := expireInPlace(e, asOf)
			entry.PreviousTaken = e.Taken
			entry.PreviousPending = e.Pending
			if e.Taken.Equal(t.taken) && e.Pending.Equal(t.pending) {
				return out, nil
			}
			entry.Changed = true
			// Effect on remaining: what used to be consumed minus what is consumed now.
			delta := e.Taken.Add(e.Pending).Sub(t.taken.Add(t.pending))
			e.Taken = t.taken
			e.Pending = t.pending

			adj := generic.NewAdjustment(key, generic.KindRecalculation, delta,
				fmt.Sprintf("recalculated from requests: taken %s -> %s, pending %s -> %s",
					entry.PreviousTaken, t.taken, entry.PreviousPending, t.pending),
				actorID)
			adj.Metadata = map[string]string{
				"previous_taken":   entry.PreviousTaken.String(),
				"taken":            t.taken.String(),
				"previous_pending": entry.PreviousPending.String(),
				"pending":          t.pending.String(),
			}
			return append(out, adj), nil
		})
		if err != nil {
			return entry, err
		}
	}

	entry.Remaining = e.RemainingAsOf(asOf)
	if entry.Remaining.IsNegative() {
		if lt, err := s.policy.LeaveType(key.LeaveTypeID); err != nil || !lt.AllowOverdraft {
			entry.Overdrawn = true
			s.logger.Warn("entitlement overdrawn after recalculation",
				"employee_id", key.EmployeeID,
				"leave_type", key.LeaveTypeID,
				"remaining", entry.Remaining.String(),
			)
		}
	}
	return entry, nil
}

// =============================================================================
// REQUEST FINALIZATION
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

func (d Decision) Status() generic.RequestStatus {
	if d == DecisionApprove {
		return generic.RequestApproved
	}
	return generic.RequestRejected
}

type FinalizeInput struct {
	RequestID     generic.RequestID
	ActorID       string
	Decision      Decision
	AllowNegative bool
	Reason        string
	IsOverride    bool
}

type FinalizeResult struct {
	Request     *generic.LeaveRequest
	Entitlement *generic.Entitlement
	Adjustment  *generic.Adjustment

	// AlreadyApplied is set when the balance change was committed by an
	// earlier call and only the request status was written this time.
	AlreadyApplied bool
}

func (in FinalizeInput) validate() error {
	if in.RequestID == "" {
		return generic.Invalid("request_id", "is required")
	}
	if !in.Decision.Valid() {
		return generic.Invalid("decision", "must be approve or reject (got %q)", in.Decision)
	}
	if in.IsOverride {
		return requireText("reason", in.Reason)
	}
	return nil
}

// checkTransition decides whether req may take the decision.
func checkTransition(req *generic.LeaveRequest, in FinalizeInput) error {
	switch req.Status {
	case generic.RequestCancelled:
		return &generic.StateError{RequestID: req.ID, Status: req.Status, Message: "cancelled requests cannot be finalized"}
	case generic.RequestApproved, generic.RequestRejected:
		if req.Status == in.Decision.Status() {
			return &generic.StateError{RequestID: req.ID, Status: req.Status, Message: fmt.Sprintf("request is already %s", req.Status)}
		}
		if !in.IsOverride {
			return &generic.StateError{RequestID: req.ID, Status: req.Status, Message: "request was already decided; reversing it requires an override"}
		}
	}
	return nil
}

// FinalizeRequest applies a decision to a request and its entitlement.
func (s *Service) FinalizeRequest(ctx context.Context, in FinalizeInput) (*FinalizeResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		in.ActorID = "system"
	}
	req, err := s.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(req, in); err != nil {
		return nil, err
	}
	lt, err := s.policy.LeaveType(req.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	reason := in.Reason
	if reason == "" {
		reason = fmt.Sprintf("request %s %s by %s", req.ID, in.Decision.Status(), in.ActorID)
	}
	kind := generic.KindRequestApproved
	if in.Decision == DecisionReject {
		kind = generic.KindRequestRejected
	}

	asOf := s.today()
	days := req.DurationDays
	key := generic.EntitlementKey{EmployeeID: req.EmployeeID, LeaveTypeID: req.LeaveTypeID}
	result := &FinalizeResult{}

	updated, adjustments, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		out := expireInPlace(e, asOf)
		var delta decimal.Decimal
		if req.Status == generic.RequestPending {
			released := decimal.Min(days, e.Pending)
			e.Pending = e.Pending.Sub(released)
			if in.Decision == DecisionReject {
				delta = released
			}
		}
		switch {
		case in.Decision == DecisionApprove:
			e.Taken = e.Taken.Add(days)
			delta = days.Neg()
			if err := checkOverdraft(lt, e, days, in.AllowNegative, asOf); err != nil {
				return nil, err
			}
		case req.Status == generic.RequestApproved:
			returned := decimal.Min(days, e.Taken)
			e.Taken = e.Taken.Sub(returned)
			delta = returned
		}

		adj := generic.NewAdjustment(key, kind, delta, reason, in.ActorID)
		adj.RequestID = req.ID
		adj.Override = in.IsOverride
		adj.IdempotencyKey = fmt.Sprintf("finalize:%s:%s:%s:%d", req.ID, in.Decision, req.Status, req.UpdatedAt.UnixNano())
		adj.Metadata = map[string]string{
			"previous_status": string(req.Status),
			"duration_days":   days.String(),
		}
		if in.AllowNegative {
			adj.Metadata["allow_negative"] = "true"
		}
		return append(out, adj), nil
	})
	switch {
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		result.AlreadyApplied = true
		if updated, err = s.store.GetEntitlement(ctx, key); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		adj := adjustments[len(adjustments)-1]
		result.Adjustment = &adj
	}

	if err := s.store.SetRequestStatus(ctx, req.ID, in.Decision.Status(), in.ActorID); err != nil {
		return nil, fmt.Errorf("set request status: %w", err)
	}
	finalized, err := s.store.GetRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("request finalized",
		"request_id", req.ID,
		"employee_id", req.EmployeeID,
		"leave_type", req.LeaveTypeID,
		"decision", in.Decision,
		"override", in.IsOverride,
		"already_applied", result.AlreadyApplied,
	)
	result.Request = finalized
	result.Entitlement = updated
	return result, nil
}

// =============================================================================
// IRREGULAR FLAG
// =============================================================================

// FlagIrregular marks or clears the irregular-usage flag on a request.
func (s *Service) FlagIrregular(ctx context.Context, id generic.RequestID, flagged bool, reason string) (*generic.LeaveRequest, error) {
	if id == "" {
		return nil, generic.Invalid("request_id", "is required")
	}
	if err := s.store.FlagIrregular(ctx, id, flagged, reason); err != nil {
		return nil, err
	}
	return s.store.GetRequest(ctx, id)
}
