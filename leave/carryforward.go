/*
carryforward.go - Year-boundary carry-forward, override and reporting

PURPOSE:
  At a period boundary, caps each unused balance into the carry-forward
  bucket and expires the rest. Preview and commit share the same formula
  (generic.CarryForwardRule.Apply) so a preview is exactly what a commit
  would write.

RULE RESOLUTION:
  1. Rules passed with the call, by leave type
  2. The leave type's rule from the Policy
  3. Otherwise the leave type does not carry forward

COMMIT:
  Each record is recomputed inside its own atomic update, so the preview
  can never go stale between read and write. The new period starts with:

    CarryForward       = carried
    CarryForwardExpiry = reference date + expiry months (nil if not carryable)
    Taken, Accrued     = 0
    Pending            = unchanged
    PolicyYear         = reference date's year

  Pending days are reservations for requests that are still open. They are
  left out of the carried amount and move into the new period as they are,
  so a later approval or rejection settles them exactly once.

  Every record write carries an idempotency key for (reference date,
  employee, leave type). A run interrupted halfway can be re-invoked: the
  records already committed report as duplicates and are left alone.

SEE ALSO:
  - generic/policy.go: The reconciliation formula
  - report/pdf.go: PDF rendering of CarryForwardReport
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
// TYPES
// =============================================================================

type CarryForwardInput struct {
	ReferenceDate generic.TimePoint
	Rules         map[generic.LeaveTypeID]generic.CarryForwardRule
	ActorID       string
}

type CarryForwardDetail struct {
	EmployeeID    generic.EmployeeID
	LeaveTypeID   generic.LeaveTypeID
	LeaveTypeName string
	generic.CarryForwardOutcome
}

type LeaveTypeCarryForward struct {
	Employees      int
	CarriedForward decimal.Decimal
	Expired        decimal.Decimal
}

type CarryForwardSummary struct {
	ByLeaveType         map[generic.LeaveTypeID]LeaveTypeCarryForward
	EmployeesProcessed  int
	TotalCarriedForward decimal.Decimal
	TotalExpired        decimal.Decimal
}

type CarryForwardPreview struct {
	Details []CarryForwardDetail
	Summary CarryForwardSummary
}

type CarryForwardResult struct {
	Processed           int
	TotalCarriedForward decimal.Decimal
	TotalExpired        decimal.Decimal
	Duplicates          int
	Failures            []BatchFailure
}

type OverrideInput struct {
	EmployeeID  generic.EmployeeID
	LeaveTypeID generic.LeaveTypeID
	Days        decimal.Decimal
	ExpiryDate  *generic.TimePoint
	Reason      string
	ActorID     string
}

type OverrideResult struct {
	PreviousCarryForward decimal.Decimal
	NewCarryForward      decimal.Decimal
	NewRemaining         decimal.Decimal
	Entitlement          *generic.Entitlement
}

type CarryForwardReportRow struct {
	EmployeeID         generic.EmployeeID
	LeaveTypeID        generic.LeaveTypeID
	LeaveTypeName      string
	YearlyEntitlement  decimal.Decimal
	CarryForward       decimal.Decimal
	Taken              decimal.Decimal
	Remaining          decimal.Decimal
	CarryForwardExpiry *generic.TimePoint
}

type CarryForwardReportSummary struct {
	Entitlements      int
	Employees         int
	TotalCarryForward decimal.Decimal
	TotalRemaining    decimal.Decimal
}

type CarryForwardReport struct {
	AsOf    generic.TimePoint
	Summary CarryForwardReportSummary
	Rows    []CarryForwardReportRow
}

func (in CarryForwardInput) validate() error {
	if in.ReferenceDate.IsZero() {
		return generic.Invalid("reference_date", "is required")
	}
	for id, rule := range in.Rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule for %s: %w", id, err)
		}
	}
	return nil
}

// ruleFor resolves the carry-forward rule for a leave type.
func (s *Service) ruleFor(in CarryForwardInput, id generic.LeaveTypeID) generic.CarryForwardRule {
	if rule, ok := in.Rules[id]; ok {
		return rule
	}
	if lt, err := s.policy.LeaveType(id); err == nil {
		return lt.CarryForward
	}
	return generic.CarryForwardRule{}
}

// =============================================================================
// PREVIEW
// =============================================================================

// PreviewCarryForward computes what CarryForward would do. It writes nothing,
// not even lazy expiry.
func (s *Service) PreviewCarryForward(ctx context.Context, in CarryForwardInput) (*CarryForwardPreview, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	preview := &CarryForwardPreview{
		Details: make([]CarryForwardDetail, 0, len(entitlements)),
		Summary: CarryForwardSummary{
			ByLeaveType:         make(map[generic.LeaveTypeID]LeaveTypeCarryForward),
			TotalCarriedForward: decimal.Zero,
			TotalExpired:        decimal.Zero,
		},
	}
	employees := make(map[generic.EmployeeID]bool)
	for _, e := range entitlements {
		outcome := s.ruleFor(in, e.LeaveTypeID).Apply(e.CarryableAsOf(in.ReferenceDate), in.ReferenceDate)
		preview.Details = append(preview.Details, CarryForwardDetail{
			EmployeeID:          e.EmployeeID,
			LeaveTypeID:         e.LeaveTypeID,
			LeaveTypeName:       s.policy.Name(e.LeaveTypeID),
			CarryForwardOutcome: outcome,
		})
		employees[e.EmployeeID] = true

		byType := preview.Summary.ByLeaveType[e.LeaveTypeID]
		if byType.Employees == 0 {
			byType.CarriedForward = decimal.Zero
			byType.Expired = decimal.Zero
		}
		byType.Employees++
		byType.CarriedForward = byType.CarriedForward.Add(outcome.CarriedForward)
		byType.Expired = byType.Expired.Add(outcome.Expired)
		preview.Summary.ByLeaveType[e.LeaveTypeID] = byType

		preview.Summary.TotalCarriedForward = preview.Summary.TotalCarriedForward.Add(outcome.CarriedForward)
		preview.Summary.TotalExpired = preview.Summary.TotalExpired.Add(outcome.Expired)
	}
	preview.Summary.EmployeesProcessed = len(employees)
	return preview, nil
}

// =============================================================================
// COMMIT
// =============================================================================

type employeeCarryForward struct {
	processed, duplicates int
	carried, expired      decimal.Decimal
	failures              []BatchFailure
}

// CarryForward commits the year-boundary reset for every entitlement.
func (s *Service) CarryForward(ctx context.Context, in CarryForwardInput) (*CarryForwardResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		in.ActorID = "system"
	}
	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	byEmployee := make(map[generic.EmployeeID][]generic.EntitlementKey)
	var employees []generic.EmployeeID
	for _, e := range entitlements {
		if _, ok := byEmployee[e.EmployeeID]; !ok {
			employees = append(employees, e.EmployeeID)
		}
		byEmployee[e.EmployeeID] = append(byEmployee[e.EmployeeID], e.Key())
	}

	s.logger.Info("carry-forward started",
		"reference_date", in.ReferenceDate.String(),
		"employees", len(employees),
		"entitlements", len(entitlements),
	)

	partials, runErr := parallelMap(ctx, s.poolSize, employees, func(ctx context.Context, id generic.EmployeeID) employeeCarryForward {
		return s.carryForwardEmployee(ctx, byEmployee[id], in)
	})

	result := &CarryForwardResult{TotalCarriedForward: decimal.Zero, TotalExpired: decimal.Zero}
	for _, p := range partials {
		result.Processed += p.processed
		result.Duplicates += p.duplicates
		if p.processed > 0 {
			result.TotalCarriedForward = result.TotalCarriedForward.Add(p.carried)
			result.TotalExpired = result.TotalExpired.Add(p.expired)
		}
		result.Failures = append(result.Failures, p.failures...)
	}

	s.logger.Info("carry-forward finished",
		"reference_date", in.ReferenceDate.String(),
		"processed", result.Processed,
		"duplicates", result.Duplicates,
		"failed", len(result.Failures),
		"carried_forward", result.TotalCarriedForward.String(),
		"expired", result.TotalExpired.String(),
	)
	return result, runErr
}

func (s *Service) carryForwardEmployee(ctx context.Context, keys []generic.EntitlementKey, in CarryForwardInput) employeeCarryForward {
	out := employeeCarryForward{carried: decimal.Zero, expired: decimal.Zero}
	for _, key := range keys {
		var outcome generic.CarryForwardOutcome
		_, _, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
			rule := s.ruleFor(in, e.LeaveTypeID)
			outcome = rule.Apply(e.CarryableAsOf(in.ReferenceDate), in.ReferenceDate)
			return applyCarryForward(e, outcome, in), nil
		})
		switch {
		case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
			out.duplicates++
		case err != nil:
			out.failures = append(out.failures, BatchFailure{EmployeeID: key.EmployeeID, LeaveTypeID: key.LeaveTypeID, Error: err.Error()})
			s.logger.Warn("carry-forward failed",
				"employee_id", key.EmployeeID,
				"leave_type", key.LeaveTypeID,
				"error", err,
			)
		default:
			out.processed++
			out.carried = out.carried.Add(outcome.CarriedForward)
			out.expired = out.expired.Add(outcome.Expired)
		}
	}
	return out
}

// applyCarryForward resets e for the new period and returns its audit entries.
func applyCarryForward(e *generic.Entitlement, outcome generic.CarryForwardOutcome, in CarryForwardInput) []generic.Adjustment {
	previousCarryForward := e.CarryForward
	e.CarryForward = outcome.CarriedForward
	e.CarryForwardExpiry = outcome.ExpiryDate
	e.Taken = decimal.Zero
	e.Accrued = decimal.Zero
	e.PolicyYear = in.ReferenceDate.Year()

	baseKey := fmt.Sprintf("carry-forward:%s:%s:%s", in.ReferenceDate, e.EmployeeID, e.LeaveTypeID)
	carried := generic.NewAdjustment(e.Key(), generic.KindCarryForward, outcome.CarriedForward,
		fmt.Sprintf("carry-forward at %s: %s of %s days carried", in.ReferenceDate, outcome.CarriedForward, outcome.PreviousRemaining),
		in.ActorID)
	carried.IdempotencyKey = baseKey
	carried.Metadata = map[string]string{
		"reference_date":         in.ReferenceDate.String(),
		"previous_remaining":     outcome.PreviousRemaining.String(),
		"previous_carry_forward": previousCarryForward.String(),
		"capped_amount":          outcome.CappedAmount.String(),
		"pending":                e.Pending.String(),
	}
	if outcome.ExpiryDate != nil {
		carried.Metadata["expiry_date"] = outcome.ExpiryDate.String()
	}
	adjustments := []generic.Adjustment{carried}

	if outcome.Expired.IsPositive() {
		expired := generic.NewAdjustment(e.Key(), generic.KindCarryForwardExpired, outcome.Expired.Neg(),
			fmt.Sprintf("carry-forward at %s: %s days over the cap expired", in.ReferenceDate, outcome.Expired),
			in.ActorID)
		expired.IdempotencyKey = baseKey + ":expired"
		expired.Metadata = map[string]string{"reference_date": in.ReferenceDate.String()}
		adjustments = append(adjustments, expired)
	}
	return adjustments
}

// =============================================================================
// OVERRIDE
// =============================================================================

// OverrideCarryForward sets the carry-forward of one entitlement by hand.
func (s *Service) OverrideCarryForward(ctx context.Context, in OverrideInput) (*OverrideResult, error) {
	if in.EmployeeID == "" {
		return nil, generic.Invalid("employee_id", "is required")
	}
	if in.LeaveTypeID == "" {
		return nil, generic.Invalid("leave_type_id", "is required")
	}
	if in.Days.IsNegative() {
		return nil, generic.Invalid("days", "must not be negative (got %s)", in.Days)
	}
	if err := requireText("reason", in.Reason); err != nil {
		return nil, err
	}

	asOf := s.today()
	var previous decimal.Decimal
	key := generic.EntitlementKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID}
	updated, _, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		adjustments := expireInPlace(e, asOf)
		previous = e.CarryForward
		e.CarryForward = in.Days
		if in.ExpiryDate != nil {
			expiry := *in.ExpiryDate
			e.CarryForwardExpiry = &expiry
		}

		adj := generic.NewAdjustment(key, generic.KindCarryForwardOverride, in.Days.Sub(previous), in.Reason, in.ActorID)
		adj.Override = true
		adj.Metadata = map[string]string{
			"previous_carry_forward": previous.String(),
			"new_carry_forward":      in.Days.String(),
		}
		if e.CarryForwardExpiry != nil {
			adj.Metadata["expiry_date"] = e.CarryForwardExpiry.String()
		}
		return append(adjustments, adj), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("carry-forward overridden",
		"employee_id", in.EmployeeID,
		"leave_type", in.LeaveTypeID,
		"previous", previous.String(),
		"new", in.Days.String(),
		"actor_id", in.ActorID,
	)
	return &OverrideResult{
		PreviousCarryForward: previous,
		NewCarryForward:      updated.CarryForward,
		NewRemaining:         updated.RemainingAsOf(asOf),
		Entitlement:          updated,
	}, nil
}

// =============================================================================
// REPORT
// =============================================================================

// CarryForwardReport is a snapshot of current carry-forward state. Reading
// it applies lazy expiry like any other balance read.
func (s *Service) CarryForwardReport(ctx context.Context) (*CarryForwardReport, error) {
	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	asOf := s.today()
	report := &CarryForwardReport{
		AsOf: asOf,
		Rows: make([]CarryForwardReportRow, 0, len(entitlements)),
		Summary: CarryForwardReportSummary{
			TotalCarryForward: decimal.Zero,
			TotalRemaining:    decimal.Zero,
		},
	}
	employees := make(map[generic.EmployeeID]bool)
	for i := range entitlements {
		e, err := s.refresh(ctx, &entitlements[i])
		if err != nil {
			return nil, err
		}
		remaining := e.RemainingAsOf(asOf)
		report.Rows = append(report.Rows, CarryForwardReportRow{
			EmployeeID:         e.EmployeeID,
			LeaveTypeID:        e.LeaveTypeID,
			LeaveTypeName:      s.policy.Name(e.LeaveTypeID),
			YearlyEntitlement:  e.YearlyEntitlement,
			CarryForward:       e.CarryForward,
			Taken:              e.Taken,
			Remaining:          remaining,
			CarryForwardExpiry: e.CarryForwardExpiry,
		})
		employees[e.EmployeeID] = true
		report.Summary.TotalCarryForward = report.Summary.TotalCarryForward.Add(e.CarryForward)
		report.Summary.TotalRemaining = report.Summary.TotalRemaining.Add(remaining)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		if report.Rows[i].EmployeeID != report.Rows[j].EmployeeID {
			return report.Rows[i].EmployeeID < report.Rows[j].EmployeeID
		}
		return report.Rows[i].LeaveTypeID < report.Rows[j].LeaveTypeID
	})
	report.Summary.Entitlements = len(report.Rows)
	report.Summary.Employees = len(employees)
	return report, nil
}
