/*
suspension.go - Accrual suspension and proration

PURPOSE:
  Scales one month's accrual down when the employee was on unpaid leave or
  a long absence, by the share of the month's working days they were away.

FORMULA:
  workingDays      = weekdays in [from, to]
  monthWorkingDays = weekdays in the calendar month containing from
  prorateRatio     = max(0, (monthWorkingDays - workingDays) / monthWorkingDays)
  originalAccrual  = yearlyEntitlement / 12  (21 / 12 when no entitlement is given)
  adjustedAccrual  = originalAccrual * prorateRatio
  adjustmentDays   = originalAccrual - adjustedAccrual

APPLYING:
  ApplySuspension always records the suspension. With Deduct set, the
  adjustment days are deducted from the accrued pool right away and the
  suspension is stored settled. Without it, the suspension stays unsettled
  and RunAccrual prorates every period it overlaps instead.
*/
package leave

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// DefaultSuspensionBasis is the yearly entitlement assumed when a preview
// is not given one.
var DefaultSuspensionBasis = decimal.NewFromInt(21)

type SuspensionPreviewInput struct {
	From              generic.TimePoint
	To                generic.TimePoint
	YearlyEntitlement *decimal.Decimal
}

type SuspensionPreview struct {
	WorkingDays      int
	TotalDays        int
	MonthWorkingDays int
	ProrateRatio     decimal.Decimal
	OriginalAccrual  decimal.Decimal
	AdjustedAccrual  decimal.Decimal
	AdjustmentDays   decimal.Decimal
}

type SuspensionInput struct {
	EmployeeID    generic.EmployeeID
	LeaveTypeID   generic.LeaveTypeID
	Type          generic.SuspensionType
	From          generic.TimePoint
	To            generic.TimePoint
	Reason        string
	ActorID       string
	Deduct        bool
	AllowNegative bool
}

type SuspensionResult struct {
	Suspension  generic.Suspension
	Preview     SuspensionPreview
	Adjustment  *generic.Adjustment
	Entitlement *generic.Entitlement
}

// PreviewSuspension computes the proration for one absence.
func PreviewSuspension(in SuspensionPreviewInput) (*SuspensionPreview, error) {
	if in.From.IsZero() || in.To.IsZero() {
		return nil, generic.Invalid("from", "from and to dates are required")
	}
	period, err := generic.NewPeriod(in.From, in.To)
	if err != nil {
		return nil, err
	}

	yearly := DefaultSuspensionBasis
	if in.YearlyEntitlement != nil {
		if in.YearlyEntitlement.IsNegative() {
			return nil, generic.Invalid("yearly_entitlement", "must not be negative")
		}
		yearly = *in.YearlyEntitlement
	}

	preview := &SuspensionPreview{
		WorkingDays:      period.WorkingDays(),
		TotalDays:        period.TotalDays(),
		MonthWorkingDays: generic.MonthOf(in.From).WorkingDays(),
		ProrateRatio:     decimal.NewFromInt(1),
	}
	if preview.MonthWorkingDays > 0 {
		monthWD := decimal.NewFromInt(int64(preview.MonthWorkingDays))
		preview.ProrateRatio = generic.ClampZero(monthWD.Sub(decimal.NewFromInt(int64(preview.WorkingDays))).Div(monthWD))
	}
	preview.OriginalAccrual = generic.AccrualMonthly.Increment(yearly)
	preview.AdjustedAccrual = preview.OriginalAccrual.Mul(preview.ProrateRatio)
	preview.AdjustmentDays = preview.OriginalAccrual.Sub(preview.AdjustedAccrual)
	return preview, nil
}

// PreviewSuspension is the service form of the package-level calculator.
func (s *Service) PreviewSuspension(_ context.Context, in SuspensionPreviewInput) (*SuspensionPreview, error) {
	return PreviewSuspension(in)
}

func (in SuspensionInput) validate() error {
	if in.EmployeeID == "" {
		return generic.Invalid("employee_id", "is required")
	}
	if !in.Type.Valid() {
		return generic.Invalid("type", "must be unpaid or long_absence (got %q)", in.Type)
	}
	if in.From.IsZero() || in.To.IsZero() {
		return generic.Invalid("from", "from and to dates are required")
	}
	if in.From.After(in.To) {
		return generic.Invalid("from", "from date %s is after to date %s", in.From, in.To)
	}
	return nil
}

// ApplySuspension records a suspension and, with Deduct set, books its
// proration deduction against the entitlement.
func (s *Service) ApplySuspension(ctx context.Context, in SuspensionInput) (*SuspensionResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		in.ActorID = "system"
	}
	if in.Deduct && in.LeaveTypeID == "" {
		in.LeaveTypeID = Annual
	}
	if in.LeaveTypeID != "" {
		if _, err := s.policy.LeaveType(in.LeaveTypeID); err != nil {
			return nil, err
		}
	}

	suspension := generic.Suspension{
		ID:           uuid.NewString(),
		EmployeeID:   in.EmployeeID,
		LeaveTypeID:  in.LeaveTypeID,
		Type:         in.Type,
		From:         in.From,
		To:           in.To,
		Reason:       in.Reason,
		ActorID:      in.ActorID,
		DeductedDays: decimal.Zero,
		CreatedAt:    s.now().UTC(),
	}
	result := &SuspensionResult{}

	if !in.Deduct {
		preview, err := PreviewSuspension(SuspensionPreviewInput{From: in.From, To: in.To})
		if err != nil {
			return nil, err
		}
		if err := s.store.SaveSuspension(ctx, suspension); err != nil {
			return nil, fmt.Errorf("save suspension: %w", err)
		}
		s.logger.Info("suspension recorded",
			"employee_id", in.EmployeeID,
			"leave_type", in.LeaveTypeID,
			"type", in.Type,
			"period", suspension.Period().String(),
		)
		result.Suspension = suspension
		result.Preview = *preview
		return result, nil
	}

	key := generic.EntitlementKey{EmployeeID: in.EmployeeID, LeaveTypeID: in.LeaveTypeID}
	current, _, err := s.ensureEntitlement(ctx, key)
	if err != nil {
		return nil, err
	}
	yearly := current.YearlyEntitlement
	preview, err := PreviewSuspension(SuspensionPreviewInput{From: in.From, To: in.To, YearlyEntitlement: &yearly})
	if err != nil {
		return nil, err
	}
	lt, err := s.policy.LeaveType(in.LeaveTypeID)
	if err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("%s suspension %s", in.Type, suspension.Period())
	if in.Reason != "" {
		reason = fmt.Sprintf("%s: %s", reason, in.Reason)
	}

	asOf := s.today()
	var booked *generic.Adjustment
	updated, adjustments, err := s.mutate(ctx, key, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		out := expireInPlace(e, asOf)
		if !preview.AdjustmentDays.IsPositive() {
			return out, nil
		}
		e.Accrued = e.Accrued.Sub(preview.AdjustmentDays)
		if err := checkOverdraft(lt, e, preview.AdjustmentDays, in.AllowNegative, asOf); err != nil {
			return nil, err
		}
		adj := generic.NewAdjustment(key, generic.KindSuspension, preview.AdjustmentDays.Neg(), reason, in.ActorID)
		adj.Metadata = map[string]string{
			"suspension_id":   suspension.ID,
			"suspension_type": string(in.Type),
			"from":            in.From.String(),
			"to":              in.To.String(),
			"prorate_ratio":   preview.ProrateRatio.StringFixed(4),
		}
		return append(out, adj), nil
	})
	if err != nil {
		return nil, err
	}
	for i := range adjustments {
		if adjustments[i].Kind == generic.KindSuspension {
			booked = &adjustments[i]
		}
	}

	suspension.Settled = true
	suspension.DeductedDays = preview.AdjustmentDays
	if err := s.store.SaveSuspension(ctx, suspension); err != nil {
		return nil, fmt.Errorf("save suspension: %w", err)
	}

	s.logger.Info("suspension applied",
		"employee_id", in.EmployeeID,
		"leave_type", in.LeaveTypeID,
		"type", in.Type,
		"period", suspension.Period().String(),
		"deducted_days", preview.AdjustmentDays.StringFixed(3),
	)
	result.Suspension = suspension
	result.Preview = *preview
	result.Adjustment = booked
	result.Entitlement = updated
	return result, nil
}
