/*
accrual.go - Periodic accrual runs

PURPOSE:
  Adds the periodic share of each entitlement's yearly allotment to its
  accrued pool, as of a reference date. Invoked by an external trigger
  (HTTP call, cron job or the optional scheduler in api/scheduler.go).

ACCRUAL METHODS:
  monthly    yearly / 12 for the month containing the reference date
  yearly     the full yearly amount for the calendar year
  per_term   yearly / 3 for the four-month term (Jan-Apr, May-Aug, Sep-Dec)

SUSPENSIONS:
  Unsettled suspensions overlapping the accrual period prorate the increment
  by working days present: increment * (periodWD - suspendedWD) / periodWD.
  Rounding is applied after proration.

IDEMPOTENCY:
  By default a run is not idempotent: running the same month twice accrues
  twice. With Idempotent set, each increment carries a key derived from the
  method, period and entitlement, and a re-run books nothing new for
  entitlements already accrued in that period.

FAILURES:
  One employee failing never aborts the run. Failures are returned in the
  result, and entitlements whose leave type has no policy are counted as
  skipped.
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

type AccrualInput struct {
	ReferenceDate generic.TimePoint
	Method        generic.AccrualMethod
	Rounding      generic.Rounding
	Idempotent    bool
	ActorID       string
}

type AccrualResult struct {
	Processed         int
	Created           int
	TotalEntitlements int
	Skipped           int
	Duplicates        int
	TotalAccrued      decimal.Decimal
	Period            generic.Period
	Failures          []BatchFailure
}

// employeeAccrual is the per-employee partial result, reduced after the pool drains.
type employeeAccrual struct {
	processed, created, total, skipped, duplicates int
	accrued                                        decimal.Decimal
	failures                                       []BatchFailure
}

func (in AccrualInput) validate() error {
	if in.ReferenceDate.IsZero() {
		return generic.Invalid("reference_date", "is required")
	}
	if !in.Method.Valid() {
		return generic.Invalid("method", "must be one of monthly, yearly, per_term (got %q)", in.Method)
	}
	if !in.Rounding.Valid() {
		return generic.Invalid("rounding", "must be one of none, round, round_up, round_down (got %q)", in.Rounding)
	}
	return nil
}

// RunAccrual accrues every entitlement of every known employee.
func (s *Service) RunAccrual(ctx context.Context, in AccrualInput) (*AccrualResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ActorID == "" {
		in.ActorID = "system"
	}

	employees, err := s.accrualPopulation(ctx)
	if err != nil {
		return nil, err
	}
	period := in.Method.PeriodFor(in.ReferenceDate)

	s.logger.Info("accrual run started",
		"method", in.Method,
		"period", period.String(),
		"employees", len(employees),
		"idempotent", in.Idempotent,
	)

	partials, runErr := parallelMap(ctx, s.poolSize, employees, func(ctx context.Context, id generic.EmployeeID) employeeAccrual {
		return s.accrueEmployee(ctx, id, in, period)
	})

	result := &AccrualResult{TotalAccrued: decimal.Zero, Period: period}
	for _, p := range partials {
		result.Processed += p.processed
		result.Created += p.created
		result.TotalEntitlements += p.total
		result.Skipped += p.skipped
		result.Duplicates += p.duplicates
		if !p.accrued.IsZero() {
			result.TotalAccrued = result.TotalAccrued.Add(p.accrued)
		}
		result.Failures = append(result.Failures, p.failures...)
	}

	s.logger.Info("accrual run finished",
		"method", in.Method,
		"processed", result.Processed,
		"created", result.Created,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"failed", len(result.Failures),
	)
	return result, runErr
}

// accrualPopulation is every employee in the directory plus every owner of
// an existing entitlement.
func (s *Service) accrualPopulation(ctx context.Context) ([]generic.EmployeeID, error) {
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	seen := make(map[generic.EmployeeID]bool)
	var ids []generic.EmployeeID
	for _, emp := range employees {
		if !seen[emp.ID] {
			seen[emp.ID] = true
			ids = append(ids, emp.ID)
		}
	}
	for _, e := range entitlements {
		if !seen[e.EmployeeID] {
			seen[e.EmployeeID] = true
			ids = append(ids, e.EmployeeID)
		}
	}
	return ids, nil
}

func (s *Service) accrueEmployee(ctx context.Context, employeeID generic.EmployeeID, in AccrualInput, period generic.Period) employeeAccrual {
	out := employeeAccrual{accrued: decimal.Zero}
	fail := func(leaveType generic.LeaveTypeID, err error) {
		out.failures = append(out.failures, BatchFailure{EmployeeID: employeeID, LeaveTypeID: leaveType, Error: err.Error()})
		s.logger.Warn("accrual failed",
			"employee_id", employeeID,
			"leave_type", leaveType,
			"error", err,
		)
	}

	for _, lt := range s.policy.AutoInitialized() {
		_, created, err := s.ensureEntitlement(ctx, generic.EntitlementKey{EmployeeID: employeeID, LeaveTypeID: lt.ID})
		if err != nil {
			fail(lt.ID, err)
			continue
		}
		if created {
			out.created++
		}
	}

	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{EmployeeID: employeeID})
	if err != nil {
		fail("", err)
		return out
	}
	suspensions, err := s.store.ListSuspensions(ctx, generic.SuspensionFilter{
		EmployeeID: employeeID,
		Overlaps:   &period,
		Unsettled:  true,
	})
	if err != nil {
		fail("", err)
		return out
	}

	for _, e := range entitlements {
		out.total++
		if _, err := s.policy.LeaveType(e.LeaveTypeID); err != nil {
			out.skipped++
			s.logger.Warn("accrual skipped: no policy for leave type",
				"employee_id", employeeID,
				"leave_type", e.LeaveTypeID,
			)
			continue
		}

		ratio := generic.PresenceRatio(period, suspendedPeriods(suspensions, e.LeaveTypeID))
		increment := in.Rounding.Apply(in.Method.Increment(e.YearlyEntitlement).Mul(ratio))
		if !increment.IsPositive() {
			out.processed++
			continue
		}

		_, _, err := s.mutate(ctx, e.Key(), func(current *generic.Entitlement) ([]generic.Adjustment, error) {
			adjustments := expireInPlace(current, s.today())
			current.Accrued = current.Accrued.Add(increment)

			adj := generic.NewAdjustment(current.Key(), generic.KindAccrual, increment,
				fmt.Sprintf("%s accrual for %s", in.Method, period), in.ActorID)
			adj.Metadata = map[string]string{
				"method":         string(in.Method),
				"period_start":   period.Start.String(),
				"period_end":     period.End.String(),
				"presence_ratio": ratio.StringFixed(4),
				"rounding":       string(in.Rounding),
			}
			if in.Idempotent {
				adj.IdempotencyKey = fmt.Sprintf("accrual:%s:%s:%s:%s", in.Method, period.Start, current.EmployeeID, current.LeaveTypeID)
			}
			return append(adjustments, adj), nil
		})
		switch {
		case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
			out.duplicates++
		case err != nil:
			fail(e.LeaveTypeID, err)
		default:
			out.processed++
			out.accrued = out.accrued.Add(increment)
		}
	}
	return out
}

// suspendedPeriods returns the suspension ranges that apply to a leave type.
// A suspension without a leave type applies to all of them.
func suspendedPeriods(suspensions []generic.Suspension, leaveType generic.LeaveTypeID) []generic.Period {
	var periods []generic.Period
	for _, s := range suspensions {
		if s.LeaveTypeID == "" || s.LeaveTypeID == leaveType {
			periods = append(periods, s.Period())
		}
	}
	return periods
}
