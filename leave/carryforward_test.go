package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

func yearEnd() leave.CarryForwardInput {
	return leave.CarryForwardInput{ReferenceDate: date(2026, time.January, 1), ActorID: "hr-1"}
}

func TestLedgerLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: A manual deduction and an approved request during 2025
	f.deduct(t, "emp-1", leave.Annual, "5")
	f.saveRequest(t, "req-1", leave.Annual, date(2025, time.July, 7), date(2025, time.July, 9), "3", generic.RequestPending)
	_, err := f.svc.FinalizeRequest(ctx, leave.FinalizeInput{RequestID: "req-1", Decision: leave.DecisionApprove})
	require.NoError(t, err)

	b := f.balance(t, "emp-1", leave.Annual)
	assertDays(t, "8", b.Taken)
	assertDays(t, "13", b.Remaining)

	// WHEN: Carrying forward into 2026
	res, err := f.svc.CarryForward(ctx, yearEnd())
	require.NoError(t, err)

	// THEN: Ten days carry, three expire and the year is reset
	assert.Equal(t, 1, res.Processed)
	assertDays(t, "10", res.TotalCarriedForward)
	assertDays(t, "3", res.TotalExpired)

	b = f.balance(t, "emp-1", leave.Annual)
	assertDays(t, "0", b.Taken)
	assertDays(t, "10", b.CarryForward)
	assertDays(t, "31", b.Remaining)
	assert.Equal(t, 2026, b.PolicyYear)
	require.NotNil(t, b.CarryForwardExpiry)
	assert.Equal(t, "2026-07-01", b.CarryForwardExpiry.String())

	// WHEN: Four days are used early in 2026 and the expiry passes
	f.clock.Set(2026, time.January, 5)
	f.deduct(t, "emp-1", leave.Annual, "4")
	f.clock.Set(2026, time.July, 2)

	// THEN: Only the six unused carried days expire
	b = f.balance(t, "emp-1", leave.Annual)
	assertDays(t, "4", b.CarryForward)
	assertDays(t, "21", b.Remaining)
	assert.True(t, b.CarryForwardAvailable.IsZero())

	expired, err := f.svc.ListAdjustments(ctx, generic.AdjustmentFilter{
		EmployeeID:  "emp-1",
		LeaveTypeID: leave.Annual,
		Kinds:       []generic.AdjustmentKind{generic.KindCarryForwardExpired},
	})
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assertDays(t, "6", expired[0].Amount)
	assertDays(t, "3", expired[1].Amount)
}

func TestCarryForward_IsIdempotentPerReferenceDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deduct(t, "emp-1", leave.Annual, "5")

	_, err := f.svc.CarryForward(ctx, yearEnd())
	require.NoError(t, err)

	again, err := f.svc.CarryForward(ctx, yearEnd())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Processed)
	assert.Equal(t, 1, again.Duplicates)
	assert.True(t, again.TotalCarriedForward.IsZero())

	assertDays(t, "10", f.balance(t, "emp-1", leave.Annual).CarryForward)
	assert.Len(t, f.adjustments(t, "emp-1", generic.KindCarryForward), 1)
}

func TestCarryForward_AllLeaveTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.GetBalances(ctx, "emp-1")
	require.NoError(t, err)
	f.deduct(t, "emp-1", leave.Annual, "5")

	res, err := f.svc.CarryForward(ctx, yearEnd())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assertDays(t, "15", res.TotalCarriedForward) // annual 10 + personal 5
	assertDays(t, "20", res.TotalExpired)        // annual 6 + sick 14

	sick := f.balance(t, "emp-1", leave.Sick)
	assertDays(t, "0", sick.CarryForward)
	assertDays(t, "14", sick.Remaining)
	assert.Nil(t, sick.CarryForwardExpiry)

	personal := f.balance(t, "emp-1", leave.Personal)
	assertDays(t, "10", personal.Remaining)
	assert.Equal(t, "2026-04-01", personal.CarryForwardExpiry.String())
}

func TestPreviewCarryForward_WritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.GetBalances(ctx, "emp-1")
	require.NoError(t, err)
	f.deduct(t, "emp-1", leave.Annual, "5")

	preview, err := f.svc.PreviewCarryForward(ctx, yearEnd())
	require.NoError(t, err)

	require.Len(t, preview.Details, 3)
	details := make(map[generic.LeaveTypeID]leave.CarryForwardDetail)
	for _, detail := range preview.Details {
		details[detail.LeaveTypeID] = detail
	}
	assertDays(t, "16", details[leave.Annual].PreviousRemaining)
	assertDays(t, "10", details[leave.Annual].CarriedForward)
	assertDays(t, "6", details[leave.Annual].Expired)
	assert.Equal(t, "Annual Leave", details[leave.Annual].LeaveTypeName)
	assertDays(t, "14", details[leave.Sick].Expired)

	assert.Equal(t, 1, preview.Summary.EmployeesProcessed)
	assertDays(t, "15", preview.Summary.TotalCarriedForward)
	assertDays(t, "20", preview.Summary.TotalExpired)
	assert.Equal(t, 1, preview.Summary.ByLeaveType[leave.Annual].Employees)

	// Balances and history are untouched
	assertDays(t, "16", f.balance(t, "emp-1", leave.Annual).Remaining)
	assert.Empty(t, f.adjustments(t, "emp-1", generic.KindCarryForward, generic.KindCarryForwardExpired))
}

func TestPreviewCarryForward_RuleOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.deduct(t, "emp-1", leave.Annual, "5")

	in := yearEnd()
	in.Rules = map[generic.LeaveTypeID]generic.CarryForwardRule{
		leave.Annual: {CanCarryForward: true, Cap: d("3"), ExpiryMonths: 1},
	}
	preview, err := f.svc.PreviewCarryForward(ctx, in)
	require.NoError(t, err)
	require.Len(t, preview.Details, 1)
	assertDays(t, "3", preview.Details[0].CarriedForward)
	assertDays(t, "13", preview.Details[0].Expired)
	assert.Equal(t, "2026-02-01", preview.Details[0].ExpiryDate.String())

	in.Rules[leave.Annual] = generic.CarryForwardRule{CanCarryForward: true, Cap: d("-1")}
	_, err = f.svc.PreviewCarryForward(ctx, in)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = f.svc.CarryForward(ctx, leave.CarryForwardInput{})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

// =============================================================================
// OVERRIDE AND LAZY EXPIRY
// =============================================================================

func TestOverrideCarryForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expiry := date(2025, time.June, 30)

	res, err := f.svc.OverrideCarryForward(ctx, leave.OverrideInput{
		EmployeeID:  "emp-1",
		LeaveTypeID: leave.Annual,
		Days:        d("5"),
		ExpiryDate:  &expiry,
		Reason:      "migrated from payroll",
		ActorID:     "hr-1",
	})
	require.NoError(t, err)
	assertDays(t, "0", res.PreviousCarryForward)
	assertDays(t, "5", res.NewCarryForward)
	assertDays(t, "26", res.NewRemaining)

	overrides := f.adjustments(t, "emp-1", generic.KindCarryForwardOverride)
	require.Len(t, overrides, 1)
	assert.True(t, overrides[0].Override)
	assert.Equal(t, "2025-06-30", overrides[0].Metadata["expiry_date"])

	// GIVEN: Two of the carried days are used before the expiry
	f.deduct(t, "emp-1", leave.Annual, "2")

	// WHEN: The first read after the expiry date
	f.clock.Set(2025, time.July, 1)
	b := f.balance(t, "emp-1", leave.Annual)

	// THEN: The three unused days are gone and the loss is audited once
	assertDays(t, "2", b.CarryForward)
	assertDays(t, "21", b.Remaining)
	assert.True(t, b.CarryForwardAvailable.IsZero())

	f.balance(t, "emp-1", leave.Annual)
	expired := f.adjustments(t, "emp-1", generic.KindCarryForwardExpired)
	require.Len(t, expired, 1)
	assertDays(t, "3", expired[0].Amount)
	assert.Equal(t, generic.AdjustmentDeduct, expired[0].Type)
}

func TestOverrideCarryForward_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   leave.OverrideInput
	}{
		{"missing employee", leave.OverrideInput{LeaveTypeID: leave.Annual, Days: d("1"), Reason: "x"}},
		{"negative days", leave.OverrideInput{EmployeeID: "emp-1", LeaveTypeID: leave.Annual, Days: d("-1"), Reason: "x"}},
		{"missing reason", leave.OverrideInput{EmployeeID: "emp-1", LeaveTypeID: leave.Annual, Days: d("1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.OverrideCarryForward(ctx, tt.in)
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}

// =============================================================================
// REPORT
// =============================================================================

func TestCarryForwardReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []generic.EmployeeID{"emp-2", "emp-1"} {
		_, err := f.svc.GetBalances(ctx, id)
		require.NoError(t, err)
	}
	_, err := f.svc.OverrideCarryForward(ctx, leave.OverrideInput{
		EmployeeID:  "emp-2",
		LeaveTypeID: leave.Annual,
		Days:        d("4"),
		Reason:      "manual carry",
	})
	require.NoError(t, err)

	report, err := f.svc.CarryForwardReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-15", report.AsOf.String())
	assert.Equal(t, 6, report.Summary.Entitlements)
	assert.Equal(t, 2, report.Summary.Employees)
	assertDays(t, "4", report.Summary.TotalCarryForward)
	assertDays(t, "84", report.Summary.TotalRemaining)

	require.Len(t, report.Rows, 6)
	assert.Equal(t, generic.EmployeeID("emp-1"), report.Rows[0].EmployeeID)
	assert.Equal(t, leave.Annual, report.Rows[0].LeaveTypeID)
	assert.Equal(t, generic.EmployeeID("emp-2"), report.Rows[3].EmployeeID)
	assertDays(t, "4", report.Rows[3].CarryForward)
	assertDays(t, "25", report.Rows[3].Remaining)
}

// =============================================================================
// PERIOD BOUNDARY
// =============================================================================

func TestRecalcEmployee_AfterCarryForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// GIVEN: A five-day request approved in 2025, then the year-end carry-forward
	f.saveRequest(t, "req-1", leave.Annual, date(2025, time.July, 7), date(2025, time.July, 11), "5", generic.RequestPending)
	_, err := f.svc.FinalizeRequest(ctx, leave.FinalizeInput{RequestID: "req-1", Decision: leave.DecisionApprove})
	require.NoError(t, err)
	_, err = f.svc.CarryForward(ctx, yearEnd())
	require.NoError(t, err)

	b := f.balance(t, "emp-1", leave.Annual)
	assertDays(t, "0", b.Taken)
	assertDays(t, "10", b.CarryForward)
	assertDays(t, "31", b.Remaining)

	// WHEN: Recalculating in the new year
	f.clock.Set(2026, time.January, 10)
	res, err := f.svc.RecalcEmployee(ctx, "emp-1", "hr-1")
	require.NoError(t, err)

	// THEN: The 2025 request stays in the closed period
	require.Len(t, res.Entitlements, 1)
	assert.False(t, res.Entitlements[0].Changed)
	assertDays(t, "0", res.Entitlements[0].Taken)
	assertDays(t, "31", f.balance(t, "emp-1", leave.Annual).Remaining)

	// AND: Requests of the new period still count
	f.saveRequest(t, "req-2", leave.Annual, date(2026, time.February, 2), date(2026, time.February, 3), "2", generic.RequestApproved)
	res, err = f.svc.RecalcEmployee(ctx, "emp-1", "hr-1")
	require.NoError(t, err)
	assert.True(t, res.Entitlements[0].Changed)
	assertDays(t, "2", res.Entitlements[0].Taken)
	assertDays(t, "29", f.balance(t, "emp-1", leave.Annual).Remaining)
}

func TestCarryForward_KeepsPendingReservations(t *testing.T) {
	tests := []struct {
		decision      leave.Decision
		wantTaken     string
		wantRemaining string
	}{
		{leave.DecisionApprove, "2", "8"},
		{leave.DecisionReject, "0", "10"},
	}
	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			// GIVEN: A two-day personal request still pending at year end
			f.saveRequest(t, "req-p", leave.Personal, date(2025, time.December, 22), date(2025, time.December, 23), "2", generic.RequestPending)
			_, err := f.svc.RecalcEmployee(ctx, "emp-1", "hr-1")
			require.NoError(t, err)
			assertDays(t, "3", f.balance(t, "emp-1", leave.Personal).Remaining)

			// WHEN: Carrying forward
			res, err := f.svc.CarryForward(ctx, yearEnd())
			require.NoError(t, err)

			// THEN: The reserved days are neither carried nor expired, and stay reserved
			assertDays(t, "5", res.TotalCarriedForward)
			assertDays(t, "0", res.TotalExpired)
			b := f.balance(t, "emp-1", leave.Personal)
			assertDays(t, "5", b.CarryForward)
			assertDays(t, "2", b.Pending)
			assertDays(t, "8", b.Remaining)

			carried := f.adjustments(t, "emp-1", generic.KindCarryForward)
			require.Len(t, carried, 1)
			assert.Equal(t, "2", carried[0].Metadata["pending"])
			assert.Equal(t, "5", carried[0].Metadata["previous_remaining"])

			// WHEN: The request is decided in the new year
			f.clock.Set(2026, time.January, 5)
			fin, err := f.svc.FinalizeRequest(ctx, leave.FinalizeInput{RequestID: "req-p", Decision: tt.decision})
			require.NoError(t, err)

			// THEN: The reservation settles exactly once
			assertDays(t, "0", fin.Entitlement.Pending)
			assertDays(t, tt.wantTaken, fin.Entitlement.Taken)
			assertDays(t, tt.wantRemaining, f.balance(t, "emp-1", leave.Personal).Remaining)

			// AND: Recalculation agrees with the ledger
			recalc, err := f.svc.RecalcEmployee(ctx, "emp-1", "hr-1")
			require.NoError(t, err)
			require.Len(t, recalc.Entitlements, 1)
			assert.False(t, recalc.Entitlements[0].Changed)
			assertDays(t, tt.wantTaken, recalc.Entitlements[0].Taken)
		})
	}
}
