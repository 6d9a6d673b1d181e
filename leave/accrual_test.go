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

func (f *fixture) hire(t *testing.T, ids ...generic.EmployeeID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.store.SaveEmployee(context.Background(), generic.Employee{ID: id, Name: string(id)}))
	}
}

func marchAccrual(idempotent bool) leave.AccrualInput {
	return leave.AccrualInput{
		ReferenceDate: date(2025, time.March, 15),
		Method:        generic.AccrualMonthly,
		Rounding:      generic.RoundNone,
		Idempotent:    idempotent,
		ActorID:       "scheduler",
	}
}

func TestRunAccrual_Monthly(t *testing.T) {
	f := newFixture(t)
	f.hire(t, "emp-1", "emp-2")

	// WHEN: Running a monthly accrual for two new employees
	res, err := f.svc.RunAccrual(context.Background(), marchAccrual(false))
	require.NoError(t, err)

	// THEN: Their entitlements are created and accrued
	assert.Equal(t, 6, res.Created)
	assert.Equal(t, 6, res.TotalEntitlements)
	assert.Equal(t, 6, res.Processed)
	assert.Empty(t, res.Failures)
	assert.Equal(t, "[2025-03-01, 2025-03-31]", res.Period.String())
	assert.InDelta(t, 2*(1.75+14.0/12+5.0/12), res.TotalAccrued.InexactFloat64(), 1e-9)

	annual := f.balance(t, "emp-1", leave.Annual)
	assertDays(t, "1.75", annual.Accrued)
	assertDays(t, "22.75", annual.Remaining)

	accruals := f.adjustments(t, "emp-1", generic.KindAccrual)
	require.Len(t, accruals, 3)
	assert.Equal(t, "scheduler", accruals[0].ActorID)
	assert.Equal(t, "monthly", accruals[0].Metadata["method"])
	assert.Empty(t, accruals[0].IdempotencyKey)
}

func TestRunAccrual_IdempotentRerun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hire(t, "emp-1")

	first, err := f.svc.RunAccrual(ctx, marchAccrual(true))
	require.NoError(t, err)
	assert.Equal(t, 3, first.Processed)

	// WHEN: Re-running the same period
	second, err := f.svc.RunAccrual(ctx, marchAccrual(true))
	require.NoError(t, err)

	// THEN: Every entitlement is reported as a duplicate and nothing is booked
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Duplicates)
	assert.True(t, second.TotalAccrued.IsZero())
	assertDays(t, "1.75", f.balance(t, "emp-1", leave.Annual).Accrued)
	assert.Len(t, f.adjustments(t, "emp-1", generic.KindAccrual), 3)
}

func TestRunAccrual_NonIdempotentRerunAccruesAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hire(t, "emp-1")

	for i := 0; i < 2; i++ {
		_, err := f.svc.RunAccrual(ctx, marchAccrual(false))
		require.NoError(t, err)
	}
	assertDays(t, "3.5", f.balance(t, "emp-1", leave.Annual).Accrued)
}

func TestRunAccrual_Rounding(t *testing.T) {
	f := newFixture(t)
	f.hire(t, "emp-1")

	in := marchAccrual(false)
	in.Rounding = generic.RoundHalf
	res, err := f.svc.RunAccrual(context.Background(), in)
	require.NoError(t, err)

	// 1.75 -> 2, 1.1667 -> 1, 0.4167 -> 0 (not booked)
	assert.Equal(t, 3, res.Processed)
	assertDays(t, "3", res.TotalAccrued)
	assertDays(t, "2", f.balance(t, "emp-1", leave.Annual).Accrued)
	assertDays(t, "0", f.balance(t, "emp-1", leave.Personal).Accrued)
	assert.Len(t, f.adjustments(t, "emp-1", generic.KindAccrual), 2)
}

func TestRunAccrual_PerTermAndYearly(t *testing.T) {
	tests := []struct {
		method generic.AccrualMethod
		want   string
		period string
	}{
		{generic.AccrualPerTerm, "7", "[2025-01-01, 2025-04-30]"},
		{generic.AccrualYearly, "21", "[2025-01-01, 2025-12-31]"},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			f := newFixture(t)
			f.hire(t, "emp-1")

			in := marchAccrual(true)
			in.Method = tt.method
			res, err := f.svc.RunAccrual(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.period, res.Period.String())
			assertDays(t, tt.want, f.balance(t, "emp-1", leave.Annual).Accrued)
		})
	}
}

func TestRunAccrual_IncludesEntitlementOwners(t *testing.T) {
	f := newFixture(t)

	// emp-9 is not in the directory but already holds an entitlement
	f.deduct(t, "emp-9", leave.Annual, "1")

	res, err := f.svc.RunAccrual(context.Background(), marchAccrual(true))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 3, res.Processed)
	assertDays(t, "1.75", f.balance(t, "emp-9", leave.Annual).Accrued)
}

func TestRunAccrual_SkipsUnknownLeaveTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hire(t, "emp-1")

	require.NoError(t, f.store.CreateEntitlement(ctx, generic.Entitlement{
		ID:                "legacy",
		EmployeeID:        "emp-1",
		LeaveTypeID:       "sabbatical",
		YearlyEntitlement: d("12"),
		Version:           1,
	}, nil))

	res, err := f.svc.RunAccrual(ctx, marchAccrual(true))
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalEntitlements)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, res.Processed)
}

func TestRunAccrual_ProratesUnsettledSuspensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hire(t, "emp-1")

	// GIVEN: Two working weeks of unpaid leave recorded without a deduction
	_, err := f.svc.ApplySuspension(ctx, leave.SuspensionInput{
		EmployeeID: "emp-1",
		Type:       generic.SuspensionUnpaid,
		From:       date(2025, time.March, 3),
		To:         date(2025, time.March, 14),
	})
	require.NoError(t, err)

	// WHEN: Accruing March
	_, err = f.svc.RunAccrual(ctx, marchAccrual(true))
	require.NoError(t, err)

	// THEN: Accrual is prorated by 11 of 21 working days
	annual := f.balance(t, "emp-1", leave.Annual)
	assert.InDelta(t, 1.75*11/21, annual.Accrued.InexactFloat64(), 1e-9)

	accruals := f.adjustments(t, "emp-1", generic.KindAccrual)
	require.NotEmpty(t, accruals)
	assert.Equal(t, "0.5238", accruals[0].Metadata["presence_ratio"])

	// AND: April is not affected
	april := marchAccrual(true)
	april.ReferenceDate = date(2025, time.April, 10)
	_, err = f.svc.RunAccrual(ctx, april)
	require.NoError(t, err)
	annual = f.balance(t, "emp-1", leave.Annual)
	assert.InDelta(t, 1.75*11/21+1.75, annual.Accrued.InexactFloat64(), 1e-9)
}

func TestRunAccrual_IgnoresSettledSuspensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.hire(t, "emp-1")

	_, err := f.svc.ApplySuspension(ctx, leave.SuspensionInput{
		EmployeeID: "emp-1",
		Type:       generic.SuspensionUnpaid,
		From:       date(2025, time.March, 3),
		To:         date(2025, time.March, 14),
		Deduct:     true,
	})
	require.NoError(t, err)

	_, err = f.svc.RunAccrual(ctx, marchAccrual(true))
	require.NoError(t, err)

	// The deduction was booked once; the accrual itself is not prorated again
	accruals := f.adjustments(t, "emp-1", generic.KindAccrual)
	for _, adj := range accruals {
		if adj.LeaveTypeID == leave.Annual {
			assertDays(t, "1.75", adj.Amount)
		}
	}
	annual := f.balance(t, "emp-1", leave.Annual)
	assert.InDelta(t, 1.75-1.75*10/21, annual.Accrued.InexactFloat64(), 1e-9)
}

func TestRunAccrual_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *leave.AccrualInput)
	}{
		{"missing reference date", func(in *leave.AccrualInput) { in.ReferenceDate = generic.TimePoint{} }},
		{"unknown method", func(in *leave.AccrualInput) { in.Method = "weekly" }},
		{"unknown rounding", func(in *leave.AccrualInput) { in.Rounding = "bankers" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := marchAccrual(true)
			tt.mutate(&in)
			_, err := f.svc.RunAccrual(ctx, in)
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}
