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

func TestPreviewSuspension(t *testing.T) {
	// GIVEN: Two working weeks away in March 2025 (21 working days)
	preview, err := leave.PreviewSuspension(leave.SuspensionPreviewInput{
		From: date(2025, time.March, 3),
		To:   date(2025, time.March, 14),
	})
	require.NoError(t, err)

	// THEN: The monthly accrual on the default basis is cut by 10/21
	assert.Equal(t, 10, preview.WorkingDays)
	assert.Equal(t, 12, preview.TotalDays)
	assert.Equal(t, 21, preview.MonthWorkingDays)
	assertDays(t, "1.75", preview.OriginalAccrual)
	assert.InDelta(t, 11.0/21, preview.ProrateRatio.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1.75*11/21, preview.AdjustedAccrual.InexactFloat64(), 1e-9)
	assert.InDelta(t, 1.75*10/21, preview.AdjustmentDays.InexactFloat64(), 1e-9)
}

func TestPreviewSuspension_EdgeCases(t *testing.T) {
	zero := d("0")
	negative := d("-1")
	tests := []struct {
		name      string
		in        leave.SuspensionPreviewInput
		wantErr   error
		wantRatio string
		wantDays  string
	}{
		{
			name:      "weekend only",
			in:        leave.SuspensionPreviewInput{From: date(2025, time.March, 8), To: date(2025, time.March, 9)},
			wantRatio: "1",
			wantDays:  "0",
		},
		{
			name:      "whole month",
			in:        leave.SuspensionPreviewInput{From: date(2025, time.March, 1), To: date(2025, time.March, 31)},
			wantRatio: "0",
			wantDays:  "1.75",
		},
		{
			name:      "zero entitlement",
			in:        leave.SuspensionPreviewInput{From: date(2025, time.March, 3), To: date(2025, time.March, 14), YearlyEntitlement: &zero},
			wantRatio: "",
			wantDays:  "0",
		},
		{
			name:    "inverted range",
			in:      leave.SuspensionPreviewInput{From: date(2025, time.March, 14), To: date(2025, time.March, 3)},
			wantErr: generic.ErrInvalidPeriod,
		},
		{
			name:    "missing date",
			in:      leave.SuspensionPreviewInput{From: date(2025, time.March, 3)},
			wantErr: generic.ErrValidation,
		},
		{
			name:    "negative entitlement",
			in:      leave.SuspensionPreviewInput{From: date(2025, time.March, 3), To: date(2025, time.March, 14), YearlyEntitlement: &negative},
			wantErr: generic.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preview, err := leave.PreviewSuspension(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantRatio != "" {
				assertDays(t, tt.wantRatio, preview.ProrateRatio)
			}
			assertDays(t, tt.wantDays, preview.AdjustmentDays)
		})
	}
}

func TestApplySuspension_Deduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: Applying an unpaid suspension with deduction and no leave type
	res, err := f.svc.ApplySuspension(ctx, leave.SuspensionInput{
		EmployeeID: "emp-1",
		Type:       generic.SuspensionUnpaid,
		From:       date(2025, time.March, 3),
		To:         date(2025, time.March, 14),
		Reason:     "unpaid sabbatical",
		ActorID:    "hr-1",
		Deduct:     true,
	})
	require.NoError(t, err)

	// THEN: Annual leave is charged the prorated amount
	assert.Equal(t, leave.Annual, res.Suspension.LeaveTypeID)
	assert.True(t, res.Suspension.Settled)
	assert.InDelta(t, 1.75*10/21, res.Suspension.DeductedDays.InexactFloat64(), 1e-9)

	require.NotNil(t, res.Adjustment)
	assert.Equal(t, generic.KindSuspension, res.Adjustment.Kind)
	assert.Equal(t, generic.AdjustmentDeduct, res.Adjustment.Type)
	assert.Equal(t, res.Suspension.ID, res.Adjustment.Metadata["suspension_id"])
	assert.Contains(t, res.Adjustment.Reason, "unpaid sabbatical")

	require.NotNil(t, res.Entitlement)
	assert.InDelta(t, 21-1.75*10/21, res.Entitlement.Remaining().InexactFloat64(), 1e-9)

	saved, err := f.store.ListSuspensions(ctx, generic.SuspensionFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Settled)
}

func TestApplySuspension_RecordOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.ApplySuspension(ctx, leave.SuspensionInput{
		EmployeeID: "emp-1",
		Type:       generic.SuspensionLongAbsence,
		From:       date(2025, time.March, 3),
		To:         date(2025, time.March, 14),
	})
	require.NoError(t, err)

	assert.False(t, res.Suspension.Settled)
	assert.Empty(t, res.Suspension.LeaveTypeID)
	assert.Nil(t, res.Adjustment)
	assert.Nil(t, res.Entitlement)
	assert.InDelta(t, 1.75*10/21, res.Preview.AdjustmentDays.InexactFloat64(), 1e-9)
	assert.Empty(t, f.adjustments(t, "emp-1"))
}

func TestApplySuspension_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := leave.SuspensionInput{
		EmployeeID: "emp-1",
		Type:       generic.SuspensionUnpaid,
		From:       date(2025, time.March, 3),
		To:         date(2025, time.March, 14),
		Deduct:     true,
	}
	tests := []struct {
		name   string
		mutate func(in *leave.SuspensionInput)
		target error
	}{
		{"missing employee", func(in *leave.SuspensionInput) { in.EmployeeID = "" }, generic.ErrValidation},
		{"unknown type", func(in *leave.SuspensionInput) { in.Type = "strike" }, generic.ErrValidation},
		{"inverted range", func(in *leave.SuspensionInput) { in.From, in.To = in.To, in.From }, generic.ErrValidation},
		{"unknown leave type", func(in *leave.SuspensionInput) { in.LeaveTypeID = "sabbatical" }, generic.ErrLeaveTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.svc.ApplySuspension(ctx, in)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	saved, err := f.store.ListSuspensions(ctx, generic.SuspensionFilter{})
	require.NoError(t, err)
	assert.Empty(t, saved)
}
