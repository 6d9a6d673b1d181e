package generic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDays(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

var annualKey = generic.EntitlementKey{EmployeeID: "emp-1", LeaveTypeID: "annual"}

func newLedgerWithEntitlement(t *testing.T, e generic.Entitlement) (*generic.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ledger := generic.NewLedger(mem).WithClock(func() time.Time {
		return time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)
	})
	_, _, err := ledger.Create(context.Background(), e, []generic.Adjustment{
		generic.NewAdjustment(e.Key(), generic.KindInitialization, e.YearlyEntitlement, "initialized", ""),
	})
	require.NoError(t, err)
	return ledger, mem
}

// =============================================================================
// CARRY-FORWARD RULE
// =============================================================================

func TestCarryForwardRule_Apply(t *testing.T) {
	ref := day(2025, time.January, 1)
	rule := generic.CarryForwardRule{CanCarryForward: true, Cap: decimal.NewFromInt(10), ExpiryMonths: 6}

	tests := []struct {
		name        string
		rule        generic.CarryForwardRule
		remaining   string
		wantCarried string
		wantExpired string
		wantExpiry  string
	}{
		{"above cap", rule, "15", "10", "5", "2025-07-01"},
		{"below cap", rule, "4", "4", "0", "2025-07-01"},
		{"exactly cap", rule, "10", "10", "0", "2025-07-01"},
		{"negative balance", rule, "-3", "0", "0", "2025-07-01"},
		{"fractional", rule, "10.5", "10", "0.5", "2025-07-01"},
		{"disabled", generic.CarryForwardRule{}, "8", "0", "8", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.rule.Apply(d(tt.remaining), ref)

			assertDays(t, tt.remaining, out.PreviousRemaining)
			assertDays(t, tt.wantCarried, out.CarriedForward)
			assertDays(t, tt.wantExpired, out.Expired)
			if tt.wantExpiry == "" {
				assert.Nil(t, out.ExpiryDate)
			} else {
				require.NotNil(t, out.ExpiryDate)
				assert.Equal(t, tt.wantExpiry, out.ExpiryDate.String())
			}
		})
	}
}

func TestCarryForwardRule_Validate(t *testing.T) {
	assert.NoError(t, generic.CarryForwardRule{CanCarryForward: true, Cap: decimal.NewFromInt(5)}.Validate())
	assert.ErrorIs(t, generic.CarryForwardRule{Cap: decimal.NewFromInt(-1)}.Validate(), generic.ErrValidation)
	assert.ErrorIs(t, generic.CarryForwardRule{ExpiryMonths: -1}.Validate(), generic.ErrValidation)
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestRounding_Apply(t *testing.T) {
	tests := []struct {
		rounding generic.Rounding
		in, want string
	}{
		{generic.RoundNone, "1.75", "1.75"},
		{"", "1.75", "1.75"},
		{generic.RoundHalf, "1.75", "2"},
		{generic.RoundHalf, "1.25", "1"},
		{generic.RoundHalf, "1.5", "2"},
		{generic.RoundUp, "1.01", "2"},
		{generic.RoundDown, "1.99", "1"},
	}
	for _, tt := range tests {
		t.Run(string(tt.rounding)+"/"+tt.in, func(t *testing.T) {
			assertDays(t, tt.want, tt.rounding.Apply(d(tt.in)))
		})
	}
	assert.False(t, generic.Rounding("bankers").Valid())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 54.5, generic.Percent(d("0.545454")))
	assert.Equal(t, 100.0, generic.Percent(d("1")))
}

// =============================================================================
// ENTITLEMENT
// =============================================================================

func TestEntitlement_Remaining(t *testing.T) {
	expiry := day(2025, time.March, 31)
	e := generic.Entitlement{
		YearlyEntitlement:  d("21"),
		CarryForward:       d("5"),
		CarryForwardExpiry: &expiry,
		Accrued:            d("1.75"),
		Taken:              d("3"),
		Pending:            d("2"),
	}

	assertDays(t, "22.75", e.Remaining())
	assertDays(t, "2", e.UnusedCarryForward())

	// Before and on the expiry date the carry-forward still counts
	assert.False(t, e.CarryForwardExpired(expiry))
	assertDays(t, "22.75", e.RemainingAsOf(expiry))

	// The day after, the unused part is gone
	after := expiry.AddDays(1)
	assert.True(t, e.CarryForwardExpired(after))
	assertDays(t, "20.75", e.RemainingAsOf(after))

	expired := e.ExpireCarryForward(after)
	assertDays(t, "2", expired)
	assertDays(t, "3", e.CarryForward)
	assertDays(t, "20.75", e.Remaining())
	assert.False(t, e.CarryForwardExpired(after), "nothing left to expire")
}

func TestNewAdjustment_DirectionFollowsSign(t *testing.T) {
	deduct := generic.NewAdjustment(annualKey, generic.KindManual, d("-2.5"), "correction", "hr-1")
	assert.Equal(t, generic.AdjustmentDeduct, deduct.Type)
	assertDays(t, "2.5", deduct.Amount)
	assertDays(t, "-2.5", deduct.Signed())

	add := generic.NewAdjustment(annualKey, generic.KindManual, d("1"), "correction", "hr-1")
	assert.Equal(t, generic.AdjustmentAdd, add.Type)
	assertDays(t, "1", add.Signed())
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_MutateStampsAdjustments(t *testing.T) {
	// GIVEN: An annual entitlement of 21 days
	ledger, mem := newLedgerWithEntitlement(t, generic.Entitlement{
		EmployeeID: "emp-1", LeaveTypeID: "annual", PolicyYear: 2025, YearlyEntitlement: d("21"),
	})
	ctx := context.Background()

	// WHEN: Five days are taken
	updated, adjustments, err := ledger.Mutate(ctx, annualKey, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		e.Taken = e.Taken.Add(d("5"))
		return []generic.Adjustment{generic.NewAdjustment(annualKey, generic.KindManual, d("-5"), "manual deduction", "")}, nil
	})

	// THEN: The record and the audit trail move together
	require.NoError(t, err)
	assertDays(t, "16", updated.Remaining())
	assert.Equal(t, int64(2), updated.Version)
	require.Len(t, adjustments, 1)
	assert.NotEmpty(t, adjustments[0].ID)
	assert.Equal(t, "system", adjustments[0].ActorID)
	assert.False(t, adjustments[0].CreatedAt.IsZero())

	history, err := mem.ListAdjustments(ctx, generic.AdjustmentFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, generic.KindManual, history[0].Kind, "newest first")
	assert.Equal(t, generic.KindInitialization, history[1].Kind)
}

func TestLedger_MutateRejectsBadAdjustments(t *testing.T) {
	tests := []struct {
		name string
		fn   generic.MutateFunc
		want error
	}{
		{
			name: "missing reason",
			fn: func(e *generic.Entitlement) ([]generic.Adjustment, error) {
				e.Taken = e.Taken.Add(d("1"))
				return []generic.Adjustment{generic.NewAdjustment(annualKey, generic.KindManual, d("-1"), "", "")}, nil
			},
			want: generic.ErrValidation,
		},
		{
			name: "negative taken",
			fn: func(e *generic.Entitlement) ([]generic.Adjustment, error) {
				e.Taken = d("-1")
				return []generic.Adjustment{generic.NewAdjustment(annualKey, generic.KindManual, d("1"), "give back", "")}, nil
			},
		},
		{
			name: "callback error",
			fn: func(e *generic.Entitlement) ([]generic.Adjustment, error) {
				e.Taken = d("20")
				return nil, generic.ErrInsufficientBalance
			},
			want: generic.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mem := newLedgerWithEntitlement(t, generic.Entitlement{
				EmployeeID: "emp-1", LeaveTypeID: "annual", YearlyEntitlement: d("21"),
			})
			ctx := context.Background()

			_, _, err := ledger.Mutate(ctx, annualKey, tt.fn)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}

			// Nothing was written
			stored, err := mem.GetEntitlement(ctx, annualKey)
			require.NoError(t, err)
			assert.True(t, stored.Taken.IsZero())
			assert.Equal(t, int64(1), stored.Version)
		})
	}
}

func TestLedger_DuplicateIdempotencyKey(t *testing.T) {
	ledger, mem := newLedgerWithEntitlement(t, generic.Entitlement{
		EmployeeID: "emp-1", LeaveTypeID: "annual", YearlyEntitlement: d("21"),
	})
	ctx := context.Background()
	accrue := func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		e.Accrued = e.Accrued.Add(d("1.75"))
		adj := generic.NewAdjustment(annualKey, generic.KindAccrual, d("1.75"), "monthly accrual", "")
		adj.IdempotencyKey = "accrual:monthly:2025-03-01:emp-1:annual"
		return []generic.Adjustment{adj}, nil
	}

	_, _, err := ledger.Mutate(ctx, annualKey, accrue)
	require.NoError(t, err)

	_, _, err = ledger.Mutate(ctx, annualKey, accrue)
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	stored, err := mem.GetEntitlement(ctx, annualKey)
	require.NoError(t, err)
	assertDays(t, "1.75", stored.Accrued, "second run must not accrue again")

	exists, err := mem.AdjustmentExists(ctx, "accrual:monthly:2025-03-01:emp-1:annual")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLedger_CreateExisting(t *testing.T) {
	ledger, _ := newLedgerWithEntitlement(t, generic.Entitlement{
		EmployeeID: "emp-1", LeaveTypeID: "annual", YearlyEntitlement: d("21"),
	})

	_, _, err := ledger.Create(context.Background(), generic.Entitlement{EmployeeID: "emp-1", LeaveTypeID: "annual"}, nil)
	assert.ErrorIs(t, err, generic.ErrEntitlementExists)
}

func TestLedger_MutateMissing(t *testing.T) {
	ledger := generic.NewLedger(store.NewMemory())

	_, _, err := ledger.Mutate(context.Background(), annualKey, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, generic.ErrEntitlementNotFound)
}

func TestLedger_ConcurrentMutationsSerialize(t *testing.T) {
	// GIVEN: A 21-day entitlement and twenty concurrent one-day deductions
	ledger, mem := newLedgerWithEntitlement(t, generic.Entitlement{
		EmployeeID: "emp-1", LeaveTypeID: "annual", YearlyEntitlement: d("21"),
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := ledger.Mutate(ctx, annualKey, func(e *generic.Entitlement) ([]generic.Adjustment, error) {
				e.Taken = e.Taken.Add(d("1"))
				return []generic.Adjustment{generic.NewAdjustment(annualKey, generic.KindManual, d("-1"), "one day", "")}, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// THEN: No update was lost
	stored, err := mem.GetEntitlement(ctx, annualKey)
	require.NoError(t, err)
	assertDays(t, "20", stored.Taken)
	assertDays(t, "1", stored.Remaining())
	assert.Equal(t, int64(21), stored.Version)

	history, err := mem.ListAdjustments(ctx, generic.AdjustmentFilter{Kinds: []generic.AdjustmentKind{generic.KindManual}})
	require.NoError(t, err)
	assert.Len(t, history, 20)
}

func TestErrorClassification(t *testing.T) {
	insufficient := &generic.InsufficientBalanceError{EmployeeID: "emp-1", LeaveTypeID: "annual"}
	assert.True(t, errors.Is(insufficient, generic.ErrInsufficientBalance))
	assert.True(t, generic.IsClientError(generic.Invalid("amount", "must be positive")))
	assert.True(t, generic.IsNotFound(generic.ErrRequestNotFound))
	assert.True(t, generic.IsConflict(&generic.StateError{RequestID: "req-1"}))
	assert.True(t, generic.IsRetryable(generic.ErrConcurrentModification))
	assert.False(t, generic.IsClientError(generic.ErrConcurrentModification))
}
