package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func d128(t *testing.T, s string) primitive.Decimal128 {
	t.Helper()
	v, err := primitive.ParseDecimal128(s)
	require.NoError(t, err)
	return v
}

func namespace(mt *mtest.T, collection string) string {
	return mt.DB.Name() + "." + collection
}

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "21", "1.75", "0.9545", "-2.5"} {
		d := decimal.RequireFromString(s)
		assert.True(t, fromDecimal128(toDecimal128(d)).Equal(d), s)
	}
}

func TestEntitlementDocRoundTrip(t *testing.T) {
	expiry := generic.NewTimePoint(2025, time.March, 31)
	e := generic.Entitlement{
		ID:                 "ent-1",
		EmployeeID:         "emp-1",
		LeaveTypeID:        "annual",
		PolicyYear:         2025,
		YearlyEntitlement:  decimal.NewFromInt(21),
		CarryForward:       decimal.NewFromInt(5),
		CarryForwardExpiry: &expiry,
		Taken:              decimal.RequireFromString("2.5"),
		Version:            3,
	}

	got := toEntitlementDoc(e).entitlement()
	assert.Equal(t, "2025-03-31", got.CarryForwardExpiry.String())
	assert.True(t, got.Remaining().Equal(e.Remaining()))
	assert.Equal(t, e.Version, got.Version)
}

func TestStore_GetEntitlement(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	key := generic.EntitlementKey{EmployeeID: "emp-1", LeaveTypeID: "annual"}

	mt.Run("found", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, EntitlementsCollection), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "ent-1"},
			{Key: "employee_id", Value: "emp-1"},
			{Key: "leave_type_id", Value: "annual"},
			{Key: "policy_year", Value: 2025},
			{Key: "yearly_entitlement", Value: d128(t, "21")},
			{Key: "carry_forward", Value: d128(t, "0")},
			{Key: "accrued", Value: d128(t, "1.75")},
			{Key: "taken", Value: d128(t, "4")},
			{Key: "pending", Value: d128(t, "0")},
			{Key: "version", Value: int64(2)},
		}))

		e, err := store.GetEntitlement(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "ent-1", e.ID)
		assert.Nil(t, e.CarryForwardExpiry)
		assert.True(t, e.Remaining().Equal(decimal.RequireFromString("18.75")))
	})

	mt.Run("not found", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, EntitlementsCollection), mtest.FirstBatch))

		e, err := store.GetEntitlement(ctx, key)
		assert.Nil(t, e)
		assert.ErrorIs(t, err, generic.ErrEntitlementNotFound)
	})
}

func TestStore_AdjustmentExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("exists", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, AdjustmentsCollection), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(1)}}))

		exists, err := store.AdjustmentExists(context.Background(), "carry-forward:2025-01-01:emp-1:annual")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestStore_SetRequestStatus(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("success", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(1)},
		))

		assert.NoError(t, store.SetRequestStatus(ctx, "req-1", generic.RequestApproved, "mgr-1"))
	})

	mt.Run("not found", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(0)},
			bson.E{Key: "nModified", Value: int32(0)},
		))

		err := store.SetRequestStatus(ctx, "req-404", generic.RequestApproved, "mgr-1")
		assert.ErrorIs(t, err, generic.ErrRequestNotFound)
	})
}

func TestStore_ListEmployees(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes hire dates", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt, EmployeesCollection), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "emp-1"}, {Key: "name", Value: "Alice"}, {Key: "hire_date", Value: "2021-04-12"}},
			bson.D{{Key: "_id", Value: "emp-2"}, {Key: "name", Value: "Bob"}},
		))

		employees, err := store.ListEmployees(context.Background())
		require.NoError(t, err)
		require.Len(t, employees, 2)
		assert.Equal(t, "2021-04-12", employees[0].HireDate.String())
		assert.True(t, employees[1].HireDate.IsZero())
	})
}

func TestStore_SaveSuspension(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	sp := generic.Suspension{
		ID:         "susp-1",
		EmployeeID: "emp-1",
		Type:       generic.SuspensionUnpaid,
		From:       generic.NewTimePoint(2025, time.March, 3),
		To:         generic.NewTimePoint(2025, time.March, 14),
	}

	mt.Run("success", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, store.SaveSuspension(context.Background(), sp))
	})

	mt.Run("write error", func(mt *mtest.T) {
		store := New(mt.DB, newTestLogger())
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := store.SaveSuspension(context.Background(), sp)
		assert.ErrorContains(t, err, "failed to save suspension")
	})
}

func TestRequestQuery(t *testing.T) {
	tests := []struct {
		name   string
		filter generic.RequestFilter
		want   bson.M
	}{
		{"empty", generic.RequestFilter{}, bson.M{}},
		{
			name: "employee and status",
			filter: generic.RequestFilter{
				EmployeeIDs: []generic.EmployeeID{"emp-1"},
				Statuses:    []generic.RequestStatus{generic.RequestApproved},
			},
			want: bson.M{
				"employee_id": bson.M{"$in": []string{"emp-1"}},
				"status":      bson.M{"$in": []string{"approved"}},
			},
		},
		{
			name:   "start window",
			filter: generic.RequestFilter{From: generic.NewTimePoint(2026, time.January, 1)},
			want:   bson.M{"from_date": bson.M{"$gte": "2026-01-01"}},
		},
		{
			name: "closed window",
			filter: generic.RequestFilter{
				From: generic.NewTimePoint(2026, time.January, 1),
				To:   generic.NewTimePoint(2026, time.December, 31),
			},
			want: bson.M{"from_date": bson.M{"$gte": "2026-01-01", "$lte": "2026-12-31"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestQuery(tt.filter))
		})
	}
}
