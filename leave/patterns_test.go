package leave_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/pattern"
)

func TestAnalyzeEmployees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveEmployee(ctx, generic.Employee{ID: "emp-1", Name: "Ana Lopez"}))

	save := func(emp generic.EmployeeID, on generic.TimePoint, status generic.RequestStatus) {
		require.NoError(t, f.store.SaveRequest(ctx, generic.LeaveRequest{
			ID:           generic.RequestID(fmt.Sprintf("%s-%s", emp, on)),
			EmployeeID:   emp,
			LeaveTypeID:  "annual",
			From:         on,
			To:           on,
			DurationDays: d("1"),
			Status:       status,
		}))
	}

	// GIVEN: emp-1 takes four Fridays off; emp-2 takes midweek days
	for _, on := range []generic.TimePoint{
		date(2025, time.January, 10), date(2025, time.February, 7),
		date(2025, time.March, 7), date(2025, time.April, 4),
	} {
		save("emp-1", on, generic.RequestApproved)
	}
	save("emp-1", date(2025, time.April, 7), generic.RequestRejected)
	for _, on := range []generic.TimePoint{
		date(2025, time.January, 15), date(2025, time.February, 12), date(2025, time.March, 12),
	} {
		save("emp-2", on, generic.RequestApproved)
	}

	// WHEN: Analyzing everyone
	results, err := f.svc.AnalyzeEmployees(ctx, nil, pattern.DefaultConfig())
	require.NoError(t, err)

	// THEN: Only emp-1 is flagged, named from the directory
	require.Len(t, results, 1)
	assert.Equal(t, generic.EmployeeID("emp-1"), results[0].EmployeeID)
	assert.Equal(t, "Ana Lopez", results[0].EmployeeName)
	assert.Equal(t, pattern.RiskHigh, results[0].RiskLevel)

	// AND: Restricting to emp-2 finds nothing
	results, err = f.svc.AnalyzeEmployees(ctx, []generic.EmployeeID{"emp-2"}, pattern.DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, results)

	// AND: Nothing was written to the ledger
	assert.Empty(t, f.adjustments(t, "emp-1"))
}
