package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

func day(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func TestParseTimePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2025-03-14", want: "2025-03-14"},
		{in: " 2025-03-14 ", want: "2025-03-14"},
		{in: "2025-03-14T18:30:00Z", want: "2025-03-14"},
		{in: "14/03/2025", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tp, err := generic.ParseTimePoint(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tp.String())
		})
	}
}

func TestTimePoint_IgnoresTimeOfDay(t *testing.T) {
	// GIVEN: Two instants on the same calendar day
	morning := generic.TimePoint{Time: time.Date(2025, time.March, 14, 8, 0, 0, 0, time.UTC)}
	evening := generic.TimePoint{Time: time.Date(2025, time.March, 14, 22, 0, 0, 0, time.UTC)}

	// THEN: They compare as the same day
	assert.True(t, morning.Equal(evening))
	assert.False(t, morning.Before(evening))
	assert.False(t, evening.After(morning))
	assert.Equal(t, 0, generic.DaysBetween(morning, evening))
}

func TestTimePoint_JSON(t *testing.T) {
	type payload struct {
		Date generic.TimePoint `json:"date"`
	}

	data, err := json.Marshal(payload{Date: day(2025, time.March, 31)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-03-31"}`, string(data))

	var back payload
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-12-01"}`), &back))
	assert.Equal(t, "2025-12-01", back.Date.String())

	assert.Error(t, json.Unmarshal([]byte(`{"date":"not a date"}`), &back))
}

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, "2024-02-29", generic.EndOfMonth(2024, time.February).String())
	assert.Equal(t, "2025-02-28", generic.EndOfMonth(2025, time.February).String())
	assert.Equal(t, "2025-12-31", generic.EndOfMonth(2025, time.December).String())
}

func TestNewPeriod_RejectsInvertedRange(t *testing.T) {
	_, err := generic.NewPeriod(day(2025, time.March, 14), day(2025, time.March, 3))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = generic.NewPeriod(generic.TimePoint{}, day(2025, time.March, 3))
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestPeriod_WorkingDays(t *testing.T) {
	tests := []struct {
		name     string
		from, to generic.TimePoint
		want     int
	}{
		{"two working weeks", day(2025, time.March, 3), day(2025, time.March, 14), 10},
		{"single saturday", day(2025, time.March, 8), day(2025, time.March, 8), 0},
		{"single monday", day(2025, time.March, 10), day(2025, time.March, 10), 1},
		{"weekend to weekend", day(2025, time.March, 1), day(2025, time.March, 9), 5},
		{"march 2025", day(2025, time.March, 1), day(2025, time.March, 31), 21},
		{"february 2025", day(2025, time.February, 1), day(2025, time.February, 28), 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := generic.NewPeriod(tt.from, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.WorkingDays())

			// Must agree with a day-by-day count.
			count := 0
			for _, d := range p.Days() {
				if d.IsWorkday() {
					count++
				}
			}
			assert.Equal(t, count, p.WorkingDays())
		})
	}
}

func TestPeriod_Intersect(t *testing.T) {
	march := generic.MonthOf(day(2025, time.March, 10))

	got, ok := march.Intersect(generic.Period{Start: day(2025, time.February, 20), End: day(2025, time.March, 5)})
	require.True(t, ok)
	assert.Equal(t, "[2025-03-01, 2025-03-05]", got.String())

	_, ok = march.Intersect(generic.Period{Start: day(2025, time.April, 1), End: day(2025, time.April, 2)})
	assert.False(t, ok)
}

func TestTermOf(t *testing.T) {
	assert.Equal(t, "[2025-01-01, 2025-04-30]", generic.TermOf(day(2025, time.February, 10)).String())
	assert.Equal(t, "[2025-05-01, 2025-08-31]", generic.TermOf(day(2025, time.August, 31)).String())
	assert.Equal(t, "[2025-09-01, 2025-12-31]", generic.TermOf(day(2025, time.September, 1)).String())
}

func TestAccrualMethod(t *testing.T) {
	yearly := decimal.NewFromInt(21)

	assert.True(t, generic.AccrualMonthly.Increment(yearly).Equal(decimal.RequireFromString("1.75")))
	assert.True(t, generic.AccrualPerTerm.Increment(yearly).Equal(decimal.NewFromInt(7)))
	assert.True(t, generic.AccrualYearly.Increment(yearly).Equal(yearly))
	assert.False(t, generic.AccrualMethod("weekly").Valid())

	ref := day(2025, time.June, 15)
	assert.Equal(t, "[2025-06-01, 2025-06-30]", generic.AccrualMonthly.PeriodFor(ref).String())
	assert.Equal(t, "[2025-01-01, 2025-12-31]", generic.AccrualYearly.PeriodFor(ref).String())
}

func TestPresenceRatio(t *testing.T) {
	march := generic.MonthOf(day(2025, time.March, 1))

	// No absences: full accrual
	assert.True(t, generic.PresenceRatio(march, nil).Equal(decimal.NewFromInt(1)))

	// Ten of twenty-one working days away
	absence := generic.Period{Start: day(2025, time.March, 3), End: day(2025, time.March, 14)}
	ratio := generic.PresenceRatio(march, []generic.Period{absence})
	assert.True(t, ratio.Mul(decimal.NewFromInt(21)).Round(6).Equal(decimal.NewFromInt(11)), ratio.String())

	// Overlapping absences count each day once
	overlap := generic.Period{Start: day(2025, time.March, 10), End: day(2025, time.March, 14)}
	assert.True(t, generic.PresenceRatio(march, []generic.Period{absence, overlap}).Equal(ratio))

	// A month fully away never goes negative
	assert.True(t, generic.PresenceRatio(march, []generic.Period{march}).IsZero())
}
