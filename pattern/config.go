package pattern

import (
	"github.com/warp/leave-ledger/generic"
)

// Config carries every threshold the detectors use. DefaultConfig returns
// the documented defaults; callers override fields individually.
type Config struct {
	// ReferenceDate anchors the rolling windows. Zero means the latest leave
	// date in the analyzed set, which keeps results independent of the clock.
	ReferenceDate generic.TimePoint

	// ExcludedStatuses are dropped before analysis.
	ExcludedStatuses []generic.RequestStatus

	// ShortLeaveMaxDays is the longest leave the clustering detector counts as "short".
	ShortLeaveMaxDays float64

	MondayFridayMinRatio       float64
	MondayFridayMinOccurrences int

	HolidayMinOccurrences int
	Holidays              generic.HolidayCalendar

	ShortNoticeDays           int
	ShortNoticeMinOccurrences int
	AnalysisWindowDays        int

	ClusterWindowDays int
	ClusterMinSize    int
	ClusterMinCount   int

	BehaviorRecentDays int
	BehaviorMultiplier float64
	BehaviorMinRecent  int

	ExcessiveSickRatio     float64
	ExcessiveSickMinLeaves int
	SickLeaveTypes         []generic.LeaveTypeID
}

func DefaultConfig() Config {
	return Config{
		ExcludedStatuses:           []generic.RequestStatus{generic.RequestRejected, generic.RequestCancelled},
		ShortLeaveMaxDays:          2,
		MondayFridayMinRatio:       0.4,
		MondayFridayMinOccurrences: 3,
		HolidayMinOccurrences:      3,
		Holidays:                   generic.NewHolidaySet(),
		ShortNoticeDays:            2,
		ShortNoticeMinOccurrences:  3,
		AnalysisWindowDays:         365,
		ClusterWindowDays:          30,
		ClusterMinSize:             3,
		ClusterMinCount:            2,
		BehaviorRecentDays:         90,
		BehaviorMultiplier:         1.5,
		BehaviorMinRecent:          2,
		ExcessiveSickRatio:         0.5,
		ExcessiveSickMinLeaves:     3,
		SickLeaveTypes:             []generic.LeaveTypeID{"sick"},
	}
}

func (c Config) isSick(id generic.LeaveTypeID) bool {
	for _, sick := range c.SickLeaveTypes {
		if sick == id {
			return true
		}
	}
	return false
}

func (c Config) excluded(status generic.RequestStatus) bool {
	for _, s := range c.ExcludedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (c Config) holidays() generic.HolidayCalendar {
	if c.Holidays == nil {
		return generic.NewHolidaySet()
	}
	return c.Holidays
}
