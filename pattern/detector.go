/*
Package pattern detects irregular leave usage from request history.

PURPOSE:
  Pure, deterministic scoring of an employee's leave history. Nothing here
  touches a store: callers load the requests and hand them in.

DETECTORS:
  Each detector implements Detector and fires at most once per employee:

    MondayFridayDetector      leaves starting or ending on Monday or Friday
    HolidayWeekendDetector    leaves that extend a holiday or weekend break
    ShortNoticeDetector       leaves requested less than N days ahead
    ClusteringDetector        bursts of short leaves in a rolling window
    BehavioralChangeDetector  recent leave rate against an earlier baseline
    ExcessiveSickDetector     sick days as a share of all leave days

SCORING:
  Severity is graduated by how far the measured value exceeds its
  threshold (ratio >= 2 high, >= 1.5 medium, otherwise low). Each pattern
  adds points (low 15, medium 25, high 35) and the total is capped at 100.

    score < 25   low
    25 - 49      medium
    50 - 74      high
    >= 75        critical

SEE ALSO:
  - analyzer.go: Team analysis and scoring
  - leave/patterns.go: Loading histories from the request store
*/
package pattern

import (
	"sort"

	"github.com/warp/leave-ledger/generic"
)

type PatternType string

const (
	MondayFridayExtension   PatternType = "monday_friday_extension"
	HolidayWeekendExtension PatternType = "holiday_weekend_extension"
	ShortNoticeClustering   PatternType = "short_notice_clustering"
	LeaveClustering         PatternType = "leave_clustering"
	BehavioralChange        PatternType = "behavioral_change"
	ExcessiveSickLeave      PatternType = "excessive_sick_leave"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Points is the score contribution of a pattern with this severity.
func (s Severity) Points() int {
	switch s {
	case SeverityHigh:
		return 35
	case SeverityMedium:
		return 25
	default:
		return 15
	}
}

// SeverityFor grades how far measured exceeds threshold.
func SeverityFor(measured, threshold float64) Severity {
	if threshold <= 0 {
		return SeverityHigh
	}
	ratio := measured / threshold
	switch {
	case ratio >= 2:
		return SeverityHigh
	case ratio >= 1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Occurrence is one piece of evidence for a pattern.
type Occurrence struct {
	Date    generic.TimePoint
	Details string
}

type DetectedPattern struct {
	Type        PatternType
	Severity    Severity
	Description string
	Suggestion  string
	Occurrences []Occurrence
	Measured    float64
	Threshold   float64
}

type PatternAnalysisResult struct {
	EmployeeID       generic.EmployeeID
	EmployeeName     string
	Patterns         []DetectedPattern
	OverallRiskScore int
	RiskLevel        RiskLevel
}

// EmployeeLeaves is one employee's raw input to the analyzer.
type EmployeeLeaves struct {
	EmployeeName string
	Leaves       []generic.LeaveRequest
}

// Leave is a well-formed request as the detectors see it.
type Leave struct {
	generic.LeaveRequest
	Period generic.Period
}

// History is the cleaned, date-ordered input to a detector.
type History struct {
	EmployeeID    generic.EmployeeID
	EmployeeName  string
	Leaves        []Leave
	ReferenceDate generic.TimePoint
}

// Detector is one irregularity check. Evaluate returns nil when the
// pattern is absent.
type Detector interface {
	Type() PatternType
	Evaluate(h History, cfg Config) *DetectedPattern
}

// NewHistory drops malformed and excluded records and orders the rest by
// start date. A zero reference date falls back to the latest leave end.
func NewHistory(id generic.EmployeeID, in EmployeeLeaves, cfg Config) History {
	h := History{EmployeeID: id, EmployeeName: in.EmployeeName, ReferenceDate: cfg.ReferenceDate}
	for _, r := range in.Leaves {
		period, ok := r.Period()
		if !ok || !r.DurationDays.IsPositive() || cfg.excluded(r.Status) {
			continue
		}
		h.Leaves = append(h.Leaves, Leave{LeaveRequest: r, Period: period})
	}
	sort.SliceStable(h.Leaves, func(i, j int) bool {
		a, b := h.Leaves[i], h.Leaves[j]
		if !a.From.Equal(b.From) {
			return a.From.Before(b.From)
		}
		return a.ID < b.ID
	})
	if h.ReferenceDate.IsZero() {
		h.ReferenceDate = h.latest()
	}
	return h
}

func (h History) latest() generic.TimePoint {
	var latest generic.TimePoint
	for _, l := range h.Leaves {
		if latest.IsZero() || l.To.After(latest) {
			latest = l.To
		}
	}
	return latest
}

func (l Leave) days() float64 {
	return l.DurationDays.InexactFloat64()
}

func (l Leave) short(cfg Config) bool {
	return l.days() <= cfg.ShortLeaveMaxDays
}
