package pattern

import (
	"fmt"
	"math"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// DefaultDetectors returns every built-in detector in reporting order.
func DefaultDetectors() []Detector {
	return []Detector{
		MondayFridayDetector{},
		HolidayWeekendDetector{},
		ShortNoticeDetector{},
		ClusteringDetector{},
		BehavioralChangeDetector{},
		ExcessiveSickDetector{},
	}
}

func percent(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}

// =============================================================================
// MONDAY / FRIDAY EXTENSION
// =============================================================================

// MondayFridayDetector counts leaves that start or end on a Monday or
// Friday. Numerator and denominator both cover every leave in the history,
// so a Wednesday to Friday leave counts the same as a lone Friday.
type MondayFridayDetector struct{}

func (MondayFridayDetector) Type() PatternType { return MondayFridayExtension }

func (MondayFridayDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	if len(h.Leaves) == 0 {
		return nil
	}
	var occurrences []Occurrence
	for _, l := range h.Leaves {
		switch {
		case l.From.Weekday() == time.Monday || l.From.Weekday() == time.Friday:
			occurrences = append(occurrences, Occurrence{Date: l.From, Details: fmt.Sprintf("%s leave starts on %s", l.DurationDays, l.From.Weekday())})
		case l.To.Weekday() == time.Monday || l.To.Weekday() == time.Friday:
			occurrences = append(occurrences, Occurrence{Date: l.To, Details: fmt.Sprintf("%s leave ends on %s", l.DurationDays, l.To.Weekday())})
		}
	}

	ratio := float64(len(occurrences)) / float64(len(h.Leaves))
	if len(occurrences) < cfg.MondayFridayMinOccurrences || ratio < cfg.MondayFridayMinRatio {
		return nil
	}
	return &DetectedPattern{
		Type:     MondayFridayExtension,
		Severity: SeverityFor(ratio, cfg.MondayFridayMinRatio),
		Description: fmt.Sprintf("%d of %d leaves (%.1f%%) start or end on a Monday or Friday",
			len(occurrences), len(h.Leaves), percent(ratio)),
		Suggestion:  "Review whether leaves are being used to extend weekends",
		Occurrences: occurrences,
		Measured:    ratio,
		Threshold:   cfg.MondayFridayMinRatio,
	}
}

// =============================================================================
// HOLIDAY / WEEKEND EXTENSION
// =============================================================================

// HolidayWeekendDetector counts leaves that touch a weekend or holiday on
// either side, turning it into a longer break. It fires only when that count
// is above what the same leaves would produce by chance: for each leave, the
// share of working-day starts in its month from which a leave of the same
// length would also touch a non-working day.
type HolidayWeekendDetector struct{}

func (HolidayWeekendDetector) Type() PatternType { return HolidayWeekendExtension }

func (HolidayWeekendDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	calendar := cfg.holidays()
	var occurrences []Occurrence
	var expected float64
	for _, l := range h.Leaves {
		expected += chanceAdjacent(l, calendar)
		before := nonWorkingRun(l.From.AddDays(-1), -1, calendar)
		after := nonWorkingRun(l.To.AddDays(1), 1, calendar)
		if before == 0 && after == 0 {
			continue
		}
		breakDays := before + l.Period.TotalDays() + after
		occurrences = append(occurrences, Occurrence{
			Date:    l.From,
			Details: fmt.Sprintf("leave %s extends a break to %d consecutive days", l.Period, breakDays),
		})
	}

	count := len(occurrences)
	if count == 0 || count < cfg.HolidayMinOccurrences || float64(count) <= expected {
		return nil
	}
	return &DetectedPattern{
		Type:     HolidayWeekendExtension,
		Severity: SeverityFor(float64(count), float64(cfg.HolidayMinOccurrences)),
		Description: fmt.Sprintf("%d leaves are adjacent to a weekend or holiday (%.1f expected by chance)",
			count, expected),
		Suggestion:  "Check leave timing around public holidays and weekends",
		Occurrences: occurrences,
		Measured:    float64(count),
		Threshold:   float64(cfg.HolidayMinOccurrences),
	}
}

// chanceAdjacent is the probability that a leave spanning as many calendar
// days as l, started on a random working day of l's month, touches a
// non-working day on either side.
func chanceAdjacent(l Leave, calendar generic.HolidayCalendar) float64 {
	span := l.Period.TotalDays()
	starts, adjacent := 0, 0
	for _, day := range generic.MonthOf(l.From).Days() {
		if day.IsNonWorking(calendar) {
			continue
		}
		starts++
		if day.AddDays(-1).IsNonWorking(calendar) || day.AddDays(span).IsNonWorking(calendar) {
			adjacent++
		}
	}
	if starts == 0 {
		return 0
	}
	return float64(adjacent) / float64(starts)
}

// nonWorkingRun counts consecutive non-working days starting at day and
// walking in step direction.
func nonWorkingRun(day generic.TimePoint, step int, calendar generic.HolidayCalendar) int {
	n := 0
	for day.IsNonWorking(calendar) && n < 31 {
		n++
		day = day.AddDays(step)
	}
	return n
}

// =============================================================================
// SHORT NOTICE
// =============================================================================

// ShortNoticeDetector counts non-sick leaves submitted less than
// ShortNoticeDays before they start, within the analysis window.
type ShortNoticeDetector struct{}

func (ShortNoticeDetector) Type() PatternType { return ShortNoticeClustering }

func (ShortNoticeDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	windowStart := h.ReferenceDate.AddDays(-cfg.AnalysisWindowDays)
	var occurrences []Occurrence
	for _, l := range h.Leaves {
		if l.CreatedAt.IsZero() || cfg.isSick(l.LeaveTypeID) || l.From.Before(windowStart) {
			continue
		}
		notice := generic.DaysBetween(generic.DateOf(l.CreatedAt), l.From)
		if notice >= cfg.ShortNoticeDays {
			continue
		}
		occurrences = append(occurrences, Occurrence{
			Date:    l.From,
			Details: fmt.Sprintf("requested %d day(s) before the start date", notice),
		})
	}

	count := len(occurrences)
	if count == 0 || count < cfg.ShortNoticeMinOccurrences {
		return nil
	}
	return &DetectedPattern{
		Type:     ShortNoticeClustering,
		Severity: SeverityFor(float64(count), float64(cfg.ShortNoticeMinOccurrences)),
		Description: fmt.Sprintf("%d leaves requested with less than %d days notice in the last %d days",
			count, cfg.ShortNoticeDays, cfg.AnalysisWindowDays),
		Suggestion:  "Discuss planning and notice expectations with the employee",
		Occurrences: occurrences,
		Measured:    float64(count),
		Threshold:   float64(cfg.ShortNoticeMinOccurrences),
	}
}

// =============================================================================
// LEAVE CLUSTERING
// =============================================================================

// ClusteringDetector finds groups of at least ClusterMinSize short leaves
// starting within ClusterWindowDays of each other. Clusters do not share leaves.
type ClusteringDetector struct{}

func (ClusteringDetector) Type() PatternType { return LeaveClustering }

func (ClusteringDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	var short []Leave
	for _, l := range h.Leaves {
		if l.short(cfg) {
			short = append(short, l)
		}
	}

	var occurrences []Occurrence
	for i := 0; i < len(short); {
		windowEnd := short[i].From.AddDays(cfg.ClusterWindowDays - 1)
		j := i
		for j < len(short) && short[j].From.BeforeOrEqual(windowEnd) {
			j++
		}
		size := j - i
		if cfg.ClusterMinSize > 0 && size >= cfg.ClusterMinSize {
			occurrences = append(occurrences, Occurrence{
				Date: short[i].From,
				Details: fmt.Sprintf("%d short leaves between %s and %s",
					size, short[i].From, short[j-1].From),
			})
			i = j
			continue
		}
		i++
	}

	count := len(occurrences)
	if count == 0 || count < cfg.ClusterMinCount {
		return nil
	}
	return &DetectedPattern{
		Type:     LeaveClustering,
		Severity: SeverityFor(float64(count), float64(cfg.ClusterMinCount)),
		Description: fmt.Sprintf("%d clusters of %d or more short leaves within %d days",
			count, cfg.ClusterMinSize, cfg.ClusterWindowDays),
		Suggestion:  "Look for an underlying cause behind repeated short absences",
		Occurrences: occurrences,
		Measured:    float64(count),
		Threshold:   float64(cfg.ClusterMinCount),
	}
}

// =============================================================================
// BEHAVIORAL CHANGE
// =============================================================================

// BehavioralChangeDetector compares the leave rate of the recent window
// with the rate before it, both per 30 days.
type BehavioralChangeDetector struct{}

func (BehavioralChangeDetector) Type() PatternType { return BehavioralChange }

func (BehavioralChangeDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	if len(h.Leaves) == 0 || cfg.BehaviorRecentDays <= 0 {
		return nil
	}
	recentStart := h.ReferenceDate.AddDays(-cfg.BehaviorRecentDays + 1)

	var recent []Leave
	baseline := 0
	for _, l := range h.Leaves {
		switch {
		case l.From.Before(recentStart):
			baseline++
		case l.From.BeforeOrEqual(h.ReferenceDate):
			recent = append(recent, l)
		}
	}
	if baseline == 0 || len(recent) < cfg.BehaviorMinRecent {
		return nil
	}

	baselineDays := generic.DaysBetween(h.Leaves[0].From, recentStart)
	if baselineDays < 30 {
		baselineDays = 30
	}
	baselineRate := float64(baseline) * 30 / float64(baselineDays)
	recentRate := float64(len(recent)) * 30 / float64(cfg.BehaviorRecentDays)
	multiplier := recentRate / baselineRate
	if multiplier < cfg.BehaviorMultiplier {
		return nil
	}

	occurrences := make([]Occurrence, 0, len(recent))
	for _, l := range recent {
		occurrences = append(occurrences, Occurrence{Date: l.From, Details: fmt.Sprintf("%s day(s) of %s", l.DurationDays, l.LeaveTypeID)})
	}
	return &DetectedPattern{
		Type:     BehavioralChange,
		Severity: SeverityFor(multiplier, cfg.BehaviorMultiplier),
		Description: fmt.Sprintf("leave frequency rose to %.1fx the baseline (%.2f vs %.2f leaves per 30 days)",
			multiplier, recentRate, baselineRate),
		Suggestion:  "Check in with the employee about recent changes in circumstances",
		Occurrences: occurrences,
		Measured:    multiplier,
		Threshold:   cfg.BehaviorMultiplier,
	}
}

// =============================================================================
// EXCESSIVE SICK LEAVE
// =============================================================================

// ExcessiveSickDetector fires when sick days make up too large a share of
// all leave days.
type ExcessiveSickDetector struct{}

func (ExcessiveSickDetector) Type() PatternType { return ExcessiveSickLeave }

func (ExcessiveSickDetector) Evaluate(h History, cfg Config) *DetectedPattern {
	if len(h.Leaves) < cfg.ExcessiveSickMinLeaves || cfg.ExcessiveSickRatio <= 0 {
		return nil
	}
	var total, sick float64
	var occurrences []Occurrence
	for _, l := range h.Leaves {
		total += l.days()
		if cfg.isSick(l.LeaveTypeID) {
			sick += l.days()
			occurrences = append(occurrences, Occurrence{Date: l.From, Details: fmt.Sprintf("%s sick day(s)", l.DurationDays)})
		}
	}
	if total == 0 {
		return nil
	}
	ratio := sick / total
	if ratio < cfg.ExcessiveSickRatio {
		return nil
	}
	return &DetectedPattern{
		Type:        ExcessiveSickLeave,
		Severity:    SeverityFor(ratio, cfg.ExcessiveSickRatio),
		Description: fmt.Sprintf("sick leave is %.1f%% of all leave days (%.1f of %.1f)", percent(ratio), sick, total),
		Suggestion:  "Consider a wellbeing conversation or occupational health referral",
		Occurrences: occurrences,
		Measured:    ratio,
		Threshold:   cfg.ExcessiveSickRatio,
	}
}
