package pattern

import (
	"sort"

	"github.com/warp/leave-ledger/generic"
)

const maxRiskScore = 100

// Analyzer runs a list of detectors over leave histories.
type Analyzer struct {
	Detectors []Detector
	Config    Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{Detectors: DefaultDetectors(), Config: cfg}
}

// AnalyzeTeamLeavePatterns runs the default detectors over a team.
func AnalyzeTeamLeavePatterns(leavesByEmployee map[generic.EmployeeID]EmployeeLeaves, cfg Config) []PatternAnalysisResult {
	return NewAnalyzer(cfg).Analyze(leavesByEmployee)
}

// Analyze returns one result per employee with at least one pattern,
// ordered by score (highest first) and then employee ID.
func (a *Analyzer) Analyze(leavesByEmployee map[generic.EmployeeID]EmployeeLeaves) []PatternAnalysisResult {
	cfg := a.Config
	histories := make([]History, 0, len(leavesByEmployee))
	for id, leaves := range leavesByEmployee {
		histories = append(histories, NewHistory(id, leaves, cfg))
	}

	// One reference date for the whole team keeps windows comparable.
	if cfg.ReferenceDate.IsZero() {
		var latest generic.TimePoint
		for _, h := range histories {
			if l := h.latest(); latest.IsZero() || l.After(latest) {
				latest = l
			}
		}
		for i := range histories {
			histories[i].ReferenceDate = latest
		}
	}

	var results []PatternAnalysisResult
	for _, h := range histories {
		if result, ok := a.AnalyzeHistory(h); ok {
			results = append(results, result)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].OverallRiskScore != results[j].OverallRiskScore {
			return results[i].OverallRiskScore > results[j].OverallRiskScore
		}
		return results[i].EmployeeID < results[j].EmployeeID
	})
	return results
}

// AnalyzeHistory scores a single prepared history. ok is false when no
// detector fired.
func (a *Analyzer) AnalyzeHistory(h History) (PatternAnalysisResult, bool) {
	result := PatternAnalysisResult{EmployeeID: h.EmployeeID, EmployeeName: h.EmployeeName}
	if len(h.Leaves) == 0 {
		return result, false
	}
	for _, d := range a.Detectors {
		if p := d.Evaluate(h, a.Config); p != nil {
			result.Patterns = append(result.Patterns, *p)
		}
	}
	if len(result.Patterns) == 0 {
		return result, false
	}
	result.OverallRiskScore = Score(result.Patterns)
	result.RiskLevel = RiskLevelFor(result.OverallRiskScore)
	return result, true
}

// Score sums the severity points of the patterns, capped at 100.
func Score(patterns []DetectedPattern) int {
	score := 0
	for _, p := range patterns {
		score += p.Severity.Points()
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}
