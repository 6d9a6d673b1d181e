package leave

import (
	"context"
	"fmt"

	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/pattern"
)

// AnalyzeEmployees loads request histories and runs the pattern analyzer.
// An empty employeeIDs analyzes everyone with requests. Nothing is written.
func (s *Service) AnalyzeEmployees(ctx context.Context, employeeIDs []generic.EmployeeID, cfg pattern.Config) ([]pattern.PatternAnalysisResult, error) {
	requests, err := s.store.ListRequests(ctx, generic.RequestFilter{EmployeeIDs: employeeIDs})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	names := make(map[generic.EmployeeID]string, len(employees))
	for _, emp := range employees {
		names[emp.ID] = emp.Name
	}

	byEmployee := make(map[generic.EmployeeID]pattern.EmployeeLeaves)
	for _, r := range requests {
		entry := byEmployee[r.EmployeeID]
		if entry.EmployeeName == "" {
			entry.EmployeeName = names[r.EmployeeID]
			if entry.EmployeeName == "" {
				entry.EmployeeName = r.EmployeeName
			}
		}
		entry.Leaves = append(entry.Leaves, r)
		byEmployee[r.EmployeeID] = entry
	}

	if cfg.SickLeaveTypes == nil {
		cfg.SickLeaveTypes = s.policy.SickTypes()
	}
	results := pattern.AnalyzeTeamLeavePatterns(byEmployee, cfg)
	s.logger.Debug("leave patterns analyzed",
		"employees", len(byEmployee),
		"flagged", len(results),
	)
	return results, nil
}
