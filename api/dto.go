/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMAT:
  - Dates are YYYY-MM-DD strings (generic.TimePoint implements TextMarshaler)
  - Day amounts in requests may be JSON numbers or strings; they decode
    straight into decimal.Decimal
  - Day amounts in responses are JSON numbers
  - Percentages are rounded to one decimal place

VALIDATION:
  Validation is done by the leave service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/: Input and result types these map to
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/pattern"
)

func days(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func datePtr(tp *generic.TimePoint) string {
	if tp == nil {
		return ""
	}
	return tp.String()
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	HireDate   string `json:"hire_date,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Department string            `json:"department"`
	HireDate   generic.TimePoint `json:"hire_date"`
}

func toEmployeeDTO(e generic.Employee) EmployeeDTO {
	dto := EmployeeDTO{
		ID:         string(e.ID),
		Name:       e.Name,
		Department: e.Department,
	}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.String()
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// BALANCES AND ENTITLEMENTS
// =============================================================================

// EntitlementDTO is a balance as seen by HR: the stored record plus the
// derived remaining balance.
type EntitlementDTO struct {
	ID                    string  `json:"id"`
	EmployeeID            string  `json:"employee_id"`
	LeaveTypeID           string  `json:"leave_type_id"`
	LeaveTypeName         string  `json:"leave_type_name,omitempty"`
	PolicyYear            int     `json:"policy_year"`
	YearlyEntitlement     float64 `json:"yearly_entitlement"`
	CarryForward          float64 `json:"carry_forward"`
	CarryForwardExpiry    string  `json:"carry_forward_expiry,omitempty"`
	CarryForwardAvailable float64 `json:"carry_forward_available"`
	Accrued               float64 `json:"accrued"`
	Taken                 float64 `json:"taken"`
	Pending               float64 `json:"pending"`
	Remaining             float64 `json:"remaining"`
	Version               int64   `json:"version"`
}

type BalancesResponse struct {
	EmployeeID string           `json:"employee_id"`
	AsOf       string           `json:"as_of"`
	Balances   []EntitlementDTO `json:"balances"`
}

func toEntitlementDTO(e generic.Entitlement, name string) EntitlementDTO {
	return EntitlementDTO{
		ID:                    e.ID,
		EmployeeID:            string(e.EmployeeID),
		LeaveTypeID:           string(e.LeaveTypeID),
		LeaveTypeName:         name,
		PolicyYear:            e.PolicyYear,
		YearlyEntitlement:     days(e.YearlyEntitlement),
		CarryForward:          days(e.CarryForward),
		CarryForwardExpiry:    datePtr(e.CarryForwardExpiry),
		CarryForwardAvailable: days(e.UnusedCarryForward()),
		Accrued:               days(e.Accrued),
		Taken:                 days(e.Taken),
		Pending:               days(e.Pending),
		Remaining:             days(e.Remaining()),
		Version:               e.Version,
	}
}

func toBalanceDTO(b generic.Balance, name string) EntitlementDTO {
	dto := toEntitlementDTO(b.Entitlement, name)
	dto.Remaining = days(b.Remaining)
	dto.CarryForwardAvailable = days(b.CarryForwardAvailable)
	return dto
}

type AssignEntitlementRequest struct {
	EmployeeID        string          `json:"employee_id"`
	LeaveTypeID       string          `json:"leave_type_id"`
	YearlyEntitlement decimal.Decimal `json:"yearly_entitlement"`
	ActorID           string          `json:"actor_id"`
	Reason            string          `json:"reason"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

type AdjustmentDTO struct {
	ID             string            `json:"id"`
	EmployeeID     string            `json:"employee_id"`
	LeaveTypeID    string            `json:"leave_type_id"`
	Type           string            `json:"type"`
	Kind           string            `json:"kind"`
	Amount         float64           `json:"amount"`
	Reason         string            `json:"reason"`
	ActorID        string            `json:"actor_id"`
	RequestID      string            `json:"request_id,omitempty"`
	Override       bool              `json:"override,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

func toAdjustmentDTO(a generic.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:             string(a.ID),
		EmployeeID:     string(a.EmployeeID),
		LeaveTypeID:    string(a.LeaveTypeID),
		Type:           string(a.Type),
		Kind:           string(a.Kind),
		Amount:         days(a.Amount),
		Reason:         a.Reason,
		ActorID:        a.ActorID,
		RequestID:      string(a.RequestID),
		Override:       a.Override,
		IdempotencyKey: a.IdempotencyKey,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

func toAdjustmentDTOs(adjustments []generic.Adjustment) []AdjustmentDTO {
	dtos := make([]AdjustmentDTO, len(adjustments))
	for i, a := range adjustments {
		dtos[i] = toAdjustmentDTO(a)
	}
	return dtos
}

type CreateAdjustmentRequest struct {
	EmployeeID    string          `json:"employee_id"`
	LeaveTypeID   string          `json:"leave_type_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	ActorID       string          `json:"actor_id"`
	AllowNegative bool            `json:"allow_negative"`
}

type AdjustmentResponse struct {
	Adjustment  AdjustmentDTO  `json:"adjustment"`
	Entitlement EntitlementDTO `json:"entitlement"`
	Remaining   float64        `json:"remaining"`
}

// RecalcResponse lists every entitlement the recalculation touched.
type RecalcResponse struct {
	EmployeeID   string           `json:"employee_id"`
	Entitlements []RecalcEntryDTO `json:"entitlements"`
}

type RecalcEntryDTO struct {
	LeaveTypeID     string  `json:"leave_type_id"`
	PreviousTaken   float64 `json:"previous_taken"`
	Taken           float64 `json:"taken"`
	PreviousPending float64 `json:"previous_pending"`
	Pending         float64 `json:"pending"`
	Remaining       float64 `json:"remaining"`
	Changed         bool    `json:"changed"`
	Overdrawn       bool    `json:"overdrawn"`
}

type RecalcRequest struct {
	ActorID string `json:"actor_id"`
}

// =============================================================================
// ACCRUAL
// =============================================================================

type RunAccrualRequest struct {
	ReferenceDate generic.TimePoint `json:"reference_date"`
	Method        string            `json:"method"`
	Rounding      string            `json:"rounding"`
	Idempotent    bool              `json:"idempotent"`
	ActorID       string            `json:"actor_id"`
}

type BatchFailureDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id,omitempty"`
	Error       string `json:"error"`
}

func toFailureDTOs(failures []leave.BatchFailure) []BatchFailureDTO {
	dtos := make([]BatchFailureDTO, len(failures))
	for i, f := range failures {
		dtos[i] = BatchFailureDTO{
			EmployeeID:  string(f.EmployeeID),
			LeaveTypeID: string(f.LeaveTypeID),
			Error:       f.Error,
		}
	}
	return dtos
}

type AccrualResultDTO struct {
	Processed         int               `json:"processed"`
	Created           int               `json:"created"`
	TotalEntitlements int               `json:"total_entitlements"`
	Skipped           int               `json:"skipped"`
	Duplicates        int               `json:"duplicates"`
	TotalAccrued      float64           `json:"total_accrued"`
	PeriodStart       string            `json:"period_start"`
	PeriodEnd         string            `json:"period_end"`
	Failures          []BatchFailureDTO `json:"failures"`
}

// =============================================================================
// CARRY-FORWARD
// =============================================================================

type CarryForwardRuleDTO struct {
	CanCarryForward bool            `json:"can_carry_forward"`
	Cap             decimal.Decimal `json:"cap"`
	ExpiryMonths    int             `json:"expiry_months"`
}

type CarryForwardRequest struct {
	ReferenceDate generic.TimePoint              `json:"reference_date"`
	Rules         map[string]CarryForwardRuleDTO `json:"rules"`
	ActorID       string                         `json:"actor_id"`
}

type CarryForwardDetailDTO struct {
	EmployeeID        string  `json:"employee_id"`
	LeaveTypeID       string  `json:"leave_type_id"`
	LeaveTypeName     string  `json:"leave_type_name"`
	PreviousRemaining float64 `json:"previous_remaining"`
	CappedAmount      float64 `json:"capped_amount"`
	CarriedForward    float64 `json:"carried_forward"`
	Expired           float64 `json:"expired"`
	ExpiryDate        string  `json:"expiry_date,omitempty"`
}

type LeaveTypeCarryForwardDTO struct {
	Employees      int     `json:"employees"`
	CarriedForward float64 `json:"carried_forward"`
	Expired        float64 `json:"expired"`
}

type CarryForwardPreviewResponse struct {
	Details []CarryForwardDetailDTO `json:"details"`
	Summary struct {
		ByLeaveType         map[string]LeaveTypeCarryForwardDTO `json:"by_leave_type"`
		EmployeesProcessed  int                                 `json:"employees_processed"`
		TotalCarriedForward float64                             `json:"total_carried_forward"`
		TotalExpired        float64                             `json:"total_expired"`
	} `json:"summary"`
}

type CarryForwardResultDTO struct {
	Processed           int               `json:"processed"`
	TotalCarriedForward float64           `json:"total_carried_forward"`
	TotalExpired        float64           `json:"total_expired"`
	Duplicates          int               `json:"duplicates"`
	Failures            []BatchFailureDTO `json:"failures"`
}

type OverrideCarryForwardRequest struct {
	EmployeeID  string             `json:"employee_id"`
	LeaveTypeID string             `json:"leave_type_id"`
	Days        decimal.Decimal    `json:"days"`
	ExpiryDate  *generic.TimePoint `json:"expiry_date"`
	Reason      string             `json:"reason"`
	ActorID     string             `json:"actor_id"`
}

type OverrideResultDTO struct {
	PreviousCarryForward float64        `json:"previous_carry_forward"`
	NewCarryForward      float64        `json:"new_carry_forward"`
	NewRemaining         float64        `json:"new_remaining"`
	Entitlement          EntitlementDTO `json:"entitlement"`
}

type CarryForwardReportRowDTO struct {
	EmployeeID         string  `json:"employee_id"`
	LeaveTypeID        string  `json:"leave_type_id"`
	LeaveTypeName      string  `json:"leave_type_name"`
	YearlyEntitlement  float64 `json:"yearly_entitlement"`
	CarryForward       float64 `json:"carry_forward"`
	Taken              float64 `json:"taken"`
	Remaining          float64 `json:"remaining"`
	CarryForwardExpiry string  `json:"carry_forward_expiry,omitempty"`
}

type CarryForwardReportDTO struct {
	AsOf    string `json:"as_of"`
	Summary struct {
		Entitlements      int     `json:"entitlements"`
		Employees         int     `json:"employees"`
		TotalCarryForward float64 `json:"total_carry_forward"`
		TotalRemaining    float64 `json:"total_remaining"`
	} `json:"summary"`
	Rows []CarryForwardReportRowDTO `json:"rows"`
}

// =============================================================================
// SUSPENSIONS
// =============================================================================

type SuspensionPreviewRequest struct {
	From              generic.TimePoint `json:"from"`
	To                generic.TimePoint `json:"to"`
	YearlyEntitlement *decimal.Decimal  `json:"yearly_entitlement"`
}

type SuspensionPreviewDTO struct {
	WorkingDays      int     `json:"working_days"`
	TotalDays        int     `json:"total_days"`
	MonthWorkingDays int     `json:"month_working_days"`
	ProrateRatio     float64 `json:"prorate_ratio"`
	ProratePercent   float64 `json:"prorate_percent"`
	OriginalAccrual  float64 `json:"original_accrual"`
	AdjustedAccrual  float64 `json:"adjusted_accrual"`
	AdjustmentDays   float64 `json:"adjustment_days"`
}

func toSuspensionPreviewDTO(p leave.SuspensionPreview) SuspensionPreviewDTO {
	return SuspensionPreviewDTO{
		WorkingDays:      p.WorkingDays,
		TotalDays:        p.TotalDays,
		MonthWorkingDays: p.MonthWorkingDays,
		ProrateRatio:     days(p.ProrateRatio),
		ProratePercent:   generic.Percent(p.ProrateRatio),
		OriginalAccrual:  days(p.OriginalAccrual),
		AdjustedAccrual:  days(p.AdjustedAccrual),
		AdjustmentDays:   days(p.AdjustmentDays),
	}
}

type ApplySuspensionRequest struct {
	EmployeeID    string            `json:"employee_id"`
	LeaveTypeID   string            `json:"leave_type_id"`
	Type          string            `json:"type"`
	From          generic.TimePoint `json:"from"`
	To            generic.TimePoint `json:"to"`
	Reason        string            `json:"reason"`
	ActorID       string            `json:"actor_id"`
	Deduct        bool              `json:"deduct"`
	AllowNegative bool              `json:"allow_negative"`
}

type SuspensionDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	LeaveTypeID  string  `json:"leave_type_id,omitempty"`
	Type         string  `json:"type"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Reason       string  `json:"reason"`
	Settled      bool    `json:"settled"`
	DeductedDays float64 `json:"deducted_days"`
}

type SuspensionResultDTO struct {
	Suspension  SuspensionDTO        `json:"suspension"`
	Preview     SuspensionPreviewDTO `json:"preview"`
	Adjustment  *AdjustmentDTO       `json:"adjustment,omitempty"`
	Entitlement *EntitlementDTO      `json:"entitlement,omitempty"`
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SaveRequestRequest seeds a leave request owned by the external request
// workflow.
type SaveRequestRequest struct {
	ID           string            `json:"id"`
	EmployeeID   string            `json:"employee_id"`
	EmployeeName string            `json:"employee_name"`
	LeaveTypeID  string            `json:"leave_type_id"`
	From         generic.TimePoint `json:"from"`
	To           generic.TimePoint `json:"to"`
	DurationDays decimal.Decimal   `json:"duration_days"`
	Status       string            `json:"status"`
	Reason       string            `json:"reason"`
	CreatedAt    *time.Time        `json:"created_at"`
}

type RequestDTO struct {
	ID               string  `json:"id"`
	EmployeeID       string  `json:"employee_id"`
	EmployeeName     string  `json:"employee_name,omitempty"`
	LeaveTypeID      string  `json:"leave_type_id"`
	From             string  `json:"from"`
	To               string  `json:"to"`
	DurationDays     float64 `json:"duration_days"`
	Status           string  `json:"status"`
	Reason           string  `json:"reason,omitempty"`
	FlaggedIrregular bool    `json:"flagged_irregular"`
	IrregularReason  string  `json:"irregular_reason,omitempty"`
	DecidedBy        string  `json:"decided_by,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func toRequestDTO(r generic.LeaveRequest) RequestDTO {
	return RequestDTO{
		ID:               string(r.ID),
		EmployeeID:       string(r.EmployeeID),
		EmployeeName:     r.EmployeeName,
		LeaveTypeID:      string(r.LeaveTypeID),
		From:             r.From.String(),
		To:               r.To.String(),
		DurationDays:     days(r.DurationDays),
		Status:           string(r.Status),
		Reason:           r.Reason,
		FlaggedIrregular: r.FlaggedIrregular,
		IrregularReason:  r.IrregularReason,
		DecidedBy:        r.DecidedBy,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}

type FinalizeRequestRequest struct {
	ActorID       string `json:"actor_id"`
	Decision      string `json:"decision"`
	AllowNegative bool   `json:"allow_negative"`
	Reason        string `json:"reason"`
	IsOverride    bool   `json:"is_override"`
}

type FinalizeResponse struct {
	Request        RequestDTO      `json:"request"`
	Entitlement    *EntitlementDTO `json:"entitlement,omitempty"`
	Adjustment     *AdjustmentDTO  `json:"adjustment,omitempty"`
	AlreadyApplied bool            `json:"already_applied"`
}

type FlagRequestRequest struct {
	Flagged *bool  `json:"flagged"`
	Reason  string `json:"reason"`
}

// =============================================================================
// PATTERNS
// =============================================================================

type AnalyzePatternsRequest struct {
	EmployeeIDs      []string            `json:"employee_ids"`
	ReferenceDate    *generic.TimePoint  `json:"reference_date"`
	Holidays         []generic.TimePoint `json:"holidays"`
	ExcludedStatuses []string            `json:"excluded_statuses"`
}

type OccurrenceDTO struct {
	Date    string `json:"date"`
	Details string `json:"details"`
}

type DetectedPatternDTO struct {
	Type        string          `json:"type"`
	Severity    string          `json:"severity"`
	Description string          `json:"description"`
	Suggestion  string          `json:"suggestion"`
	Occurrences []OccurrenceDTO `json:"occurrences"`
	Measured    float64         `json:"measured"`
	Threshold   float64         `json:"threshold"`
}

type PatternResultDTO struct {
	EmployeeID       string               `json:"employee_id"`
	EmployeeName     string               `json:"employee_name"`
	Patterns         []DetectedPatternDTO `json:"patterns"`
	OverallRiskScore int                  `json:"overall_risk_score"`
	RiskLevel        string               `json:"risk_level"`
}

func toPatternResultDTO(r pattern.PatternAnalysisResult) PatternResultDTO {
	dto := PatternResultDTO{
		EmployeeID:       string(r.EmployeeID),
		EmployeeName:     r.EmployeeName,
		Patterns:         make([]DetectedPatternDTO, len(r.Patterns)),
		OverallRiskScore: r.OverallRiskScore,
		RiskLevel:        string(r.RiskLevel),
	}
	for i, p := range r.Patterns {
		occurrences := make([]OccurrenceDTO, len(p.Occurrences))
		for j, o := range p.Occurrences {
			occurrences[j] = OccurrenceDTO{Date: o.Date.String(), Details: o.Details}
		}
		dto.Patterns[i] = DetectedPatternDTO{
			Type:        string(p.Type),
			Severity:    string(p.Severity),
			Description: p.Description,
			Suggestion:  p.Suggestion,
			Occurrences: occurrences,
			Measured:    p.Measured,
			Threshold:   p.Threshold,
		}
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
