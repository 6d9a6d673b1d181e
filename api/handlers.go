/*
handlers.go - HTTP API handlers for the leave ledger

PURPOSE:
  Exposes the leave ledger service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to leave.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List employees
    POST   /api/employees                       Save employee
    GET    /api/employees/{id}/balances         Balances (lazy expiry applied)
    GET    /api/employees/{id}/adjustments      Audit trail, newest first
    POST   /api/employees/{id}/recalculate      Rebuild taken/pending from requests

  Ledger:
    POST   /api/entitlements                    Assign yearly entitlement
    POST   /api/adjustments                     Manual add/deduct

  Batch:
    POST   /api/accrual/run                     Accrue every entitlement
    POST   /api/carry-forward/preview           Dry run of the year-end migration
    POST   /api/carry-forward                   Year-end migration
    POST   /api/carry-forward/override          Set carry-forward by hand
    GET    /api/carry-forward/report            Report as JSON
    GET    /api/carry-forward/report.pdf        Report as PDF

  Suspensions:
    POST   /api/suspensions/preview             Proration preview
    POST   /api/suspensions                     Record a suspension

  Requests:
    POST   /api/requests                        Seed a request
    POST   /api/requests/{id}/finalize          Approve or reject
    POST   /api/requests/{id}/flag              Set the irregular flag

  Patterns:
    POST   /api/patterns/analyze                Team irregularity analysis

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown leave type
  - 404: Employee, request or entitlement not found
  - 409: Conflict (invalid state, duplicate idempotency key, version clash)
  - 422: Insufficient balance
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Actor IDs are taken from the body.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
	"github.com/warp/leave-ledger/pattern"
	"github.com/warp/leave-ledger/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// AccrualDefaults fill in a run request that leaves method or rounding blank.
type AccrualDefaults struct {
	Method   generic.AccrualMethod
	Rounding generic.Rounding
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Store    generic.Store
	Accrual  AccrualDefaults
	Patterns pattern.Config

	logger *slog.Logger
}

// NewHandler creates a handler around the service. store must be the same
// store the service was built on; the handler uses it for the employee
// directory and request seeding.
func NewHandler(svc *leave.Service, store generic.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:  svc,
		Store:    store,
		Accrual:  AccrualDefaults{Method: generic.AccrualMonthly, Rounding: generic.RoundNone},
		Patterns: pattern.DefaultConfig(),
		logger:   logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee saves an employee to the directory.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "Invalid employee", generic.Invalid("id", "is required"))
		return
	}

	emp := generic.Employee{
		ID:         generic.EmployeeID(req.ID),
		Name:       req.Name,
		Department: req.Department,
		HireDate:   req.HireDate,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalances returns every entitlement of the employee with lazy expiry
// applied. Auto-initialized leave types are created on first access.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	employeeID := generic.EmployeeID(chi.URLParam(r, "id"))

	balances, err := h.Service.GetBalances(r.Context(), employeeID)
	if err != nil {
		writeServiceError(w, "Failed to load balances", err)
		return
	}

	policy := h.Service.Policy()
	resp := BalancesResponse{
		EmployeeID: string(employeeID),
		AsOf:       generic.Today().String(),
		Balances:   make([]EntitlementDTO, len(balances)),
	}
	for i, b := range balances {
		resp.Balances[i] = toBalanceDTO(b, policy.Name(b.LeaveTypeID))
		if !b.AsOf.IsZero() {
			resp.AsOf = b.AsOf.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAdjustments returns the audit trail of an employee.
// Query: leave_type, kind (comma separated), since (YYYY-MM-DD), limit.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.AdjustmentFilter{
		EmployeeID:  generic.EmployeeID(chi.URLParam(r, "id")),
		LeaveTypeID: generic.LeaveTypeID(q.Get("leave_type")),
	}
	if kinds := q.Get("kind"); kinds != "" {
		for _, k := range strings.Split(kinds, ",") {
			filter.Kinds = append(filter.Kinds, generic.AdjustmentKind(strings.TrimSpace(k)))
		}
	}
	if since := q.Get("since"); since != "" {
		tp, err := generic.ParseTimePoint(since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since parameter", err)
			return
		}
		filter.Since = tp.Time
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		filter.Limit = n
	}

	adjustments, err := h.Service.ListAdjustments(r.Context(), filter)
	if err != nil {
		writeServiceError(w, "Failed to list adjustments", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTOs(adjustments))
}

// Recalculate rebuilds taken and pending from the employee's requests.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalcRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	result, err := h.Service.RecalcEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")), req.ActorID)
	if err != nil {
		writeServiceError(w, "Failed to recalculate balances", err)
		return
	}

	resp := RecalcResponse{
		EmployeeID:   string(result.EmployeeID),
		Entitlements: make([]RecalcEntryDTO, len(result.Entitlements)),
	}
	for i, e := range result.Entitlements {
		resp.Entitlements[i] = RecalcEntryDTO{
			LeaveTypeID:     string(e.LeaveTypeID),
			PreviousTaken:   days(e.PreviousTaken),
			Taken:           days(e.Taken),
			PreviousPending: days(e.PreviousPending),
			Pending:         days(e.Pending),
			Remaining:       days(e.Remaining),
			Changed:         e.Changed,
			Overdrawn:       e.Overdrawn,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// AssignEntitlement sets the yearly entitlement of one leave type.
func (h *Handler) AssignEntitlement(w http.ResponseWriter, r *http.Request) {
	var req AssignEntitlementRequest
	if !decode(w, r, &req) {
		return
	}

	e, err := h.Service.AssignEntitlement(r.Context(), leave.AssignInput{
		EmployeeID:        generic.EmployeeID(req.EmployeeID),
		LeaveTypeID:       generic.LeaveTypeID(req.LeaveTypeID),
		YearlyEntitlement: req.YearlyEntitlement,
		ActorID:           req.ActorID,
		Reason:            req.Reason,
	})
	if err != nil {
		writeServiceError(w, "Failed to assign entitlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementDTO(*e, h.Service.Policy().Name(e.LeaveTypeID)))
}

// CreateAdjustment applies a manual add or deduct.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.CreateAdjustment(r.Context(), leave.AdjustmentInput{
		EmployeeID:    generic.EmployeeID(req.EmployeeID),
		LeaveTypeID:   generic.LeaveTypeID(req.LeaveTypeID),
		Type:          generic.AdjustmentType(req.Type),
		Amount:        req.Amount,
		Reason:        req.Reason,
		ActorID:       req.ActorID,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		writeServiceError(w, "Failed to create adjustment", err)
		return
	}

	writeJSON(w, http.StatusCreated, AdjustmentResponse{
		Adjustment:  toAdjustmentDTO(result.Adjustment),
		Entitlement: toEntitlementDTO(*result.Entitlement, h.Service.Policy().Name(result.Entitlement.LeaveTypeID)),
		Remaining:   days(result.Remaining),
	})
}

// =============================================================================
// ACCRUAL HANDLERS
// =============================================================================

// RunAccrual runs one accrual pass. Per-employee failures are reported in
// the body; the run itself still answers 200.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var req RunAccrualRequest
	if !decode(w, r, &req) {
		return
	}

	in := leave.AccrualInput{
		ReferenceDate: req.ReferenceDate,
		Method:        generic.AccrualMethod(req.Method),
		Rounding:      generic.Rounding(req.Rounding),
		Idempotent:    req.Idempotent,
		ActorID:       req.ActorID,
	}
	if in.Method == "" {
		in.Method = h.Accrual.Method
	}
	if in.Rounding == "" {
		in.Rounding = h.Accrual.Rounding
	}

	result, err := h.Service.RunAccrual(r.Context(), in)
	if err != nil {
		writeServiceError(w, "Failed to run accrual", err)
		return
	}

	writeJSON(w, http.StatusOK, AccrualResultDTO{
		Processed:         result.Processed,
		Created:           result.Created,
		TotalEntitlements: result.TotalEntitlements,
		Skipped:           result.Skipped,
		Duplicates:        result.Duplicates,
		TotalAccrued:      days(result.TotalAccrued),
		PeriodStart:       result.Period.Start.String(),
		PeriodEnd:         result.Period.End.String(),
		Failures:          toFailureDTOs(result.Failures),
	})
}

// =============================================================================
// CARRY-FORWARD HANDLERS
// =============================================================================

func (req CarryForwardRequest) input() leave.CarryForwardInput {
	in := leave.CarryForwardInput{
		ReferenceDate: req.ReferenceDate,
		ActorID:       req.ActorID,
	}
	if len(req.Rules) > 0 {
		in.Rules = make(map[generic.LeaveTypeID]generic.CarryForwardRule, len(req.Rules))
		for id, rule := range req.Rules {
			in.Rules[generic.LeaveTypeID(id)] = generic.CarryForwardRule{
				CanCarryForward: rule.CanCarryForward,
				Cap:             rule.Cap,
				ExpiryMonths:    rule.ExpiryMonths,
			}
		}
	}
	return in
}

// PreviewCarryForward computes the year-end migration without writing.
func (h *Handler) PreviewCarryForward(w http.ResponseWriter, r *http.Request) {
	var req CarryForwardRequest
	if !decode(w, r, &req) {
		return
	}

	preview, err := h.Service.PreviewCarryForward(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "Failed to preview carry-forward", err)
		return
	}

	var resp CarryForwardPreviewResponse
	resp.Details = make([]CarryForwardDetailDTO, len(preview.Details))
	for i, d := range preview.Details {
		resp.Details[i] = CarryForwardDetailDTO{
			EmployeeID:        string(d.EmployeeID),
			LeaveTypeID:       string(d.LeaveTypeID),
			LeaveTypeName:     d.LeaveTypeName,
			PreviousRemaining: days(d.PreviousRemaining),
			CappedAmount:      days(d.CappedAmount),
			CarriedForward:    days(d.CarriedForward),
			Expired:           days(d.Expired),
			ExpiryDate:        datePtr(d.ExpiryDate),
		}
	}
	resp.Summary.ByLeaveType = make(map[string]LeaveTypeCarryForwardDTO, len(preview.Summary.ByLeaveType))
	for id, s := range preview.Summary.ByLeaveType {
		resp.Summary.ByLeaveType[string(id)] = LeaveTypeCarryForwardDTO{
			Employees:      s.Employees,
			CarriedForward: days(s.CarriedForward),
			Expired:        days(s.Expired),
		}
	}
	resp.Summary.EmployeesProcessed = preview.Summary.EmployeesProcessed
	resp.Summary.TotalCarriedForward = days(preview.Summary.TotalCarriedForward)
	resp.Summary.TotalExpired = days(preview.Summary.TotalExpired)

	writeJSON(w, http.StatusOK, resp)
}

// CarryForward runs the year-end migration.
func (h *Handler) CarryForward(w http.ResponseWriter, r *http.Request) {
	var req CarryForwardRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.CarryForward(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "Failed to process carry-forward", err)
		return
	}

	writeJSON(w, http.StatusOK, CarryForwardResultDTO{
		Processed:           result.Processed,
		TotalCarriedForward: days(result.TotalCarriedForward),
		TotalExpired:        days(result.TotalExpired),
		Duplicates:          result.Duplicates,
		Failures:            toFailureDTOs(result.Failures),
	})
}

// OverrideCarryForward replaces the carry-forward of one entitlement.
func (h *Handler) OverrideCarryForward(w http.ResponseWriter, r *http.Request) {
	var req OverrideCarryForwardRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.OverrideCarryForward(r.Context(), leave.OverrideInput{
		EmployeeID:  generic.EmployeeID(req.EmployeeID),
		LeaveTypeID: generic.LeaveTypeID(req.LeaveTypeID),
		Days:        req.Days,
		ExpiryDate:  req.ExpiryDate,
		Reason:      req.Reason,
		ActorID:     req.ActorID,
	})
	if err != nil {
		writeServiceError(w, "Failed to override carry-forward", err)
		return
	}

	writeJSON(w, http.StatusOK, OverrideResultDTO{
		PreviousCarryForward: days(result.PreviousCarryForward),
		NewCarryForward:      days(result.NewCarryForward),
		NewRemaining:         days(result.NewRemaining),
		Entitlement:          toEntitlementDTO(*result.Entitlement, h.Service.Policy().Name(result.Entitlement.LeaveTypeID)),
	})
}

// CarryForwardReport lists every entitlement holding carry-forward.
func (h *Handler) CarryForwardReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.CarryForwardReport(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to build carry-forward report", err)
		return
	}

	var resp CarryForwardReportDTO
	resp.AsOf = rep.AsOf.String()
	resp.Summary.Entitlements = rep.Summary.Entitlements
	resp.Summary.Employees = rep.Summary.Employees
	resp.Summary.TotalCarryForward = days(rep.Summary.TotalCarryForward)
	resp.Summary.TotalRemaining = days(rep.Summary.TotalRemaining)
	resp.Rows = make([]CarryForwardReportRowDTO, len(rep.Rows))
	for i, row := range rep.Rows {
		resp.Rows[i] = CarryForwardReportRowDTO{
			EmployeeID:         string(row.EmployeeID),
			LeaveTypeID:        string(row.LeaveTypeID),
			LeaveTypeName:      row.LeaveTypeName,
			YearlyEntitlement:  days(row.YearlyEntitlement),
			CarryForward:       days(row.CarryForward),
			Taken:              days(row.Taken),
			Remaining:          days(row.Remaining),
			CarryForwardExpiry: datePtr(row.CarryForwardExpiry),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CarryForwardReportPDF renders the same report as a PDF download.
func (h *Handler) CarryForwardReportPDF(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.CarryForwardReport(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to build carry-forward report", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="carry-forward-`+rep.AsOf.String()+`.pdf"`)
	if err := report.CarryForwardPDF(w, rep); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.Error("carry-forward pdf failed", "error", err)
	}
}

// =============================================================================
// SUSPENSION HANDLERS
// =============================================================================

// PreviewSuspension computes the proration for a suspension range.
func (h *Handler) PreviewSuspension(w http.ResponseWriter, r *http.Request) {
	var req SuspensionPreviewRequest
	if !decode(w, r, &req) {
		return
	}

	preview, err := h.Service.PreviewSuspension(r.Context(), leave.SuspensionPreviewInput{
		From:              req.From,
		To:                req.To,
		YearlyEntitlement: req.YearlyEntitlement,
	})
	if err != nil {
		writeServiceError(w, "Failed to preview suspension", err)
		return
	}
	writeJSON(w, http.StatusOK, toSuspensionPreviewDTO(*preview))
}

// ApplySuspension records a suspension and optionally books its deduction.
func (h *Handler) ApplySuspension(w http.ResponseWriter, r *http.Request) {
	var req ApplySuspensionRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.ApplySuspension(r.Context(), leave.SuspensionInput{
		EmployeeID:    generic.EmployeeID(req.EmployeeID),
		LeaveTypeID:   generic.LeaveTypeID(req.LeaveTypeID),
		Type:          generic.SuspensionType(req.Type),
		From:          req.From,
		To:            req.To,
		Reason:        req.Reason,
		ActorID:       req.ActorID,
		Deduct:        req.Deduct,
		AllowNegative: req.AllowNegative,
	})
	if err != nil {
		writeServiceError(w, "Failed to apply suspension", err)
		return
	}

	sp := result.Suspension
	resp := SuspensionResultDTO{
		Suspension: SuspensionDTO{
			ID:           sp.ID,
			EmployeeID:   string(sp.EmployeeID),
			LeaveTypeID:  string(sp.LeaveTypeID),
			Type:         string(sp.Type),
			From:         sp.From.String(),
			To:           sp.To.String(),
			Reason:       sp.Reason,
			Settled:      sp.Settled,
			DeductedDays: days(sp.DeductedDays),
		},
		Preview: toSuspensionPreviewDTO(result.Preview),
	}
	if result.Adjustment != nil {
		adj := toAdjustmentDTO(*result.Adjustment)
		resp.Adjustment = &adj
	}
	if result.Entitlement != nil {
		ent := toEntitlementDTO(*result.Entitlement, h.Service.Policy().Name(result.Entitlement.LeaveTypeID))
		resp.Entitlement = &ent
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SaveRequest stores a leave request as the external request workflow would.
func (h *Handler) SaveRequest(w http.ResponseWriter, r *http.Request) {
	var req SaveRequestRequest
	if !decode(w, r, &req) {
		return
	}

	lr := generic.LeaveRequest{
		ID:           generic.RequestID(req.ID),
		EmployeeID:   generic.EmployeeID(req.EmployeeID),
		EmployeeName: req.EmployeeName,
		LeaveTypeID:  generic.LeaveTypeID(req.LeaveTypeID),
		From:         req.From,
		To:           req.To,
		DurationDays: req.DurationDays,
		Status:       generic.RequestStatus(req.Status),
		Reason:       req.Reason,
		CreatedAt:    time.Now().UTC(),
	}
	if req.CreatedAt != nil {
		lr.CreatedAt = req.CreatedAt.UTC()
	}
	if lr.Status == "" {
		lr.Status = generic.RequestPending
	}
	if lr.DurationDays.IsZero() {
		if p, ok := lr.Period(); ok {
			lr.DurationDays = decimal.NewFromInt(int64(p.WorkingDays()))
		}
	}
	if err := lr.Validate(); err != nil {
		writeServiceError(w, "Invalid leave request", err)
		return
	}

	if err := h.Store.SaveRequest(r.Context(), lr); err != nil {
		writeServiceError(w, "Failed to save leave request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(lr))
}

// FinalizeRequest approves or rejects a request and books the balance change.
func (h *Handler) FinalizeRequest(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequestRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.Service.FinalizeRequest(r.Context(), leave.FinalizeInput{
		RequestID:     generic.RequestID(chi.URLParam(r, "id")),
		ActorID:       req.ActorID,
		Decision:      leave.Decision(req.Decision),
		AllowNegative: req.AllowNegative,
		Reason:        req.Reason,
		IsOverride:    req.IsOverride,
	})
	if err != nil {
		writeServiceError(w, "Failed to finalize request", err)
		return
	}

	resp := FinalizeResponse{
		Request:        toRequestDTO(*result.Request),
		AlreadyApplied: result.AlreadyApplied,
	}
	if result.Entitlement != nil {
		ent := toEntitlementDTO(*result.Entitlement, h.Service.Policy().Name(result.Entitlement.LeaveTypeID))
		resp.Entitlement = &ent
	}
	if result.Adjustment != nil {
		adj := toAdjustmentDTO(*result.Adjustment)
		resp.Adjustment = &adj
	}
	writeJSON(w, http.StatusOK, resp)
}

// FlagRequest sets or clears the irregular-usage flag. Flagged defaults to true.
func (h *Handler) FlagRequest(w http.ResponseWriter, r *http.Request) {
	var req FlagRequestRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	flagged := true
	if req.Flagged != nil {
		flagged = *req.Flagged
	}

	lr, err := h.Service.FlagIrregular(r.Context(), generic.RequestID(chi.URLParam(r, "id")), flagged, req.Reason)
	if err != nil {
		writeServiceError(w, "Failed to flag request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*lr))
}

// =============================================================================
// PATTERN HANDLERS
// =============================================================================

// AnalyzePatterns scores leave histories for irregular usage. Only
// employees with at least one detected pattern are returned.
func (h *Handler) AnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	var req AnalyzePatternsRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	cfg := h.Patterns
	if req.ReferenceDate != nil {
		cfg.ReferenceDate = *req.ReferenceDate
	}
	if len(req.Holidays) > 0 {
		cfg.Holidays = generic.NewHolidaySet(req.Holidays...)
	}
	if req.ExcludedStatuses != nil {
		cfg.ExcludedStatuses = make([]generic.RequestStatus, len(req.ExcludedStatuses))
		for i, s := range req.ExcludedStatuses {
			cfg.ExcludedStatuses[i] = generic.RequestStatus(s)
		}
	}
	ids := make([]generic.EmployeeID, len(req.EmployeeIDs))
	for i, id := range req.EmployeeIDs {
		ids[i] = generic.EmployeeID(id)
	}

	results, err := h.Service.AnalyzeEmployees(r.Context(), ids, cfg)
	if err != nil {
		writeServiceError(w, "Failed to analyze leave patterns", err)
		return
	}

	dtos := make([]PatternResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toPatternResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}
