// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	entitlements map[generic.EntitlementKey]generic.Entitlement
	adjustments  []generic.Adjustment
	idempotency  map[string]bool
	requests     map[generic.RequestID]generic.LeaveRequest
	employees    map[generic.EmployeeID]generic.Employee
	suspensions  []generic.Suspension
}

var _ generic.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		entitlements: make(map[generic.EntitlementKey]generic.Entitlement),
		idempotency:  make(map[string]bool),
		requests:     make(map[generic.RequestID]generic.LeaveRequest),
		employees:    make(map[generic.EmployeeID]generic.Employee),
	}
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (m *Memory) GetEntitlement(_ context.Context, key generic.EntitlementKey) (*generic.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entitlements[key]
	if !ok {
		return nil, generic.ErrEntitlementNotFound
	}
	out := cloneEntitlement(e)
	return &out, nil
}

func (m *Memory) CreateEntitlement(_ context.Context, e generic.Entitlement, adjustments []generic.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entitlements[e.Key()]; ok {
		return generic.ErrEntitlementExists
	}
	if err := m.checkKeysLocked(adjustments); err != nil {
		return err
	}
	m.entitlements[e.Key()] = cloneEntitlement(e)
	m.appendLocked(adjustments)
	return nil
}

// UpdateEntitlement runs fn on a copy under the write lock, so a failed
// mutation leaves the stored record untouched.
func (m *Memory) UpdateEntitlement(_ context.Context, key generic.EntitlementKey, fn generic.MutateFunc) (*generic.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.entitlements[key]
	if !ok {
		return nil, generic.ErrEntitlementNotFound
	}

	working := cloneEntitlement(current)
	adjustments, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if err := m.checkKeysLocked(adjustments); err != nil {
		return nil, err
	}

	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()
	m.entitlements[key] = working
	m.appendLocked(adjustments)

	out := cloneEntitlement(working)
	return &out, nil
}

func (m *Memory) ListEntitlements(_ context.Context, filter generic.EntitlementFilter) ([]generic.Entitlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Entitlement
	for _, e := range m.entitlements {
		if filter.Matches(e) {
			result = append(result, cloneEntitlement(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EmployeeID != result[j].EmployeeID {
			return result[i].EmployeeID < result[j].EmployeeID
		}
		return result[i].LeaveTypeID < result[j].LeaveTypeID
	})
	return result, nil
}

// =============================================================================
// ADJUSTMENTS - Append-only
// =============================================================================

func (m *Memory) checkKeysLocked(adjustments []generic.Adjustment) error {
	seen := make(map[string]bool)
	for _, adj := range adjustments {
		if adj.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[adj.IdempotencyKey] || seen[adj.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[adj.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) appendLocked(adjustments []generic.Adjustment) {
	for _, adj := range adjustments {
		m.adjustments = append(m.adjustments, cloneAdjustment(adj))
		if adj.IdempotencyKey != "" {
			m.idempotency[adj.IdempotencyKey] = true
		}
	}
}

// ListAdjustments returns matches newest first.
func (m *Memory) ListAdjustments(_ context.Context, filter generic.AdjustmentFilter) ([]generic.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Adjustment
	for i := len(m.adjustments) - 1; i >= 0; i-- {
		if !filter.Matches(m.adjustments[i]) {
			continue
		}
		result = append(result, cloneAdjustment(m.adjustments[i]))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) AdjustmentExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) GetRequest(_ context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, generic.ErrRequestNotFound
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.LeaveRequest
	for _, r := range m.requests {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].From.Equal(result[j].From) {
			return result[i].From.Before(result[j].From)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveRequest(_ context.Context, r generic.LeaveRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = time.Now().UTC()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) SetRequestStatus(_ context.Context, id generic.RequestID, status generic.RequestStatus, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return generic.ErrRequestNotFound
	}
	r.Status = status
	r.DecidedBy = actorID
	r.UpdatedAt = time.Now().UTC()
	m.requests[id] = r
	return nil
}

func (m *Memory) FlagIrregular(_ context.Context, id generic.RequestID, flagged bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return generic.ErrRequestNotFound
	}
	r.FlaggedIrregular = flagged
	r.IrregularReason = reason
	if !flagged {
		r.IrregularReason = ""
	}
	r.UpdatedAt = time.Now().UTC()
	m.requests[id] = r
	return nil
}

// =============================================================================
// EMPLOYEES AND SUSPENSIONS
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, emp generic.Employee) error {
	if emp.ID == "" {
		return generic.Invalid("id", "is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	m.employees[emp.ID] = emp
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, generic.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]generic.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Employee, 0, len(m.employees))
	for _, emp := range m.employees {
		result = append(result, emp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) SaveSuspension(_ context.Context, s generic.Suspension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspensions = append(m.suspensions, s)
	return nil
}

func (m *Memory) ListSuspensions(_ context.Context, filter generic.SuspensionFilter) ([]generic.Suspension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Suspension
	for _, s := range m.suspensions {
		if filter.Matches(s) {
			result = append(result, s)
		}
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneEntitlement(e generic.Entitlement) generic.Entitlement {
	if e.CarryForwardExpiry != nil {
		expiry := *e.CarryForwardExpiry
		e.CarryForwardExpiry = &expiry
	}
	return e
}

func cloneAdjustment(a generic.Adjustment) generic.Adjustment {
	if a.Metadata != nil {
		md := make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	return a
}
