/*
Package leave is the leave entitlement and accrual ledger service.

PURPOSE:
  A single transport-independent service exposing every balance operation:

    Accrual:        RunAccrual
    Carry-forward:  PreviewCarryForward, CarryForward, OverrideCarryForward,
                    CarryForwardReport
    Suspension:     PreviewSuspension, ApplySuspension
    Ledger:         GetBalances, AssignEntitlement, CreateAdjustment,
                    RecalcEmployee, FinalizeRequest, FlagIrregular,
                    ListAdjustments
    Patterns:       AnalyzeEmployees

ARCHITECTURE:
  Service
    ├── generic.Ledger   serialized read-modify-write, audit stamping
    ├── generic.Store    entitlements, adjustments, requests, employees
    ├── Policy           leave types and carry-forward defaults
    └── Publisher        committed adjustments go out after each write

MISSING ENTITLEMENTS:
  A missing entitlement is not an error. The service creates it from the
  policy default (logged at info) and retries the operation once.

EXPIRY:
  Every read and every mutation first expires unused carry-forward that
  is past its expiry date and writes the reduced value back.

SEE ALSO:
  - ledger.go: Balance ledger operations
  - accrual.go, carryforward.go, suspension.go: Batch and policy operations
  - generic/ledger.go: Locking and adjustment stamping
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

const defaultPoolSize = 8

// Service is safe for concurrent use.
type Service struct {
	ledger    *generic.Ledger
	store     generic.Store
	policy    Policy
	logger    *slog.Logger
	publisher Publisher
	poolSize  int
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPoolSize bounds how many employees a batch run processes at once.
func WithPoolSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.poolSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store generic.Store, policy Policy, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("leave: store is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("leave: invalid policy: %w", err)
	}
	s := &Service{
		store:     store,
		policy:    policy,
		logger:    slog.Default(),
		publisher: nopPublisher{},
		poolSize:  defaultPoolSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = generic.NewLedger(store).WithClock(s.now)
	return s, nil
}

func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) today() generic.TimePoint {
	return generic.DateOf(s.now())
}

// =============================================================================
// ENTITLEMENT LIFECYCLE
// =============================================================================

// ensureEntitlement returns the stored entitlement, creating it from the
// policy default when it does not exist yet.
func (s *Service) ensureEntitlement(ctx context.Context, key generic.EntitlementKey) (*generic.Entitlement, bool, error) {
	existing, err := s.store.GetEntitlement(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, generic.ErrEntitlementNotFound) {
		return nil, false, err
	}

	lt, err := s.policy.LeaveType(key.LeaveTypeID)
	if err != nil {
		return nil, false, err
	}

	e := generic.Entitlement{
		EmployeeID:        key.EmployeeID,
		LeaveTypeID:       key.LeaveTypeID,
		PolicyYear:        s.today().Year(),
		YearlyEntitlement: lt.DefaultEntitlement,
	}
	var opening []generic.Adjustment
	if lt.DefaultEntitlement.IsPositive() {
		opening = append(opening, generic.NewAdjustment(key, generic.KindInitialization, lt.DefaultEntitlement,
			fmt.Sprintf("initialized with %s default of %s days", lt.Name, lt.DefaultEntitlement), "system"))
	}

	created, adjustments, err := s.ledger.Create(ctx, e, opening)
	if errors.Is(err, generic.ErrEntitlementExists) {
		existing, err := s.store.GetEntitlement(ctx, key)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("entitlement auto-initialized",
		"employee_id", key.EmployeeID,
		"leave_type", key.LeaveTypeID,
		"yearly_entitlement", lt.DefaultEntitlement.String(),
	)
	s.publish(ctx, adjustments)
	return created, true, nil
}

// mutate runs fn through the ledger, auto-initializing a missing
// entitlement and retrying once.
func (s *Service) mutate(ctx context.Context, key generic.EntitlementKey, fn generic.MutateFunc) (*generic.Entitlement, []generic.Adjustment, error) {
	updated, adjustments, err := s.ledger.Mutate(ctx, key, fn)
	if errors.Is(err, generic.ErrEntitlementNotFound) {
		if _, _, err := s.ensureEntitlement(ctx, key); err != nil {
			return nil, nil, err
		}
		updated, adjustments, err = s.ledger.Mutate(ctx, key, fn)
	}
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, adjustments)
	return updated, adjustments, nil
}

// expireInPlace applies carry-forward expiry to e and returns the audit entry for it.
func expireInPlace(e *generic.Entitlement, asOf generic.TimePoint) []generic.Adjustment {
	if !e.CarryForwardExpired(asOf) {
		return nil
	}
	expiry := *e.CarryForwardExpiry
	expired := e.ExpireCarryForward(asOf)
	adj := generic.NewAdjustment(e.Key(), generic.KindCarryForwardExpired, expired.Neg(),
		fmt.Sprintf("unused carry-forward expired on %s", expiry), "system")
	adj.Metadata = map[string]string{"expiry_date": expiry.String()}
	return []generic.Adjustment{adj}
}

// refresh writes back lazy carry-forward expiry for a record that was read.
func (s *Service) refresh(ctx context.Context, e *generic.Entitlement) (*generic.Entitlement, error) {
	asOf := s.today()
	if !e.CarryForwardExpired(asOf) {
		return e, nil
	}
	updated, adjustments, err := s.ledger.Mutate(ctx, e.Key(), func(current *generic.Entitlement) ([]generic.Adjustment, error) {
		return expireInPlace(current, asOf), nil
	})
	if err != nil {
		return nil, fmt.Errorf("expire carry-forward for %s: %w", e.Key(), err)
	}
	for _, adj := range adjustments {
		s.logger.Info("carry-forward expired",
			"employee_id", adj.EmployeeID,
			"leave_type", adj.LeaveTypeID,
			"expired_days", adj.Amount.String(),
		)
	}
	s.publish(ctx, adjustments)
	return updated, nil
}

// =============================================================================
// BALANCE READS
// =============================================================================

// GetBalances returns every entitlement of the employee, creating the
// auto-initialized leave types on first access.
func (s *Service) GetBalances(ctx context.Context, employeeID generic.EmployeeID) ([]generic.Balance, error) {
	if employeeID == "" {
		return nil, generic.Invalid("employee_id", "is required")
	}
	for _, lt := range s.policy.AutoInitialized() {
		key := generic.EntitlementKey{EmployeeID: employeeID, LeaveTypeID: lt.ID}
		if _, _, err := s.ensureEntitlement(ctx, key); err != nil {
			return nil, err
		}
	}

	entitlements, err := s.store.ListEntitlements(ctx, generic.EntitlementFilter{EmployeeID: employeeID})
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}

	asOf := s.today()
	balances := make([]generic.Balance, 0, len(entitlements))
	for i := range entitlements {
		e, err := s.refresh(ctx, &entitlements[i])
		if err != nil {
			return nil, err
		}
		balances = append(balances, generic.NewBalance(*e, asOf))
	}
	return balances, nil
}

func (s *Service) GetBalance(ctx context.Context, key generic.EntitlementKey) (generic.Balance, error) {
	if key.EmployeeID == "" || key.LeaveTypeID == "" {
		return generic.Balance{}, generic.Invalid("key", "employee_id and leave_type_id are required")
	}
	e, _, err := s.ensureEntitlement(ctx, key)
	if err != nil {
		return generic.Balance{}, err
	}
	e, err = s.refresh(ctx, e)
	if err != nil {
		return generic.Balance{}, err
	}
	return generic.NewBalance(*e, s.today()), nil
}

func (s *Service) ListAdjustments(ctx context.Context, filter generic.AdjustmentFilter) ([]generic.Adjustment, error) {
	return s.store.ListAdjustments(ctx, filter)
}

// =============================================================================
// HELPERS
// =============================================================================

// checkOverdraft fails when e is below zero for a leave type that does not
// allow it and no override was given. requested is what the operation took.
func checkOverdraft(lt LeaveType, e *generic.Entitlement, requested decimal.Decimal, allowNegative bool, asOf generic.TimePoint) error {
	if lt.AllowOverdraft || allowNegative {
		return nil
	}
	remaining := e.RemainingAsOf(asOf)
	if !remaining.IsNegative() {
		return nil
	}
	return &generic.InsufficientBalanceError{
		EmployeeID:  e.EmployeeID,
		LeaveTypeID: e.LeaveTypeID,
		Available:   remaining.Add(requested),
		Requested:   requested,
		Shortfall:   remaining.Neg(),
	}
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return generic.Invalid(field, "is required")
	}
	return nil
}
