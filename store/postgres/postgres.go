/*
Package postgres provides a PostgreSQL implementation of the ledger store.

PURPOSE:
  Implements generic.Store on PostgreSQL through pgx. Use it when more than
  one ledger process shares the same data.

CONCURRENCY:
  UpdateEntitlement runs in a transaction that locks the entitlement row
  with SELECT ... FOR UPDATE, so concurrent writers on the same record
  queue up in the database. The write also checks the version column.

IDEMPOTENCY:
  adjustments.idempotency_key is UNIQUE. A violation rolls back the whole
  update and surfaces as generic.ErrDuplicateIdempotencyKey.

DAY AMOUNTS:
  Stored as NUMERIC and moved as decimal strings, so no float ever touches
  a balance.

SCHEMA:
  Embedded SQL migrations applied with golang-migrate (see migrations.go).
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// Querier supports database operations for both pool and transactions
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a Querier that can start transactions.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
	_ Pool    = (*pgxpool.Pool)(nil)
)

type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Connect migrates the schema and opens a connection pool.
func Connect(ctx context.Context, logger *slog.Logger, cfg Config) (*pgxpool.Pool, error) {
	if err := RunMigrations(cfg.URL); err != nil {
		return nil, err
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	logger.Info("Connected to PostgreSQL")
	return pool, nil
}

// Store implements generic.Store.
type Store struct {
	pool   Pool
	logger *slog.Logger
}

var _ generic.Store = (*Store)(nil)

func New(pool Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// executeTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) executeTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

const selectEntitlement = `
		SELECT id, employee_id, leave_type_id, policy_year, yearly_entitlement::text, carry_forward::text,
		       COALESCE(to_char(carry_forward_expiry, 'YYYY-MM-DD'), ''), accrued::text, taken::text,
		       pending::text, version, created_at, updated_at
		FROM entitlements`

const insertEntitlement = `
		INSERT INTO entitlements (id, employee_id, leave_type_id, policy_year, yearly_entitlement, carry_forward,
		                          carry_forward_expiry, accrued, taken, pending, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const updateEntitlement = `
		UPDATE entitlements
		SET policy_year = $1, yearly_entitlement = $2, carry_forward = $3, carry_forward_expiry = $4,
		    accrued = $5, taken = $6, pending = $7, version = $8, updated_at = $9
		WHERE id = $10 AND version = $11`

const insertAdjustment = `
		INSERT INTO adjustments (id, employee_id, leave_type_id, adjustment_type, kind, amount, reason, actor_id,
		                         request_id, override, idempotency_key, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (s *Store) GetEntitlement(ctx context.Context, key generic.EntitlementKey) (*generic.Entitlement, error) {
	return s.getEntitlement(ctx, s.pool, key, false)
}

func (s *Store) getEntitlement(ctx context.Context, q Querier, key generic.EntitlementKey, forUpdate bool) (*generic.Entitlement, error) {
	query := selectEntitlement + `
		WHERE employee_id = $1 AND leave_type_id = $2`
	if forUpdate {
		query += `
		FOR UPDATE`
	}
	e, err := scanEntitlement(q.QueryRow(ctx, query, string(key.EmployeeID), string(key.LeaveTypeID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, generic.ErrEntitlementNotFound
		}
		s.logger.Error("Failed to get entitlement", "key", key.String(), "error", err)
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	return e, nil
}

func (s *Store) CreateEntitlement(ctx context.Context, e generic.Entitlement, adjustments []generic.Adjustment) error {
	return s.executeTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertEntitlement,
			e.ID, string(e.EmployeeID), string(e.LeaveTypeID), e.PolicyYear,
			e.YearlyEntitlement.String(), e.CarryForward.String(), nullDate(e.CarryForwardExpiry),
			e.Accrued.String(), e.Taken.String(), e.Pending.String(), e.Version,
			e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "entitlements_employee_leave_type_key") {
				return generic.ErrEntitlementExists
			}
			return fmt.Errorf("failed to create entitlement: %w", err)
		}
		return insertAdjustments(ctx, tx, adjustments)
	})
}

// UpdateEntitlement locks the row, applies fn and writes the record and its
// adjustments in one transaction.
func (s *Store) UpdateEntitlement(ctx context.Context, key generic.EntitlementKey, fn generic.MutateFunc) (*generic.Entitlement, error) {
	var updated generic.Entitlement
	err := s.executeTx(ctx, func(tx pgx.Tx) error {
		current, err := s.getEntitlement(ctx, tx, key, true)
		if err != nil {
			return err
		}
		updated = *current
		adjustments, err := fn(&updated)
		if err != nil {
			return err
		}

		updated.Version = current.Version + 1
		updated.UpdatedAt = time.Now().UTC()
		tag, err := tx.Exec(ctx, updateEntitlement,
			updated.PolicyYear, updated.YearlyEntitlement.String(), updated.CarryForward.String(),
			nullDate(updated.CarryForwardExpiry), updated.Accrued.String(), updated.Taken.String(),
			updated.Pending.String(), updated.Version, updated.UpdatedAt,
			current.ID, current.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update entitlement: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return generic.ErrConcurrentModification
		}
		return insertAdjustments(ctx, tx, adjustments)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListEntitlements(ctx context.Context, filter generic.EntitlementFilter) ([]generic.Entitlement, error) {
	query := selectEntitlement + `
		WHERE ($1::text = '' OR employee_id = $1) AND ($2::text = '' OR leave_type_id = $2)
		ORDER BY employee_id, leave_type_id`

	rows, err := s.pool.Query(ctx, query, string(filter.EmployeeID), string(filter.LeaveTypeID))
	if err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	defer rows.Close()

	var result []generic.Entitlement
	for rows.Next() {
		e, err := scanEntitlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func scanEntitlement(row pgx.Row) (*generic.Entitlement, error) {
	var (
		e                                             generic.Entitlement
		employeeID, leaveTypeID, expiry               string
		yearly, carryForward, accrued, taken, pending string
	)
	if err := row.Scan(&e.ID, &employeeID, &leaveTypeID, &e.PolicyYear, &yearly, &carryForward,
		&expiry, &accrued, &taken, &pending, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.EmployeeID = generic.EmployeeID(employeeID)
	e.LeaveTypeID = generic.LeaveTypeID(leaveTypeID)
	e.YearlyEntitlement = parseDecimal(yearly)
	e.CarryForward = parseDecimal(carryForward)
	e.Accrued = parseDecimal(accrued)
	e.Taken = parseDecimal(taken)
	e.Pending = parseDecimal(pending)
	e.CarryForwardExpiry = parseDate(expiry)
	return &e, nil
}

// =============================================================================
// ADJUSTMENTS - Append-only
// =============================================================================

func insertAdjustments(ctx context.Context, q Querier, adjustments []generic.Adjustment) error {
	for _, adj := range adjustments {
		var metadata []byte
		if len(adj.Metadata) > 0 {
			var err error
			if metadata, err = json.Marshal(adj.Metadata); err != nil {
				return fmt.Errorf("failed to encode adjustment metadata: %w", err)
			}
		}
		_, err := q.Exec(ctx, insertAdjustment,
			string(adj.ID), string(adj.EmployeeID), string(adj.LeaveTypeID), string(adj.Type), string(adj.Kind),
			adj.Amount.String(), adj.Reason, adj.ActorID, nullString(string(adj.RequestID)), adj.Override,
			nullString(adj.IdempotencyKey), metadata, adj.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "adjustments_idempotency_key_key") {
				return generic.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("failed to insert adjustment: %w", err)
		}
	}
	return nil
}

// ListAdjustments returns matches newest first.
func (s *Store) ListAdjustments(ctx context.Context, filter generic.AdjustmentFilter) ([]generic.Adjustment, error) {
	kinds := make([]string, 0, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds = append(kinds, string(k))
	}
	query := `
		SELECT id, employee_id, leave_type_id, adjustment_type, kind, amount::text, reason, actor_id,
		       COALESCE(request_id, ''), override, COALESCE(idempotency_key, ''), metadata, created_at
		FROM adjustments
		WHERE ($1::text = '' OR employee_id = $1)
		  AND ($2::text = '' OR leave_type_id = $2)
		  AND (cardinality($3::text[]) = 0 OR kind = ANY($3))
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		ORDER BY seq DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(`
		LIMIT %d`, filter.Limit)
	}
	var since *time.Time
	if !filter.Since.IsZero() {
		since = &filter.Since
	}

	rows, err := s.pool.Query(ctx, query, string(filter.EmployeeID), string(filter.LeaveTypeID), kinds, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	defer rows.Close()

	var result []generic.Adjustment
	for rows.Next() {
		var (
			adj                                                generic.Adjustment
			id, employeeID, leaveTypeID, adjType, kind, amount string
			requestID                                          string
			metadata                                           []byte
		)
		if err := rows.Scan(&id, &employeeID, &leaveTypeID, &adjType, &kind, &amount, &adj.Reason, &adj.ActorID,
			&requestID, &adj.Override, &adj.IdempotencyKey, &metadata, &adj.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adj.ID = generic.AdjustmentID(id)
		adj.EmployeeID = generic.EmployeeID(employeeID)
		adj.LeaveTypeID = generic.LeaveTypeID(leaveTypeID)
		adj.Type = generic.AdjustmentType(adjType)
		adj.Kind = generic.AdjustmentKind(kind)
		adj.Amount = parseDecimal(amount)
		adj.RequestID = generic.RequestID(requestID)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &adj.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of adjustment %s: %w", id, err)
			}
		}
		result = append(result, adj)
	}
	return result, rows.Err()
}

func (s *Store) AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM adjustments WHERE idempotency_key = $1)`, idempotencyKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return exists, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

const selectRequest = `
		SELECT id, employee_id, employee_name, leave_type_id, to_char(from_date, 'YYYY-MM-DD'),
		       to_char(to_date, 'YYYY-MM-DD'), duration_days::text, status, reason, flagged_irregular,
		       irregular_reason, decided_by, created_at, updated_at
		FROM leave_requests`

func (s *Store) SaveRequest(ctx context.Context, r generic.LeaveRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leave_requests (id, employee_id, employee_name, leave_type_id, from_date, to_date, duration_days,
		                            status, reason, flagged_irregular, irregular_reason, decided_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			employee_id = EXCLUDED.employee_id, employee_name = EXCLUDED.employee_name,
			leave_type_id = EXCLUDED.leave_type_id, from_date = EXCLUDED.from_date, to_date = EXCLUDED.to_date,
			duration_days = EXCLUDED.duration_days, status = EXCLUDED.status, reason = EXCLUDED.reason,
			flagged_irregular = EXCLUDED.flagged_irregular, irregular_reason = EXCLUDED.irregular_reason,
			decided_by = EXCLUDED.decided_by, updated_at = EXCLUDED.updated_at`,
		string(r.ID), string(r.EmployeeID), r.EmployeeName, string(r.LeaveTypeID), r.From.String(), r.To.String(),
		r.DurationDays.String(), string(r.Status), r.Reason, r.FlaggedIrregular, r.IrregularReason, r.DecidedBy,
		r.CreatedAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, selectRequest+`
		WHERE id = $1`, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, generic.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	employeeIDs := make([]string, 0, len(filter.EmployeeIDs))
	for _, id := range filter.EmployeeIDs {
		employeeIDs = append(employeeIDs, string(id))
	}
	statuses := make([]string, 0, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses = append(statuses, string(st))
	}

	rows, err := s.pool.Query(ctx, selectRequest+`
		WHERE (cardinality($1::text[]) = 0 OR employee_id = ANY($1))
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2))
		  AND ($3::date IS NULL OR from_date >= $3)
		  AND ($4::date IS NULL OR from_date <= $4)
		ORDER BY from_date, id`, employeeIDs, statuses, nullDate(&filter.From), nullDate(&filter.To))
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var result []generic.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func scanRequest(row pgx.Row) (*generic.LeaveRequest, error) {
	var (
		r                                   generic.LeaveRequest
		id, employeeID, leaveTypeID, status string
		from, to, duration                  string
	)
	if err := row.Scan(&id, &employeeID, &r.EmployeeName, &leaveTypeID, &from, &to, &duration, &status,
		&r.Reason, &r.FlaggedIrregular, &r.IrregularReason, &r.DecidedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = generic.RequestID(id)
	r.EmployeeID = generic.EmployeeID(employeeID)
	r.LeaveTypeID = generic.LeaveTypeID(leaveTypeID)
	r.Status = generic.RequestStatus(status)
	r.From, _ = generic.ParseTimePoint(from)
	r.To, _ = generic.ParseTimePoint(to)
	r.DurationDays = parseDecimal(duration)
	return &r, nil
}

func (s *Store) SetRequestStatus(ctx context.Context, id generic.RequestID, status generic.RequestStatus, actorID string) error {
	return s.updateRequest(ctx, `
		UPDATE leave_requests SET status = $1, decided_by = $2, updated_at = $3 WHERE id = $4`,
		string(status), actorID, time.Now().UTC(), string(id))
}

func (s *Store) FlagIrregular(ctx context.Context, id generic.RequestID, flagged bool, reason string) error {
	if !flagged {
		reason = ""
	}
	return s.updateRequest(ctx, `
		UPDATE leave_requests SET flagged_irregular = $1, irregular_reason = $2, updated_at = $3 WHERE id = $4`,
		flagged, reason, time.Now().UTC(), string(id))
}

func (s *Store) updateRequest(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return generic.ErrRequestNotFound
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, emp generic.Employee) error {
	if emp.ID == "" {
		return generic.Invalid("id", "is required")
	}
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO employees (id, name, department, hire_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, department = EXCLUDED.department,
			hire_date = EXCLUDED.hire_date`,
		string(emp.ID), emp.Name, emp.Department, nullDate(&emp.HireDate), emp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

const selectEmployee = `
		SELECT id, name, department, COALESCE(to_char(hire_date, 'YYYY-MM-DD'), ''), created_at
		FROM employees`

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	emp, err := scanEmployee(s.pool.QueryRow(ctx, selectEmployee+`
		WHERE id = $1`, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, generic.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	rows, err := s.pool.Query(ctx, selectEmployee+`
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var result []generic.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		result = append(result, *emp)
	}
	return result, rows.Err()
}

func scanEmployee(row pgx.Row) (*generic.Employee, error) {
	var (
		emp          generic.Employee
		id, hireDate string
	)
	if err := row.Scan(&id, &emp.Name, &emp.Department, &hireDate, &emp.CreatedAt); err != nil {
		return nil, err
	}
	emp.ID = generic.EmployeeID(id)
	if hd := parseDate(hireDate); hd != nil {
		emp.HireDate = *hd
	}
	return &emp, nil
}

// =============================================================================
// SUSPENSIONS
// =============================================================================

func (s *Store) SaveSuspension(ctx context.Context, sp generic.Suspension) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO suspensions (id, employee_id, leave_type_id, suspension_type, from_date, to_date, reason,
		                         actor_id, settled, deducted_days, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sp.ID, string(sp.EmployeeID), string(sp.LeaveTypeID), string(sp.Type), sp.From.String(), sp.To.String(),
		sp.Reason, sp.ActorID, sp.Settled, sp.DeductedDays.String(), sp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save suspension: %w", err)
	}
	return nil
}

func (s *Store) ListSuspensions(ctx context.Context, filter generic.SuspensionFilter) ([]generic.Suspension, error) {
	var overlapStart, overlapEnd any
	if filter.Overlaps != nil {
		overlapStart, overlapEnd = filter.Overlaps.Start.String(), filter.Overlaps.End.String()
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, employee_id, leave_type_id, suspension_type, to_char(from_date, 'YYYY-MM-DD'),
		       to_char(to_date, 'YYYY-MM-DD'), reason, actor_id, settled, deducted_days::text, created_at
		FROM suspensions
		WHERE ($1::text = '' OR employee_id = $1)
		  AND (NOT $2::boolean OR settled = FALSE)
		  AND ($3::date IS NULL OR (from_date <= $4::date AND to_date >= $3::date))
		ORDER BY from_date, id`,
		string(filter.EmployeeID), filter.Unsettled, overlapStart, overlapEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspensions: %w", err)
	}
	defer rows.Close()

	var result []generic.Suspension
	for rows.Next() {
		var (
			sp                                generic.Suspension
			employeeID, leaveTypeID, suspType string
			from, to, deducted                string
		)
		if err := rows.Scan(&sp.ID, &employeeID, &leaveTypeID, &suspType, &from, &to, &sp.Reason, &sp.ActorID,
			&sp.Settled, &deducted, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suspension: %w", err)
		}
		sp.EmployeeID = generic.EmployeeID(employeeID)
		sp.LeaveTypeID = generic.LeaveTypeID(leaveTypeID)
		sp.Type = generic.SuspensionType(suspType)
		sp.From, _ = generic.ParseTimePoint(from)
		sp.To, _ = generic.ParseTimePoint(to)
		sp.DeductedDays = parseDecimal(deducted)
		result = append(result, sp)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(tp *generic.TimePoint) any {
	if tp == nil || tp.IsZero() {
		return nil
	}
	return tp.String()
}

func parseDate(s string) *generic.TimePoint {
	if s == "" {
		return nil
	}
	tp, err := generic.ParseTimePoint(s)
	if err != nil {
		return nil
	}
	return &tp
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
