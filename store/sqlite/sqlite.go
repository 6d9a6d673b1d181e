/*
Package sqlite provides a SQLite-backed implementation of the ledger store.

PURPOSE:
  Implements generic.Store on a single SQLite file. This is the default
  driver for a single-node deployment and for local development.

KEY TABLES:
  entitlements:  One live balance row per (employee, leave type)
  adjustments:   Append-only audit log, unique idempotency keys
  requests:      Leave requests owned by the request workflow
  employees:     Employee directory
  suspensions:   Recorded unpaid / long-absence periods

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on the adjustments table
  - No DELETE statements on any table
  - Corrections go through new adjustments

CONCURRENCY:
  Uses sync.RWMutex for thread-safety: UpdateEntitlement holds the write
  lock for the whole read-modify-write transaction. The version column is
  also checked on write, so a second process sharing the file gets
  ErrConcurrentModification instead of a lost update.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc, err := leave.NewService(store, leave.DefaultPolicy())

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/postgres: Multi-node implementation with row locks
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
)

// Store implements generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entitlements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		policy_year INTEGER NOT NULL,
		yearly_entitlement TEXT NOT NULL,
		carry_forward TEXT NOT NULL,
		carry_forward_expiry TEXT,
		accrued TEXT NOT NULL,
		taken TEXT NOT NULL,
		pending TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, leave_type_id)
	);

	-- Adjustments (append-only audit log)
	CREATE TABLE IF NOT EXISTS adjustments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		adjustment_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		request_id TEXT,
		override BOOLEAN NOT NULL DEFAULT FALSE,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_adjustments_employee_type
		ON adjustments(employee_id, leave_type_id);
	CREATE INDEX IF NOT EXISTS idx_adjustments_kind
		ON adjustments(kind);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		leave_type_id TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		duration_days TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		flagged_irregular BOOLEAN NOT NULL DEFAULT FALSE,
		irregular_reason TEXT,
		decided_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department TEXT,
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS suspensions (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT,
		suspension_type TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		reason TEXT,
		actor_id TEXT,
		settled BOOLEAN NOT NULL DEFAULT FALSE,
		deducted_days TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_suspensions_employee
		ON suspensions(employee_id, from_date, to_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

const entitlementColumns = `id, employee_id, leave_type_id, policy_year, yearly_entitlement,
	carry_forward, carry_forward_expiry, accrued, taken, pending, version, created_at, updated_at`

func (s *Store) GetEntitlement(ctx context.Context, key generic.EntitlementKey) (*generic.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntitlement(ctx, s.db, key)
}

func (s *Store) getEntitlement(ctx context.Context, db queryer, key generic.EntitlementKey) (*generic.Entitlement, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE employee_id = ? AND leave_type_id = ?`,
		key.EmployeeID, key.LeaveTypeID)
	e, err := scanEntitlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement %s: %w", key, err)
	}
	return e, nil
}

func (s *Store) CreateEntitlement(ctx context.Context, e generic.Entitlement, adjustments []generic.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkBatchKeys(adjustments); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entitlements (`+entitlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EmployeeID, e.LeaveTypeID, e.PolicyYear,
		e.YearlyEntitlement.String(), e.CarryForward.String(), nullDate(e.CarryForwardExpiry),
		e.Accrued.String(), e.Taken.String(), e.Pending.String(), e.Version,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrEntitlementExists
		}
		return fmt.Errorf("failed to insert entitlement: %w", err)
	}
	if err := appendAdjustments(ctx, tx, adjustments); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateEntitlement runs fn inside a transaction under the write lock.
func (s *Store) UpdateEntitlement(ctx context.Context, key generic.EntitlementKey, fn generic.MutateFunc) (*generic.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := s.getEntitlement(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	working := *current
	adjustments, err := fn(&working)
	if err != nil {
		return nil, err
	}
	if err := checkBatchKeys(adjustments); err != nil {
		return nil, err
	}

	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE entitlements SET
			policy_year = ?, yearly_entitlement = ?, carry_forward = ?, carry_forward_expiry = ?,
			accrued = ?, taken = ?, pending = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		working.PolicyYear, working.YearlyEntitlement.String(), working.CarryForward.String(),
		nullDate(working.CarryForwardExpiry), working.Accrued.String(), working.Taken.String(),
		working.Pending.String(), working.Version, formatTime(working.UpdatedAt),
		current.ID, current.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update entitlement %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, generic.ErrConcurrentModification
	}
	if err := appendAdjustments(ctx, tx, adjustments); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entitlement %s: %w", key, err)
	}
	return &working, nil
}

func (s *Store) ListEntitlements(ctx context.Context, filter generic.EntitlementFilter) ([]generic.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + entitlementColumns + ` FROM entitlements WHERE 1=1`
	var args []any
	if filter.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, filter.EmployeeID)
	}
	if filter.LeaveTypeID != "" {
		query += ` AND leave_type_id = ?`
		args = append(args, filter.LeaveTypeID)
	}
	query += ` ORDER BY employee_id, leave_type_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanEntitlement(row scanner) (*generic.Entitlement, error) {
	var (
		e                                             generic.Entitlement
		yearly, carryForward, accrued, taken, pending string
		expiry                                        sql.NullString
		createdAt, updatedAt                          string
	)
	if err := row.Scan(&e.ID, &e.EmployeeID, &e.LeaveTypeID, &e.PolicyYear, &yearly,
		&carryForward, &expiry, &accrued, &taken, &pending, &e.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.YearlyEntitlement = parseDecimal(yearly)
	e.CarryForward = parseDecimal(carryForward)
	e.Accrued = parseDecimal(accrued)
	e.Taken = parseDecimal(taken)
	e.Pending = parseDecimal(pending)
	e.CarryForwardExpiry = parseNullDate(expiry)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// =============================================================================
// ADJUSTMENTS - Append-only
// =============================================================================

func appendAdjustments(ctx context.Context, db execer, adjustments []generic.Adjustment) error {
	for _, adj := range adjustments {
		metadataJSON, err := json.Marshal(adj.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode adjustment metadata: %w", err)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO adjustments
			(id, employee_id, leave_type_id, adjustment_type, kind, amount, reason, actor_id,
			 request_id, override, idempotency_key, metadata_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			adj.ID, adj.EmployeeID, adj.LeaveTypeID, adj.Type, adj.Kind, adj.Amount.String(),
			adj.Reason, adj.ActorID, nullString(string(adj.RequestID)), adj.Override,
			nullString(adj.IdempotencyKey), string(metadataJSON), formatTime(adj.CreatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) && strings.Contains(err.Error(), "idempotency_key") {
				return generic.ErrDuplicateIdempotencyKey
			}
			return fmt.Errorf("failed to append adjustment: %w", err)
		}
	}
	return nil
}

// ListAdjustments returns matches newest first.
func (s *Store) ListAdjustments(ctx context.Context, filter generic.AdjustmentFilter) ([]generic.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, leave_type_id, adjustment_type, kind, amount, reason, actor_id,
		       request_id, override, idempotency_key, metadata_json, created_at
		FROM adjustments WHERE 1=1`
	var args []any
	if filter.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, filter.EmployeeID)
	}
	if filter.LeaveTypeID != "" {
		query += ` AND leave_type_id = ?`
		args = append(args, filter.LeaveTypeID)
	}
	if len(filter.Kinds) > 0 {
		query += ` AND kind IN (?` + strings.Repeat(`, ?`, len(filter.Kinds)-1) + `)`
		for _, k := range filter.Kinds {
			args = append(args, k)
		}
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	query += ` ORDER BY seq DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var result []generic.Adjustment
	for rows.Next() {
		var (
			adj                      generic.Adjustment
			amount, createdAt        string
			requestID, key, metadata sql.NullString
		)
		if err := rows.Scan(&adj.ID, &adj.EmployeeID, &adj.LeaveTypeID, &adj.Type, &adj.Kind, &amount,
			&adj.Reason, &adj.ActorID, &requestID, &adj.Override, &key, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		adj.Amount = parseDecimal(amount)
		adj.RequestID = generic.RequestID(requestID.String)
		adj.IdempotencyKey = key.String
		adj.CreatedAt = parseTime(createdAt)
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &adj.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of adjustment %s: %w", adj.ID, err)
			}
		}
		result = append(result, adj)
	}
	return result, rows.Err()
}

// AdjustmentExists checks if an idempotency key exists.
func (s *Store) AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM adjustments WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, employee_id, employee_name, leave_type_id, from_date, to_date, duration_days,
	status, reason, flagged_irregular, irregular_reason, decided_by, created_at, updated_at`

func (s *Store) SaveRequest(ctx context.Context, r generic.LeaveRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.EmployeeName, r.LeaveTypeID, r.From.String(), r.To.String(),
		r.DurationDays.String(), r.Status, r.Reason, r.FlaggedIrregular, r.IrregularReason,
		r.DecidedBy, formatTime(r.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query request: %w", err)
	}
	requests, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, generic.ErrRequestNotFound
	}
	return &requests[0], nil
}

func (s *Store) ListRequests(ctx context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any
	if len(filter.EmployeeIDs) > 0 {
		query += ` AND employee_id IN (?` + strings.Repeat(`, ?`, len(filter.EmployeeIDs)-1) + `)`
		for _, id := range filter.EmployeeIDs {
			args = append(args, id)
		}
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(`, ?`, len(filter.Statuses)-1) + `)`
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}
	if !filter.From.IsZero() {
		query += ` AND from_date >= ?`
		args = append(args, filter.From.String())
	}
	if !filter.To.IsZero() {
		query += ` AND from_date <= ?`
		args = append(args, filter.To.String())
	}
	query += ` ORDER BY from_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	return scanRequests(rows)
}

func scanRequests(rows *sql.Rows) ([]generic.LeaveRequest, error) {
	defer rows.Close()

	var result []generic.LeaveRequest
	for rows.Next() {
		var (
			r                                        generic.LeaveRequest
			name, reason, irregularReason, decidedBy sql.NullString
			from, to, duration, createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &name, &r.LeaveTypeID, &from, &to, &duration,
			&r.Status, &reason, &r.FlaggedIrregular, &irregularReason, &decidedBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.EmployeeName = name.String
		r.Reason = reason.String
		r.IrregularReason = irregularReason.String
		r.DecidedBy = decidedBy.String
		r.From, _ = generic.ParseTimePoint(from)
		r.To, _ = generic.ParseTimePoint(to)
		r.DurationDays = parseDecimal(duration)
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) SetRequestStatus(ctx context.Context, id generic.RequestID, status generic.RequestStatus, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateRequest(ctx, id,
		`UPDATE requests SET status = ?, decided_by = ?, updated_at = ? WHERE id = ?`,
		status, actorID, formatTime(time.Now().UTC()), id)
}

func (s *Store) FlagIrregular(ctx context.Context, id generic.RequestID, flagged bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !flagged {
		reason = ""
	}
	return s.updateRequest(ctx, id,
		`UPDATE requests SET flagged_irregular = ?, irregular_reason = ?, updated_at = ? WHERE id = ?`,
		flagged, reason, formatTime(time.Now().UTC()), id)
}

func (s *Store) updateRequest(ctx context.Context, id generic.RequestID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO employees (id, name, department, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		emp.ID, emp.Name, emp.Department, nullDate(&emp.HireDate), formatTime(emp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	employees, err := s.queryEmployees(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(employees) == 0 {
		return nil, generic.ErrEmployeeNotFound
	}
	return &employees[0], nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	return s.queryEmployees(ctx, ``)
}

func (s *Store) queryEmployees(ctx context.Context, where string, args ...any) ([]generic.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, department, hire_date, created_at FROM employees `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var result []generic.Employee
	for rows.Next() {
		var (
			emp                  generic.Employee
			department, hireDate sql.NullString
			createdAt            string
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &department, &hireDate, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		emp.Department = department.String
		if hd := parseNullDate(hireDate); hd != nil {
			emp.HireDate = *hd
		}
		emp.CreatedAt = parseTime(createdAt)
		result = append(result, emp)
	}
	return result, rows.Err()
}

// =============================================================================
// SUSPENSIONS
// =============================================================================

func (s *Store) SaveSuspension(ctx context.Context, sp generic.Suspension) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suspensions
		(id, employee_id, leave_type_id, suspension_type, from_date, to_date, reason, actor_id,
		 settled, deducted_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.EmployeeID, sp.LeaveTypeID, sp.Type, sp.From.String(), sp.To.String(),
		sp.Reason, sp.ActorID, sp.Settled, sp.DeductedDays.String(), formatTime(sp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save suspension: %w", err)
	}
	return nil
}

func (s *Store) ListSuspensions(ctx context.Context, filter generic.SuspensionFilter) ([]generic.Suspension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, leave_type_id, suspension_type, from_date, to_date, reason, actor_id,
		       settled, deducted_days, created_at
		FROM suspensions WHERE 1=1`
	var args []any
	if filter.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, filter.EmployeeID)
	}
	if filter.Unsettled {
		query += ` AND settled = FALSE`
	}
	if filter.Overlaps != nil {
		query += ` AND from_date <= ? AND to_date >= ?`
		args = append(args, filter.Overlaps.End.String(), filter.Overlaps.Start.String())
	}
	query += ` ORDER BY from_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suspensions: %w", err)
	}
	defer rows.Close()

	var result []generic.Suspension
	for rows.Next() {
		var (
			sp                            generic.Suspension
			leaveType, reason, actor      sql.NullString
			from, to, deducted, createdAt string
		)
		if err := rows.Scan(&sp.ID, &sp.EmployeeID, &leaveType, &sp.Type, &from, &to, &reason, &actor,
			&sp.Settled, &deducted, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan suspension: %w", err)
		}
		sp.LeaveTypeID = generic.LeaveTypeID(leaveType.String)
		sp.Reason = reason.String
		sp.ActorID = actor.String
		sp.From, _ = generic.ParseTimePoint(from)
		sp.To, _ = generic.ParseTimePoint(to)
		sp.DeductedDays = parseDecimal(deducted)
		sp.CreatedAt = parseTime(createdAt)
		result = append(result, sp)
	}
	return result, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// checkBatchKeys rejects a batch that repeats an idempotency key.
func checkBatchKeys(adjustments []generic.Adjustment) error {
	seen := make(map[string]bool)
	for _, adj := range adjustments {
		if adj.IdempotencyKey == "" {
			continue
		}
		if seen[adj.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[adj.IdempotencyKey] = true
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) *generic.TimePoint {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	tp, err := generic.ParseTimePoint(ns.String)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
