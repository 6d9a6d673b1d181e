/*
Package mongo provides a MongoDB implementation of the ledger store.

PURPOSE:
  Implements generic.Store on MongoDB for deployments that already run a
  document database.

ATOMICITY:
  UpdateEntitlement and CreateEntitlement run inside a multi-document
  transaction, so the entitlement and its adjustments land together. This
  requires a replica set (a single-node replica set is enough).

  The entitlement replace is filtered on the version it read, so a
  concurrent writer surfaces as generic.ErrConcurrentModification.

DAY AMOUNTS:
  Stored as Decimal128. Dates are stored as YYYY-MM-DD strings, which sort
  and compare correctly as text.

SEE ALSO:
  - generic/store.go: The contract
  - store/postgres: Relational implementation
*/
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-ledger/generic"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	EntitlementsCollection = "entitlements"
	AdjustmentsCollection  = "adjustments"
	RequestsCollection     = "leave_requests"
	EmployeesCollection    = "employees"
	SuspensionsCollection  = "suspensions"
)

type Config struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// Connect opens a client, pings the primary and returns the database handle.
func Connect(ctx context.Context, logger *slog.Logger, cfg Config) (*mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)
	return client.Database(cfg.Database), nil
}

// Store implements generic.Store.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ generic.Store = (*Store)(nil)

func New(db *mongo.Database, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// EnsureIndexes creates the unique indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		EntitlementsCollection: {{
			Keys:    bson.D{{Key: "employee_id", Value: 1}, {Key: "leave_type_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		AdjustmentsCollection: {
			{
				Keys: bson.D{{Key: "idempotency_key", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "leave_type_id", Value: 1}, {Key: "seq", Value: -1}}},
		},
		RequestsCollection:    {{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "from_date", Value: 1}}}},
		SuspensionsCollection: {{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "from_date", Value: 1}}}},
	}
	for collection, models := range indexes {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}
	return nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

type entitlementDoc struct {
	ID                 string               `bson:"_id"`
	EmployeeID         string               `bson:"employee_id"`
	LeaveTypeID        string               `bson:"leave_type_id"`
	PolicyYear         int                  `bson:"policy_year"`
	YearlyEntitlement  primitive.Decimal128 `bson:"yearly_entitlement"`
	CarryForward       primitive.Decimal128 `bson:"carry_forward"`
	CarryForwardExpiry string               `bson:"carry_forward_expiry,omitempty"`
	Accrued            primitive.Decimal128 `bson:"accrued"`
	Taken              primitive.Decimal128 `bson:"taken"`
	Pending            primitive.Decimal128 `bson:"pending"`
	Version            int64                `bson:"version"`
	CreatedAt          time.Time            `bson:"created_at"`
	UpdatedAt          time.Time            `bson:"updated_at"`
}

type adjustmentDoc struct {
	ID             string               `bson:"_id"`
	Seq            int64                `bson:"seq"`
	EmployeeID     string               `bson:"employee_id"`
	LeaveTypeID    string               `bson:"leave_type_id"`
	Type           string               `bson:"type"`
	Kind           string               `bson:"kind"`
	Amount         primitive.Decimal128 `bson:"amount"`
	Reason         string               `bson:"reason"`
	ActorID        string               `bson:"actor_id"`
	RequestID      string               `bson:"request_id,omitempty"`
	Override       bool                 `bson:"override"`
	IdempotencyKey string               `bson:"idempotency_key,omitempty"`
	Metadata       map[string]string    `bson:"metadata,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
}

type requestDoc struct {
	ID               string               `bson:"_id"`
	EmployeeID       string               `bson:"employee_id"`
	EmployeeName     string               `bson:"employee_name"`
	LeaveTypeID      string               `bson:"leave_type_id"`
	From             string               `bson:"from_date"`
	To               string               `bson:"to_date"`
	DurationDays     primitive.Decimal128 `bson:"duration_days"`
	Status           string               `bson:"status"`
	Reason           string               `bson:"reason"`
	FlaggedIrregular bool                 `bson:"flagged_irregular"`
	IrregularReason  string               `bson:"irregular_reason"`
	DecidedBy        string               `bson:"decided_by"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
}

type employeeDoc struct {
	ID         string    `bson:"_id"`
	Name       string    `bson:"name"`
	Department string    `bson:"department"`
	HireDate   string    `bson:"hire_date,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

type suspensionDoc struct {
	ID           string               `bson:"_id"`
	EmployeeID   string               `bson:"employee_id"`
	LeaveTypeID  string               `bson:"leave_type_id"`
	Type         string               `bson:"type"`
	From         string               `bson:"from_date"`
	To           string               `bson:"to_date"`
	Reason       string               `bson:"reason"`
	ActorID      string               `bson:"actor_id"`
	Settled      bool                 `bson:"settled"`
	DeductedDays primitive.Decimal128 `bson:"deducted_days"`
	CreatedAt    time.Time            `bson:"created_at"`
}

func toEntitlementDoc(e generic.Entitlement) entitlementDoc {
	doc := entitlementDoc{
		ID:                e.ID,
		EmployeeID:        string(e.EmployeeID),
		LeaveTypeID:       string(e.LeaveTypeID),
		PolicyYear:        e.PolicyYear,
		YearlyEntitlement: toDecimal128(e.YearlyEntitlement),
		CarryForward:      toDecimal128(e.CarryForward),
		Accrued:           toDecimal128(e.Accrued),
		Taken:             toDecimal128(e.Taken),
		Pending:           toDecimal128(e.Pending),
		Version:           e.Version,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if e.CarryForwardExpiry != nil {
		doc.CarryForwardExpiry = e.CarryForwardExpiry.String()
	}
	return doc
}

func (d entitlementDoc) entitlement() generic.Entitlement {
	return generic.Entitlement{
		ID:                 d.ID,
		EmployeeID:         generic.EmployeeID(d.EmployeeID),
		LeaveTypeID:        generic.LeaveTypeID(d.LeaveTypeID),
		PolicyYear:         d.PolicyYear,
		YearlyEntitlement:  fromDecimal128(d.YearlyEntitlement),
		CarryForward:       fromDecimal128(d.CarryForward),
		CarryForwardExpiry: parseDate(d.CarryForwardExpiry),
		Accrued:            fromDecimal128(d.Accrued),
		Taken:              fromDecimal128(d.Taken),
		Pending:            fromDecimal128(d.Pending),
		Version:            d.Version,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toAdjustmentDoc(a generic.Adjustment, seq int64) adjustmentDoc {
	return adjustmentDoc{
		ID:             string(a.ID),
		Seq:            seq,
		EmployeeID:     string(a.EmployeeID),
		LeaveTypeID:    string(a.LeaveTypeID),
		Type:           string(a.Type),
		Kind:           string(a.Kind),
		Amount:         toDecimal128(a.Amount),
		Reason:         a.Reason,
		ActorID:        a.ActorID,
		RequestID:      string(a.RequestID),
		Override:       a.Override,
		IdempotencyKey: a.IdempotencyKey,
		Metadata:       a.Metadata,
		CreatedAt:      a.CreatedAt,
	}
}

func (d adjustmentDoc) adjustment() generic.Adjustment {
	return generic.Adjustment{
		ID:             generic.AdjustmentID(d.ID),
		EmployeeID:     generic.EmployeeID(d.EmployeeID),
		LeaveTypeID:    generic.LeaveTypeID(d.LeaveTypeID),
		Type:           generic.AdjustmentType(d.Type),
		Kind:           generic.AdjustmentKind(d.Kind),
		Amount:         fromDecimal128(d.Amount),
		Reason:         d.Reason,
		ActorID:        d.ActorID,
		RequestID:      generic.RequestID(d.RequestID),
		Override:       d.Override,
		IdempotencyKey: d.IdempotencyKey,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
	}
}

func (d requestDoc) request() generic.LeaveRequest {
	from, _ := generic.ParseTimePoint(d.From)
	to, _ := generic.ParseTimePoint(d.To)
	return generic.LeaveRequest{
		ID:               generic.RequestID(d.ID),
		EmployeeID:       generic.EmployeeID(d.EmployeeID),
		EmployeeName:     d.EmployeeName,
		LeaveTypeID:      generic.LeaveTypeID(d.LeaveTypeID),
		From:             from,
		To:               to,
		DurationDays:     fromDecimal128(d.DurationDays),
		Status:           generic.RequestStatus(d.Status),
		Reason:           d.Reason,
		FlaggedIrregular: d.FlaggedIrregular,
		IrregularReason:  d.IrregularReason,
		DecidedBy:        d.DecidedBy,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (s *Store) GetEntitlement(ctx context.Context, key generic.EntitlementKey) (*generic.Entitlement, error) {
	var doc entitlementDoc
	err := s.db.Collection(EntitlementsCollection).
		FindOne(ctx, bson.M{"employee_id": string(key.EmployeeID), "leave_type_id": string(key.LeaveTypeID)}).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, generic.ErrEntitlementNotFound
		}
		s.logger.Error("Failed to get entitlement", "key", key.String(), "error", err)
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	e := doc.entitlement()
	return &e, nil
}

func (s *Store) CreateEntitlement(ctx context.Context, e generic.Entitlement, adjustments []generic.Adjustment) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := s.db.Collection(EntitlementsCollection).InsertOne(sc, toEntitlementDoc(e)); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return generic.ErrEntitlementExists
			}
			return fmt.Errorf("failed to create entitlement: %w", err)
		}
		return s.insertAdjustments(sc, adjustments)
	})
}

// UpdateEntitlement applies fn and replaces the document only if its version
// is unchanged since the read.
func (s *Store) UpdateEntitlement(ctx context.Context, key generic.EntitlementKey, fn generic.MutateFunc) (*generic.Entitlement, error) {
	var updated generic.Entitlement
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		current, err := s.GetEntitlement(sc, key)
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
		result, err := s.db.Collection(EntitlementsCollection).ReplaceOne(sc,
			bson.M{"_id": current.ID, "version": current.Version},
			toEntitlementDoc(updated),
		)
		if err != nil {
			return fmt.Errorf("failed to update entitlement: %w", err)
		}
		if result.MatchedCount == 0 {
			return generic.ErrConcurrentModification
		}
		return s.insertAdjustments(sc, adjustments)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) ListEntitlements(ctx context.Context, filter generic.EntitlementFilter) ([]generic.Entitlement, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		query["employee_id"] = string(filter.EmployeeID)
	}
	if filter.LeaveTypeID != "" {
		query["leave_type_id"] = string(filter.LeaveTypeID)
	}
	opts := options.Find().SetSort(bson.D{{Key: "employee_id", Value: 1}, {Key: "leave_type_id", Value: 1}})

	var docs []entitlementDoc
	if err := s.find(ctx, EntitlementsCollection, query, opts, &docs); err != nil {
		return nil, fmt.Errorf("failed to list entitlements: %w", err)
	}
	result := make([]generic.Entitlement, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.entitlement())
	}
	return result, nil
}

// =============================================================================
// ADJUSTMENTS - Append-only
// =============================================================================

func (s *Store) insertAdjustments(ctx context.Context, adjustments []generic.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	docs := make([]any, 0, len(adjustments))
	for i, adj := range adjustments {
		docs = append(docs, toAdjustmentDoc(adj, base+int64(i)))
	}
	if _, err := s.db.Collection(AdjustmentsCollection).InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "idempotency_key") {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert adjustments: %w", err)
	}
	return nil
}

// ListAdjustments returns matches newest first.
func (s *Store) ListAdjustments(ctx context.Context, filter generic.AdjustmentFilter) ([]generic.Adjustment, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		query["employee_id"] = string(filter.EmployeeID)
	}
	if filter.LeaveTypeID != "" {
		query["leave_type_id"] = string(filter.LeaveTypeID)
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		query["kind"] = bson.M{"$in": kinds}
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since}
	}
	opts := options.Find().SetSort(bson.M{"seq": -1})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	var docs []adjustmentDoc
	if err := s.find(ctx, AdjustmentsCollection, query, opts, &docs); err != nil {
		return nil, fmt.Errorf("failed to list adjustments: %w", err)
	}
	result := make([]generic.Adjustment, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.adjustment())
	}
	return result, nil
}

func (s *Store) AdjustmentExists(ctx context.Context, idempotencyKey string) (bool, error) {
	count, err := s.db.Collection(AdjustmentsCollection).
		CountDocuments(ctx, bson.M{"idempotency_key": idempotencyKey}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return count > 0, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r generic.LeaveRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	doc := requestDoc{
		ID:               string(r.ID),
		EmployeeID:       string(r.EmployeeID),
		EmployeeName:     r.EmployeeName,
		LeaveTypeID:      string(r.LeaveTypeID),
		From:             r.From.String(),
		To:               r.To.String(),
		DurationDays:     toDecimal128(r.DurationDays),
		Status:           string(r.Status),
		Reason:           r.Reason,
		FlaggedIrregular: r.FlaggedIrregular,
		IrregularReason:  r.IrregularReason,
		DecidedBy:        r.DecidedBy,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        now,
	}
	_, err := s.db.Collection(RequestsCollection).
		ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*generic.LeaveRequest, error) {
	var doc requestDoc
	if err := s.db.Collection(RequestsCollection).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, generic.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	r := doc.request()
	return &r, nil
}

// requestQuery translates a RequestFilter. Dates are stored as YYYY-MM-DD
// strings, so range operators compare them in calendar order.
func requestQuery(filter generic.RequestFilter) bson.M {
	query := bson.M{}
	if len(filter.EmployeeIDs) > 0 {
		ids := make([]string, 0, len(filter.EmployeeIDs))
		for _, id := range filter.EmployeeIDs {
			ids = append(ids, string(id))
		}
		query["employee_id"] = bson.M{"$in": ids}
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		query["status"] = bson.M{"$in": statuses}
	}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		window := bson.M{}
		if !filter.From.IsZero() {
			window["$gte"] = filter.From.String()
		}
		if !filter.To.IsZero() {
			window["$lte"] = filter.To.String()
		}
		query["from_date"] = window
	}
	return query
}

func (s *Store) ListRequests(ctx context.Context, filter generic.RequestFilter) ([]generic.LeaveRequest, error) {
	query := requestQuery(filter)
	opts := options.Find().SetSort(bson.D{{Key: "from_date", Value: 1}, {Key: "_id", Value: 1}})

	var docs []requestDoc
	if err := s.find(ctx, RequestsCollection, query, opts, &docs); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	result := make([]generic.LeaveRequest, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.request())
	}
	return result, nil
}

func (s *Store) SetRequestStatus(ctx context.Context, id generic.RequestID, status generic.RequestStatus, actorID string) error {
	return s.updateRequest(ctx, id, bson.M{
		"status":     string(status),
		"decided_by": actorID,
		"updated_at": time.Now().UTC(),
	})
}

func (s *Store) FlagIrregular(ctx context.Context, id generic.RequestID, flagged bool, reason string) error {
	if !flagged {
		reason = ""
	}
	return s.updateRequest(ctx, id, bson.M{
		"flagged_irregular": flagged,
		"irregular_reason":  reason,
		"updated_at":        time.Now().UTC(),
	})
}

func (s *Store) updateRequest(ctx context.Context, id generic.RequestID, set bson.M) error {
	result, err := s.db.Collection(RequestsCollection).UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$set": set})
	if err != nil {
		s.logger.Error("Failed to update request", "request_id", string(id), "error", err)
		return fmt.Errorf("failed to update request: %w", err)
	}
	if result.MatchedCount == 0 {
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
	doc := employeeDoc{
		ID:         string(emp.ID),
		Name:       emp.Name,
		Department: emp.Department,
		CreatedAt:  emp.CreatedAt,
	}
	if !emp.HireDate.IsZero() {
		doc.HireDate = emp.HireDate.String()
	}
	_, err := s.db.Collection(EmployeesCollection).
		ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (*generic.Employee, error) {
	var doc employeeDoc
	if err := s.db.Collection(EmployeesCollection).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, generic.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	emp := doc.employee()
	return &emp, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]generic.Employee, error) {
	var docs []employeeDoc
	if err := s.find(ctx, EmployeesCollection, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}), &docs); err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	result := make([]generic.Employee, 0, len(docs))
	for _, doc := range docs {
		result = append(result, doc.employee())
	}
	return result, nil
}

func (d employeeDoc) employee() generic.Employee {
	emp := generic.Employee{
		ID:         generic.EmployeeID(d.ID),
		Name:       d.Name,
		Department: d.Department,
		CreatedAt:  d.CreatedAt,
	}
	if hd := parseDate(d.HireDate); hd != nil {
		emp.HireDate = *hd
	}
	return emp
}

// =============================================================================
// SUSPENSIONS
// =============================================================================

func (s *Store) SaveSuspension(ctx context.Context, sp generic.Suspension) error {
	doc := suspensionDoc{
		ID:           sp.ID,
		EmployeeID:   string(sp.EmployeeID),
		LeaveTypeID:  string(sp.LeaveTypeID),
		Type:         string(sp.Type),
		From:         sp.From.String(),
		To:           sp.To.String(),
		Reason:       sp.Reason,
		ActorID:      sp.ActorID,
		Settled:      sp.Settled,
		DeductedDays: toDecimal128(sp.DeductedDays),
		CreatedAt:    sp.CreatedAt,
	}
	if _, err := s.db.Collection(SuspensionsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save suspension: %w", err)
	}
	return nil
}

func (s *Store) ListSuspensions(ctx context.Context, filter generic.SuspensionFilter) ([]generic.Suspension, error) {
	query := bson.M{}
	if filter.EmployeeID != "" {
		query["employee_id"] = string(filter.EmployeeID)
	}
	if filter.Unsettled {
		query["settled"] = false
	}
	if filter.Overlaps != nil {
		query["from_date"] = bson.M{"$lte": filter.Overlaps.End.String()}
		query["to_date"] = bson.M{"$gte": filter.Overlaps.Start.String()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "from_date", Value: 1}, {Key: "_id", Value: 1}})

	var docs []suspensionDoc
	if err := s.find(ctx, SuspensionsCollection, query, opts, &docs); err != nil {
		return nil, fmt.Errorf("failed to list suspensions: %w", err)
	}
	result := make([]generic.Suspension, 0, len(docs))
	for _, d := range docs {
		from, _ := generic.ParseTimePoint(d.From)
		to, _ := generic.ParseTimePoint(d.To)
		result = append(result, generic.Suspension{
			ID:           d.ID,
			EmployeeID:   generic.EmployeeID(d.EmployeeID),
			LeaveTypeID:  generic.LeaveTypeID(d.LeaveTypeID),
			Type:         generic.SuspensionType(d.Type),
			From:         from,
			To:           to,
			Reason:       d.Reason,
			ActorID:      d.ActorID,
			Settled:      d.Settled,
			DeductedDays: fromDecimal128(d.DeductedDays),
			CreatedAt:    d.CreatedAt,
		})
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) find(ctx context.Context, collection string, query bson.M, opts *options.FindOptions, out any) error {
	cursor, err := s.db.Collection(collection).Find(ctx, query, opts)
	if err != nil {
		s.logger.Error("Failed to query collection", "collection", collection, "error", err)
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func toDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
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
