/*
ledger.go - Serialized entitlement mutations with an audit trail

PURPOSE:
  The Ledger is the single write path for balances. Every change to an
  entitlement goes through Mutate, which:
    1. Serializes writers on the same (employee, leave type) key
    2. Runs the caller's mutation inside the store's atomic update
    3. Stamps every returned adjustment with an ID, actor and timestamp
    4. Rejects adjustments without a reason
    5. Retries a bounded number of times on optimistic-lock conflicts

CRITICAL INVARIANTS:
  1. Taken and Pending never go below zero
  2. Every adjustment has a non-empty reason
  3. Adjustments are appended in the same atomic step as the record change

CONCURRENCY:
  The in-process key lock makes two finalizations against the same record
  queue up instead of racing. Stores backed by a shared database add their
  own row locks or version checks, which covers multiple processes.

SEE ALSO:
  - store.go: Low-level persistence interface
  - leave/service.go: Domain operations built on Mutate
*/
package generic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxMutateAttempts = 3

// Ledger wraps a Store with per-key serialization.
type Ledger struct {
	store Store
	locks sync.Map // EntitlementKey -> *sync.Mutex
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Store returns the underlying store for read paths.
func (l *Ledger) Store() Store {
	return l.store
}

// WithClock replaces the timestamp source. Used by tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) lock(key EntitlementKey) func() {
	m, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Mutate applies fn to the entitlement behind key and returns the updated
// record with the adjustments as stored. The entitlement must exist.
func (l *Ledger) Mutate(ctx context.Context, key EntitlementKey, fn MutateFunc) (*Entitlement, []Adjustment, error) {
	unlock := l.lock(key)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		var stamped []Adjustment
		updated, err := l.store.UpdateEntitlement(ctx, key, func(e *Entitlement) ([]Adjustment, error) {
			adjustments, err := fn(e)
			if err != nil {
				return nil, err
			}
			if e.Taken.IsNegative() || e.Pending.IsNegative() {
				return nil, fmt.Errorf("%s: taken and pending must stay non-negative (taken %s, pending %s)",
					key, e.Taken, e.Pending)
			}
			stamped, err = l.stamp(adjustments)
			return stamped, err
		})
		if err == nil {
			return updated, stamped, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// Create inserts a new entitlement and its opening adjustments.
func (l *Ledger) Create(ctx context.Context, e Entitlement, adjustments []Adjustment) (*Entitlement, []Adjustment, error) {
	unlock := l.lock(e.Key())
	defer unlock()

	now := l.now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	stamped, err := l.stamp(adjustments)
	if err != nil {
		return nil, nil, err
	}
	if err := l.store.CreateEntitlement(ctx, e, stamped); err != nil {
		return nil, nil, err
	}
	return &e, stamped, nil
}

func (l *Ledger) stamp(adjustments []Adjustment) ([]Adjustment, error) {
	now := l.now().UTC()
	out := make([]Adjustment, 0, len(adjustments))
	for _, adj := range adjustments {
		if adj.Reason == "" {
			return nil, Invalid("reason", "adjustment reason is required")
		}
		if adj.Amount.IsNegative() {
			return nil, Invalid("amount", "adjustment amount must not be negative")
		}
		if adj.ID == "" {
			adj.ID = AdjustmentID(uuid.NewString())
		}
		if adj.ActorID == "" {
			adj.ActorID = "system"
		}
		if adj.CreatedAt.IsZero() {
			adj.CreatedAt = now
		}
		out = append(out, adj)
	}
	return out, nil
}
