/*
errors.go - Centralized error types for the leave ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is against the sentinels; the
  structured errors carry the detail an HR operator needs to fix input.

ERROR CATEGORIES:
  1. Validation errors - bad input, rejected before any mutation
  2. Balance errors - a non-overdraft leave type would go negative
  3. Lookup errors - missing employee, request, entitlement or leave type
  4. Store errors - concurrency conflicts and idempotency hits

SEE ALSO:
  - leave/service.go: Raises these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when an operation would drive a
	// non-overdraft leave type below zero without an override.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateIdempotencyKey is returned when an adjustment with the same
	// idempotency key already exists. Expected on batch re-runs.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when an optimistic version check fails.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrEntitlementNotFound = errors.New("entitlement not found")
	ErrEntitlementExists   = errors.New("entitlement already exists")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrRequestNotFound     = errors.New("leave request not found")
	ErrLeaveTypeNotFound   = errors.New("leave type not found")

	// ErrInvalidState is returned when a request cannot take the requested decision.
	ErrInvalidState = errors.New("invalid state transition")

	ErrInvalidPeriod = errors.New("invalid period: start after end")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  EmployeeID
	LeaveTypeID LeaveTypeID
	Available   decimal.Decimal
	Requested   decimal.Decimal
	Shortfall   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s: available %s, requested %s, shortfall %s",
		e.EmployeeID, e.LeaveTypeID, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// StateError explains why a request cannot be finalized.
type StateError struct {
	RequestID RequestID
	Status    RequestStatus
	Message   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("request %s (%s): %s", e.RequestID, e.Status, e.Message)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrLeaveTypeNotFound)
}

// IsConflict returns true if the error is a state or duplicate conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrEntitlementExists) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntitlementNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
