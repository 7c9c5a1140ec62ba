/*
errors.go - Centralized error types for the debt ledger

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps each category to one HTTP status.

ERROR CATEGORIES:
  1. Validation errors  - malformed or out-of-range input        (400)
  2. Authentication     - missing or invalid credential          (401)
  3. Authorization      - valid credential, insufficient role    (403)
  4. Not found          - unknown user, transaction, product     (404)
  5. Conflicts          - duplicates, lost optimistic lock       (409)
  6. Persistence        - store failures, opaque to clients      (500)

USAGE:
    if errors.Is(err, ledger.ErrNotFound) { ... }

    var nf *ledger.NotFoundError
    if errors.As(err, &nf) { log nf.Kind, nf.ID }

SEE ALSO:
  - api/errors.go: status mapping
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when no valid credential was presented.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the principal lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a unique field (email, username) is taken.
	ErrConflict = errors.New("conflict")

	// ErrConcurrentModification is returned when optimistic locking detects a
	// write that happened between read and update.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInsufficientStock is returned when a sale asks for more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPersistence is returned when the durable store fails.
	ErrPersistence = errors.New("persistence failure")
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

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "user", "transaction", "product", "category"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PersistenceError wraps a driver error. Op names the store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the driver error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// Persist wraps err as a PersistenceError unless it already belongs to the
// ledger taxonomy. Returns nil for nil.
func Persist(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
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
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
