/*
errors.go - Centralized error types for the sale engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer classifies errors with KindOf and never inspects strings.

ERROR CATEGORIES:
  1. Validation - malformed or missing request fields, no side effects yet
  2. Not found  - referenced product/customer/transaction absent
  3. Conflict   - stock, points, status transitions, refunds, totals
  4. Internal   - storage or unexpected failures

  Every category except validation can happen inside a unit of work.
  All of them roll the unit of work back.

USAGE:
  if errors.Is(err, pos.ErrInsufficientStock) {
      var stockErr *pos.InsufficientStockError
      errors.As(err, &stockErr)
      // stockErr.Available, stockErr.Requested
  }

SEE ALSO:
  - engine.go: Rollback boundary
  - api/errors.go: Kind to HTTP status mapping
*/
package pos

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrEmptySale is returned when a sale has no items.
	ErrEmptySale = fmt.Errorf("%w: sale has no items", ErrValidation)

	ErrProductNotFound     = errors.New("product not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrLineNotFound        = errors.New("transaction line not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrCategoryNotFound    = errors.New("category not found")

	// ErrProductInactive is returned when selling a disabled product.
	ErrProductInactive = errors.New("product is not active")

	// ErrCustomerInactive is returned when a sale references a deactivated customer.
	ErrCustomerInactive = errors.New("customer is not active")

	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientPoints = errors.New("insufficient loyalty points")
	ErrInvalidTransition  = errors.New("invalid status transition")

	// ErrInvalidState is returned when refunding a transaction that is not completed.
	ErrInvalidState = errors.New("only completed transactions can be refunded")

	ErrRefundExceedsAvailable = errors.New("refund amount exceeds available amount")
	ErrRefundQuantityExceeded = errors.New("refund quantity exceeds available quantity")
	ErrNegativeTotal          = errors.New("total amount cannot be negative")

	// ErrDuplicateIdempotencyKey is returned when a loyalty entry with the
	// same idempotency key already exists. Guards against double-spending.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicate is returned on unique constraint violations (username, sku, ...).
	ErrDuplicate = errors.New("duplicate record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InsufficientPointsError provides details about a loyalty shortfall.
type InsufficientPointsError struct {
	CustomerID CustomerID
	Available  int64
	Requested  int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points: available %d, requested %d",
		e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// InvalidTransitionError names the rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move transaction from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// RefundExceedsError carries the requested and refundable amounts.
type RefundExceedsError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *RefundExceedsError) Error() string {
	return fmt.Sprintf("refund amount %s exceeds available amount %s",
		e.Requested.StringFixed(MoneyPlaces), e.Available.StringFixed(MoneyPlaces))
}

func (e *RefundExceedsError) Unwrap() error {
	return ErrRefundExceedsAvailable
}

// NegativeTotalError carries the computed (rejected) total.
type NegativeTotalError struct {
	Total decimal.Decimal
}

func (e *NegativeTotalError) Error() string {
	return fmt.Sprintf("total amount cannot be negative: %s", e.Total.StringFixed(MoneyPlaces))
}

func (e *NegativeTotalError) Unwrap() error {
	return ErrNegativeTotal
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind classifies an error for callers that map errors to responses.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// KindOf returns the category of err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case IsNotFound(err):
		return KindNotFound
	case IsConflict(err):
		return KindConflict
	}
	return KindInternal
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrLineNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsConflict returns true if the request was well-formed but the current
// state of the store does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrCustomerInactive) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrRefundExceedsAvailable) ||
		errors.Is(err, ErrRefundQuantityExceeded) ||
		errors.Is(err, ErrNegativeTotal) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicate)
}

// IsClientError returns true if the error is due to the caller's request
// or the state it targets, rather than a server failure.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindValidation || k == KindNotFound || k == KindConflict
}
