/*
status.go - Transaction status state machine

STATES:
  pending   - transient, only visible inside the creating unit of work
  completed - sale committed
  cancelled - terminal
  refunded  - terminal, refundedAmount >= total

TRANSITIONS:
  pending   -> completed   Complete
  pending   -> cancelled   Cancel
  completed -> refunded    ApplyRefund once refundedAmount reaches total

  Partial refunds keep the transaction completed and accumulate
  RefundedAmount. Anything else is an *InvalidTransitionError.
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// Complete moves a pending transaction to completed and stamps its date.
func (t *Transaction) Complete(at time.Time) error {
	if t.Status != StatusPending {
		return &InvalidTransitionError{From: t.Status, To: StatusCompleted}
	}
	t.Status = StatusCompleted
	t.Date = at
	t.UpdatedAt = at
	return nil
}

// Cancel moves a pending transaction to cancelled.
func (t *Transaction) Cancel(reason string, at time.Time) error {
	if t.Status != StatusPending {
		return &InvalidTransitionError{From: t.Status, To: StatusCancelled}
	}
	t.Status = StatusCancelled
	t.CancelReason = reason
	t.UpdatedAt = at
	return nil
}

// Refundable is the amount not refunded yet.
func (t *Transaction) Refundable() decimal.Decimal {
	return t.Total.Sub(t.RefundedAmount)
}

// RefundRemaining refunds whatever is left of the total. A completed sale
// with nothing left to return (a zero total) flips straight to refunded.
func (t *Transaction) RefundRemaining(reason string, at time.Time) error {
	if t.Status == StatusCompleted && !t.Refundable().IsPositive() {
		if reason == "" {
			return invalid("reason", "is required")
		}
		t.RefundReason = reason
		t.Status = StatusRefunded
		t.UpdatedAt = at
		return nil
	}
	return t.ApplyRefund(t.Refundable(), reason, at)
}

// ApplyRefund accumulates a refund on a completed transaction and flips it
// to refunded once the whole total has been returned.
func (t *Transaction) ApplyRefund(amount decimal.Decimal, reason string, at time.Time) error {
	if !amount.IsPositive() {
		return invalid("amount", "must be > 0")
	}
	if err := checkCents("amount", amount); err != nil {
		return err
	}
	if reason == "" {
		return invalid("reason", "is required")
	}
	if t.Status == StatusRefunded {
		return &RefundExceedsError{Requested: amount, Available: decimal.Zero}
	}
	if t.Status != StatusCompleted {
		return ErrInvalidState
	}

	available := t.Refundable()
	if amount.GreaterThan(available) {
		return &RefundExceedsError{Requested: amount, Available: available}
	}

	t.RefundedAmount = RoundMoney(t.RefundedAmount.Add(amount))
	t.RefundReason = reason
	if t.RefundedAmount.GreaterThanOrEqual(t.Total) {
		t.Status = StatusRefunded
	}
	t.UpdatedAt = at
	return nil
}
