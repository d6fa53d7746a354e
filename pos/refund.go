package pos

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS CHANGES
// =============================================================================

// DefaultRefundReason is used when a transaction is marked refunded without one.
const DefaultRefundReason = "full refund"

// UpdateStatus drives the state machine to the requested status.
// Moving to refunded refunds whatever is left of the total.
func (e *Engine) UpdateStatus(ctx context.Context, id TransactionID, to Status, reason string) (*Transaction, error) {
	if !to.Valid() {
		err := invalid("status", "unknown status %q", to)
		e.rejected(err, "update_status")
		return nil, err
	}

	var (
		txn  *Transaction
		from Status
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		txn, err = s.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		from = txn.Status
		now := e.clock.Now()

		switch to {
		case StatusCompleted:
			err = txn.Complete(now)
		case StatusCancelled:
			err = txn.Cancel(reason, now)
		case StatusRefunded:
			if txn.Status == StatusRefunded {
				return &InvalidTransitionError{From: txn.Status, To: to}
			}
			if reason == "" {
				reason = DefaultRefundReason
			}
			err = txn.RefundRemaining(reason, now)
		default:
			err = &InvalidTransitionError{From: txn.Status, To: to}
		}
		if err != nil {
			return err
		}

		if err := s.SaveTransactionState(ctx, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		return e.publish(ctx, s, EventStatusChanged, txn.ID, StatusChanged{
			TransactionID: txn.ID,
			From:          from,
			To:            txn.Status,
			Reason:        reason,
			OccurredAt:    now,
		})
	})
	if err != nil {
		e.rejected(err, "update_status")
		return nil, err
	}

	e.log.Info().
		Str("transaction_id", string(id)).
		Str("from", string(from)).
		Str("to", string(txn.Status)).
		Msg("transaction status changed")
	return txn, nil
}

// =============================================================================
// REFUNDS
// =============================================================================

// RefundItem returns quantity units of one line.
type RefundItem struct {
	LineID   LineID
	Quantity int
}

// RefundRequest is the input of ProcessRefund. Restock is opt-in.
type RefundRequest struct {
	Amount  decimal.Decimal
	Reason  string
	Items   []RefundItem
	Restock bool
}

// ProcessRefund applies a (partial) refund and optional item returns.
func (e *Engine) ProcessRefund(ctx context.Context, id TransactionID, req RefundRequest) (*Transaction, error) {
	var txn *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		txn, err = s.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		if err := txn.ApplyRefund(req.Amount, req.Reason, now); err != nil {
			return err
		}

		for i, item := range req.Items {
			line, ok := txn.Line(item.LineID)
			if !ok {
				return fmt.Errorf("%w: %s", ErrLineNotFound, item.LineID)
			}
			if item.Quantity < 1 {
				return invalid(fmt.Sprintf("items[%d].quantity", i), "must be >= 1")
			}
			if item.Quantity > line.Returnable() {
				return fmt.Errorf("%w: line %s has %d returnable, requested %d",
					ErrRefundQuantityExceeded, line.ID, line.Returnable(), item.Quantity)
			}
			line.RefundedQuantity += item.Quantity
			if err := s.SaveLineRefund(ctx, line.ID, line.RefundedQuantity); err != nil {
				return fmt.Errorf("save line refund: %w", err)
			}
			if req.Restock {
				if err := e.stock.Release(ctx, s, line.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.SaveTransactionState(ctx, txn); err != nil {
			return fmt.Errorf("save transaction: %w", err)
		}
		return e.publish(ctx, s, EventRefunded, txn.ID, Refunded{
			TransactionID:  txn.ID,
			Amount:         req.Amount,
			RefundedAmount: txn.RefundedAmount,
			Reason:         req.Reason,
			Status:         txn.Status,
			Restocked:      req.Restock && len(req.Items) > 0,
			OccurredAt:     now,
		})
	})
	if err != nil {
		e.rejected(err, "process_refund")
		return nil, err
	}

	e.log.Info().
		Str("transaction_id", string(id)).
		Str("amount", req.Amount.StringFixed(MoneyPlaces)).
		Str("refunded_amount", txn.RefundedAmount.StringFixed(MoneyPlaces)).
		Str("status", string(txn.Status)).
		Msg("refund processed")
	return txn, nil
}

// MarkReceiptPrinted sets the receipt flag. Repeating it is a no-op.
func (e *Engine) MarkReceiptPrinted(ctx context.Context, id TransactionID) (*Transaction, error) {
	var txn *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		txn, err = s.LockTransaction(ctx, id)
		if err != nil {
			return err
		}
		if txn.ReceiptPrinted {
			return nil
		}
		txn.ReceiptPrinted = true
		txn.UpdatedAt = e.clock.Now()
		return s.SaveTransactionState(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// =============================================================================
// MANUAL ADJUSTMENTS
// =============================================================================

// GrantPoints adds loyalty points outside of a sale.
func (e *Engine) GrantPoints(ctx context.Context, id CustomerID, points int64, ref Ref) (*Customer, error) {
	return e.adjustPoints(ctx, "grant_points", func(s Store) (*Customer, error) {
		return e.loyalty.Grant(ctx, s, id, points, ref)
	})
}

// RedeemPoints removes loyalty points outside of a sale.
func (e *Engine) RedeemPoints(ctx context.Context, id CustomerID, points int64, ref Ref) (*Customer, error) {
	return e.adjustPoints(ctx, "redeem_points", func(s Store) (*Customer, error) {
		return e.loyalty.Redeem(ctx, s, id, points, ref)
	})
}

func (e *Engine) adjustPoints(ctx context.Context, op string, fn func(Store) (*Customer, error)) (*Customer, error) {
	var c *Customer
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		c, err = fn(s)
		return err
	})
	if err != nil {
		e.rejected(err, op)
		return nil, err
	}
	e.log.Info().Str("op", op).Str("customer_id", string(c.ID)).Int64("balance", c.LoyaltyPoints).Msg("loyalty adjusted")
	return c, nil
}

// AdjustStock applies a manual set/add/subtract to a product's stock.
func (e *Engine) AdjustStock(ctx context.Context, id ProductID, op StockOp, quantity int) (*Product, error) {
	var p *Product
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		p, err = e.stock.Adjust(ctx, s, id, op, quantity)
		return err
	})
	if err != nil {
		e.rejected(err, "adjust_stock")
		return nil, err
	}
	e.log.Info().Str("product_id", string(id)).Str("op", string(op)).Int("stock", p.Stock).Msg("stock adjusted")
	return p, nil
}
