package pos

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNotesLength bounds free-text notes on a sale.
const MaxNotesLength = 500

type SaleItem struct {
	ProductID ProductID
	Quantity  int
}

// SaleRequest is the input of CreateSale.
type SaleRequest struct {
	UserID         UserID
	CustomerID     CustomerID
	Items          []SaleItem
	PaymentMethod  PaymentMethod
	Discount       decimal.Decimal
	PointsToRedeem int64
	Notes          string
}

// Validate checks the request shape and applies the cash default.
func (r *SaleRequest) Validate() error {
	if r.UserID == "" {
		return invalid("userId", "cashier is required")
	}
	if len(r.Items) == 0 {
		return ErrEmptySale
	}
	for i, item := range r.Items {
		if item.ProductID == "" {
			return invalid(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if item.Quantity < 1 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be >= 1")
		}
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = PaymentCash
	}
	if !r.PaymentMethod.Valid() {
		return invalid("paymentMethod", "unknown payment method %q", r.PaymentMethod)
	}
	if r.Discount.IsNegative() {
		return invalid("discountAmount", "must be >= 0")
	}
	if err := checkCents("discountAmount", r.Discount); err != nil {
		return err
	}
	if r.PointsToRedeem < 0 {
		return invalid("pointsToRedeem", "must be >= 0")
	}
	if r.PointsToRedeem > 0 && r.CustomerID == "" {
		return invalid("pointsToRedeem", "requires a customer")
	}
	if utf8.RuneCountInString(r.Notes) > MaxNotesLength {
		return invalid("notes", "must be at most %d characters", MaxNotesLength)
	}
	return nil
}

// CreateSale turns a cart into a committed, completed transaction.
// On any error nothing is persisted.
func (e *Engine) CreateSale(ctx context.Context, req SaleRequest) (*Transaction, error) {
	if err := req.Validate(); err != nil {
		e.rejected(err, "create_sale")
		return nil, err
	}

	var txn *Transaction
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		txn, err = e.sell(ctx, s, req)
		return err
	})
	if err != nil {
		e.rejected(err, "create_sale")
		return nil, err
	}

	e.log.Info().
		Str("transaction_id", string(txn.ID)).
		Str("number", txn.Number).
		Str("user_id", string(txn.UserID)).
		Str("customer_id", string(txn.CustomerID)).
		Str("total", txn.Total.StringFixed(MoneyPlaces)).
		Int("items", txn.ItemCount()).
		Int64("points_earned", txn.PointsEarned).
		Int64("points_redeemed", txn.PointsRedeemed).
		Msg("sale completed")
	return txn, nil
}

// sell runs inside the unit of work.
func (e *Engine) sell(ctx context.Context, s Store, req SaleRequest) (*Transaction, error) {
	now := e.clock.Now()
	txn := &Transaction{
		ID:             TransactionID(uuid.NewString()),
		UserID:         req.UserID,
		CustomerID:     req.CustomerID,
		PaymentMethod:  req.PaymentMethod,
		Status:         StatusPending,
		RefundedAmount: decimal.Zero,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Lock product rows in a stable order so two sales over the same
	// products cannot deadlock each other.
	for _, id := range productIDs(req.Items) {
		if _, err := s.LockProduct(ctx, id); err != nil {
			return nil, err
		}
	}

	// Reserve stock line by line. Repeated products reserve again and see
	// the stock already taken by earlier lines.
	reservations := make([]Reservation, 0, len(req.Items))
	priced := make([]PricedLine, 0, len(req.Items))
	for _, item := range req.Items {
		r, err := e.stock.Reserve(ctx, s, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
		priced = append(priced, PricedLine{Quantity: r.Quantity, UnitPrice: r.UnitPrice})
	}

	if txn.HasCustomer() {
		if _, err := lockActiveCustomer(ctx, s, txn.CustomerID); err != nil {
			return nil, err
		}
		if req.PointsToRedeem > 0 {
			ref := saleRef(txn.ID, RedeemKey(txn.ID))
			if _, err := e.loyalty.Redeem(ctx, s, txn.CustomerID, req.PointsToRedeem, ref); err != nil {
				return nil, err
			}
		}
	}

	totals, err := e.calc.Compute(priced, req.Discount, req.PointsToRedeem)
	if err != nil {
		return nil, err
	}
	txn.Subtotal = totals.Subtotal
	txn.Tax = totals.Tax
	txn.Discount = totals.Discount
	txn.Total = totals.Total
	txn.PointsRedeemed = totals.PointsRedeemed

	txn.Number, err = e.nextNumber(ctx, s)
	if err != nil {
		return nil, err
	}

	txn.Lines = make([]Line, len(reservations))
	for i, r := range reservations {
		txn.Lines[i] = Line{
			ID:            LineID(uuid.NewString()),
			TransactionID: txn.ID,
			ProductID:     r.ProductID,
			ProductName:   r.Name,
			ProductCost:   r.UnitCost,
			Quantity:      r.Quantity,
			UnitPrice:     r.UnitPrice,
			Discount:      decimal.Zero,
			TotalPrice:    LineTotal(r.Quantity, r.UnitPrice, decimal.Zero),
		}
	}
	if err := s.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if txn.HasCustomer() {
		earned, err := e.loyalty.Accrue(ctx, s, txn.CustomerID, txn.Total, saleRef(txn.ID, EarnKey(txn.ID)))
		if err != nil {
			return nil, err
		}
		txn.PointsEarned = earned
	}

	if err := txn.Complete(now); err != nil {
		return nil, err
	}
	if err := s.SaveTransactionState(ctx, txn); err != nil {
		return nil, fmt.Errorf("complete transaction: %w", err)
	}

	if err := e.publish(ctx, s, EventSaleCompleted, txn.ID, saleCompleted(txn)); err != nil {
		return nil, err
	}
	return txn, nil
}

// productIDs returns the distinct product IDs of items, sorted.
func productIDs(items []SaleItem) []ProductID {
	ids := make([]ProductID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
