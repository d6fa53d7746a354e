package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// TRANSACTIONS (pos.Store interface)
// =============================================================================

const transactionColumns = `id, number, user_id, customer_id, subtotal, tax, discount, total,
	payment_method, status, refunded_amount, refund_reason, cancel_reason,
	points_earned, points_redeemed, notes, receipt_printed, transaction_date,
	created_at, updated_at`

func scanTransaction(row rowScanner) (*pos.Transaction, error) {
	var (
		t                    pos.Transaction
		customerID, date     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Number, &t.UserID, &customerID, &t.Subtotal, &t.Tax, &t.Discount, &t.Total,
		&t.PaymentMethod, &t.Status, &t.RefundedAmount, &t.RefundReason, &t.CancelReason,
		&t.PointsEarned, &t.PointsRedeemed, &t.Notes, &t.ReceiptPrinted, &date,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.CustomerID = pos.CustomerID(customerID.String)
	if d := parseNullTime(date); d != nil {
		t.Date = *d
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func (c *conn) TransactionNumberExists(ctx context.Context, number string) (bool, error) {
	var count int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE number = ?`, number).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction number: %w", err)
	}
	return count > 0, nil
}

// InsertTransaction writes the header and every line.
func (c *conn) InsertTransaction(ctx context.Context, t *pos.Transaction) error {
	_, err := c.exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Number, t.UserID, nullString(string(t.CustomerID)),
		money(t.Subtotal), money(t.Tax), money(t.Discount), money(t.Total),
		t.PaymentMethod, t.Status, money(t.RefundedAmount), t.RefundReason, t.CancelReason,
		t.PointsEarned, t.PointsRedeemed, t.Notes, t.ReceiptPrinted, nullTime(&t.Date),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return writeError("insert transaction", err)
	}

	for i, l := range t.Lines {
		_, err := c.exec(ctx, `
			INSERT INTO transaction_lines
			(id, transaction_id, line_no, product_id, product_name, product_cost,
			 quantity, unit_price, discount, total_price, refunded_quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, t.ID, i, l.ProductID, l.ProductName, money(l.ProductCost),
			l.Quantity, money(l.UnitPrice), money(l.Discount), money(l.TotalPrice), l.RefundedQuantity)
		if err != nil {
			return writeError("insert transaction line", err)
		}
	}
	return nil
}

func (c *conn) getTransaction(ctx context.Context, where string, arg any, lock bool) (*pos.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where
	if lock {
		query += c.forUpdate()
	}
	t, err := scanTransaction(c.queryRow(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", pos.ErrTransactionNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if t.Lines, err = c.lines(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *conn) GetTransaction(ctx context.Context, id pos.TransactionID) (*pos.Transaction, error) {
	return c.getTransaction(ctx, `id = ?`, id, false)
}

func (c *conn) LockTransaction(ctx context.Context, id pos.TransactionID) (*pos.Transaction, error) {
	return c.getTransaction(ctx, `id = ?`, id, true)
}

const lineColumns = `id, transaction_id, product_id, product_name, product_cost,
	quantity, unit_price, discount, total_price, refunded_quantity`

func scanLine(row rowScanner) (pos.Line, error) {
	var l pos.Line
	err := row.Scan(&l.ID, &l.TransactionID, &l.ProductID, &l.ProductName, &l.ProductCost,
		&l.Quantity, &l.UnitPrice, &l.Discount, &l.TotalPrice, &l.RefundedQuantity)
	return l, err
}

func (c *conn) lines(ctx context.Context, id pos.TransactionID) ([]pos.Line, error) {
	rows, err := c.query(ctx, `
		SELECT `+lineColumns+`
		FROM transaction_lines
		WHERE transaction_id = ?
		ORDER BY line_no ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction lines: %w", err)
	}
	defer rows.Close()

	var lines []pos.Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// SaveTransactionState persists the fields that change after creation.
func (c *conn) SaveTransactionState(ctx context.Context, t *pos.Transaction) error {
	res, err := c.exec(ctx, `
		UPDATE transactions
		SET status = ?, refunded_amount = ?, refund_reason = ?, cancel_reason = ?,
		    points_earned = ?, receipt_printed = ?, transaction_date = ?, updated_at = ?
		WHERE id = ?`,
		t.Status, money(t.RefundedAmount), t.RefundReason, t.CancelReason,
		t.PointsEarned, t.ReceiptPrinted, nullTime(&t.Date), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return writeError("save transaction", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrTransactionNotFound, t.ID)
	}
	return nil
}

func (c *conn) SaveLineRefund(ctx context.Context, id pos.LineID, refundedQuantity int) error {
	res, err := c.exec(ctx, `UPDATE transaction_lines SET refunded_quantity = ? WHERE id = ?`,
		refundedQuantity, id)
	if err != nil {
		return writeError("save line refund", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrLineNotFound, id)
	}
	return nil
}

// =============================================================================
// TRANSACTION QUERIES
// =============================================================================

// GetTransactionByNumber loads a transaction by its human-readable number.
func (s *Store) GetTransactionByNumber(ctx context.Context, number string) (*pos.Transaction, error) {
	return s.getTransaction(ctx, `number = ?`, number, false)
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
// From is inclusive, To is exclusive; both apply to created_at.
type TransactionFilter struct {
	Status        pos.Status
	PaymentMethod pos.PaymentMethod
	UserID        pos.UserID
	CustomerID    pos.CustomerID
	From          time.Time
	To            time.Time
	Limit         int
	Offset        int
}

// ListTransactions returns transaction headers, newest first. Lines are
// not loaded; use GetTransaction for the full sale.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]pos.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, f.Status)
	}
	if f.PaymentMethod != "" {
		where = append(where, `payment_method = ?`)
		args = append(args, f.PaymentMethod)
	}
	if f.UserID != "" {
		where = append(where, `user_id = ?`)
		args = append(args, f.UserID)
	}
	if f.CustomerID != "" {
		where = append(where, `customer_id = ?`)
		args = append(args, f.CustomerID)
	}
	if !f.From.IsZero() {
		where = append(where, `created_at >= ?`)
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, `created_at < ?`)
		args = append(args, formatTime(f.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + whereClause(where) +
		` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	return s.queryTransactions(ctx, query, args...)
}

func (c *conn) queryTransactions(ctx context.Context, query string, args ...any) ([]pos.Transaction, error) {
	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []pos.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}
