package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// REPORTS
// =============================================================================
//
// Reports load the transactions of a range and aggregate them in Go with
// decimal arithmetic (see pos/report.go). Money is stored as TEXT, so SQL
// SUM() would go through floating point on SQLite.

// DailySales summarizes completed sales for the UTC day containing day.
func (s *Store) DailySales(ctx context.Context, day time.Time) (pos.SalesSummary, error) {
	from, to := pos.DayBounds(day)
	txns, err := s.transactionsBetween(ctx, from, to, false)
	if err != nil {
		return pos.SalesSummary{}, err
	}
	return pos.Summarize(from, to, txns), nil
}

// TopProducts ranks products sold in [from, to) by quantity.
func (s *Store) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]pos.ProductSales, error) {
	txns, err := s.transactionsBetween(ctx, from, to, true)
	if err != nil {
		return nil, err
	}
	return pos.TopProducts(txns, limit), nil
}

// TransactionStats breaks down transactions created in [from, to).
func (s *Store) TransactionStats(ctx context.Context, from, to time.Time) (pos.TransactionStats, error) {
	txns, err := s.transactionsBetween(ctx, from, to, false)
	if err != nil {
		return pos.TransactionStats{}, err
	}
	return pos.Stats(txns), nil
}

// transactionsBetween loads every transaction created in [from, to),
// optionally with lines (fetched in one query).
func (s *Store) transactionsBetween(ctx context.Context, from, to time.Time, withLines bool) ([]pos.Transaction, error) {
	txns, err := s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at ASC, id ASC`,
		formatTime(from), formatTime(to))
	if err != nil || !withLines || len(txns) == 0 {
		return txns, err
	}

	rows, err := s.query(ctx, `
		SELECT l.id, l.transaction_id, l.product_id, l.product_name, l.product_cost,
		       l.quantity, l.unit_price, l.discount, l.total_price, l.refunded_quantity
		FROM transaction_lines l
		JOIN transactions t ON t.id = l.transaction_id
		WHERE t.created_at >= ? AND t.created_at < ?
		ORDER BY l.transaction_id ASC, l.line_no ASC`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query report lines: %w", err)
	}
	defer rows.Close()

	index := make(map[pos.TransactionID]int, len(txns))
	for i, t := range txns {
		index[t.ID] = i
	}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report line: %w", err)
		}
		if i, ok := index[l.TransactionID]; ok {
			txns[i].Lines = append(txns[i].Lines, l)
		}
	}
	return txns, rows.Err()
}
