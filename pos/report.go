package pos

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORTS - Aggregates over committed transactions
// =============================================================================

// SalesSummary aggregates completed sales in [From, To).
type SalesSummary struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Transactions int             `json:"totalTransactions"`
	Sales        decimal.Decimal `json:"totalSales"`
	Tax          decimal.Decimal `json:"totalTax"`
	Discount     decimal.Decimal `json:"totalDiscount"`
	Refunded     decimal.Decimal `json:"totalRefunded"`
	Average      decimal.Decimal `json:"averageTransaction"`
}

// ProductSales is one row of the top-sellers report.
type ProductSales struct {
	ProductID    ProductID       `json:"productId"`
	ProductName  string          `json:"productName"`
	Quantity     int             `json:"totalQuantity"`
	Revenue      decimal.Decimal `json:"totalRevenue"`
	Transactions int             `json:"transactionCount"`
}

// PaymentStats counts completed sales for one payment method.
type PaymentStats struct {
	Method PaymentMethod   `json:"paymentMethod"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// TransactionStats breaks transactions down by status and payment method.
// ByStatus covers every status; the other fields cover completed sales only.
type TransactionStats struct {
	Transactions int             `json:"totalTransactions"`
	Sales        decimal.Decimal `json:"totalSales"`
	Average      decimal.Decimal `json:"averageTransaction"`
	ByStatus     map[Status]int  `json:"byStatus"`
	ByPayment    []PaymentStats  `json:"byPaymentMethod"`
}

// Summarize aggregates the completed transactions among txns.
func Summarize(from, to time.Time, txns []Transaction) SalesSummary {
	s := SalesSummary{
		From:     from,
		To:       to,
		Sales:    decimal.Zero,
		Tax:      decimal.Zero,
		Discount: decimal.Zero,
		Refunded: decimal.Zero,
	}
	for _, t := range txns {
		if t.Status != StatusCompleted {
			continue
		}
		s.Transactions++
		s.Sales = s.Sales.Add(t.Total)
		s.Tax = s.Tax.Add(t.Tax)
		s.Discount = s.Discount.Add(t.Discount)
		s.Refunded = s.Refunded.Add(t.RefundedAmount)
	}
	s.Average = average(s.Sales, s.Transactions)
	return s
}

// TopProducts ranks products by quantity sold in completed transactions.
// Ties are broken by revenue, then by product ID. limit <= 0 means all.
func TopProducts(txns []Transaction, limit int) []ProductSales {
	byProduct := make(map[ProductID]*ProductSales)
	for _, t := range txns {
		if t.Status != StatusCompleted {
			continue
		}
		for _, l := range t.Lines {
			ps, ok := byProduct[l.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: l.ProductID, ProductName: l.ProductName, Revenue: decimal.Zero}
				byProduct[l.ProductID] = ps
			}
			ps.Quantity += l.Quantity
			ps.Revenue = ps.Revenue.Add(l.TotalPrice)
			ps.Transactions++
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, ps := range byProduct {
		out = append(out, *ps)
	}
	slices.SortFunc(out, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Stats computes status and payment-method breakdowns.
func Stats(txns []Transaction) TransactionStats {
	s := TransactionStats{
		Sales:    decimal.Zero,
		ByStatus: make(map[Status]int),
	}
	byPayment := make(map[PaymentMethod]*PaymentStats)
	for _, t := range txns {
		s.ByStatus[t.Status]++
		if t.Status != StatusCompleted {
			continue
		}
		s.Transactions++
		s.Sales = s.Sales.Add(t.Total)

		ps, ok := byPayment[t.PaymentMethod]
		if !ok {
			ps = &PaymentStats{Method: t.PaymentMethod, Total: decimal.Zero}
			byPayment[t.PaymentMethod] = ps
		}
		ps.Count++
		ps.Total = ps.Total.Add(t.Total)
	}
	s.Average = average(s.Sales, s.Transactions)

	s.ByPayment = make([]PaymentStats, 0, len(byPayment))
	for _, ps := range byPayment {
		s.ByPayment = append(s.ByPayment, *ps)
	}
	slices.SortFunc(s.ByPayment, func(a, b PaymentStats) int {
		return cmp.Compare(a.Method, b.Method)
	})
	return s
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return RoundMoney(total.Div(decimal.NewFromInt(int64(n))))
}

// DayBounds returns [midnight, next midnight) in UTC for the day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
