/*
Package pos provides the point-of-sale sale engine.

PURPOSE:
  This package contains the domain types and the transactional workflow
  that turns a cart into a committed sale. Stock reservation, pricing,
  loyalty accrual/redemption and persistence all happen inside ONE unit
  of work supplied by the Store. Either everything commits or nothing does.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product:     Sellable item with price, cost and stock count
  - Customer:    Optional sale participant with loyalty balance and tier
  - Transaction: A sale header (totals, status, refunds)
  - Line:        One product-quantity entry with a price snapshot

DESIGN PRINCIPLES:
  1. Precision: Money is decimal.Decimal, never float64
  2. Snapshots: Lines copy product name/cost/price at sale time
  3. Derived values stay derived: low stock and tier are computed
  4. Type Safety: Distinct ID types for products, customers, transactions

SEE ALSO:
  - engine.go:  Sale orchestrator (the transaction boundary)
  - stock.go:   Stock reservation unit
  - pricing.go: Totals calculator
  - loyalty.go: Loyalty ledger and membership tiers
  - status.go:  Transaction status state machine
  - store.go:   Persistence interfaces
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProductID string
type CustomerID string
type TransactionID string
type LineID string
type UserID string
type CategoryID string

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a sellable catalog item. Stock is never negative.
type Product struct {
	ID          ProductID
	Name        string
	Description string
	SKU         string
	Barcode     string
	CategoryID  CategoryID
	Price       decimal.Decimal
	Cost        decimal.Decimal
	Stock       int
	MinStock    int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultMinStock is the low-stock threshold for products created without one.
const DefaultMinStock = 5

// IsLowStock reports whether stock has reached the minimum threshold.
// Always computed from Stock and MinStock, never stored.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is an optional sale participant. Tier is always a function of
// TotalSpent (see Thresholds.TierFor).
type Customer struct {
	ID            CustomerID
	Name          string
	Email         string
	Phone         string
	LoyaltyPoints int64
	TotalSpent    decimal.Decimal
	Tier          Tier
	Active        bool
	LastVisit     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tier is a membership level, ordered bronze < silver < gold < platinum.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Rank returns the tier's position in the ordering, or -1 if unknown.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 0
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	}
	return -1
}

// =============================================================================
// TRANSACTION
// =============================================================================

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentDigital PaymentMethod = "digital"
	PaymentPoints  PaymentMethod = "points"
	PaymentMixed   PaymentMethod = "mixed"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentDigital, PaymentPoints, PaymentMixed:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Transaction is a sale header. It exclusively owns its Lines.
//
// INVARIANTS:
//   - Total == Subtotal + Tax - Discount - points value, Total >= 0
//   - RefundedAmount <= Total
//   - Lines are immutable after creation except RefundedQuantity
type Transaction struct {
	ID             TransactionID
	Number         string
	UserID         UserID
	CustomerID     CustomerID // empty for anonymous sales
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PaymentMethod  PaymentMethod
	Status         Status
	RefundedAmount decimal.Decimal
	RefundReason   string
	CancelReason   string
	PointsEarned   int64
	PointsRedeemed int64
	Notes          string
	ReceiptPrinted bool
	Date           time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Lines          []Line
}

// HasCustomer reports whether the sale is attached to a customer.
func (t *Transaction) HasCustomer() bool {
	return t.CustomerID != ""
}

// Line returns the line with the given ID.
func (t *Transaction) Line(id LineID) (*Line, bool) {
	for i := range t.Lines {
		if t.Lines[i].ID == id {
			return &t.Lines[i], true
		}
	}
	return nil, false
}

// ItemCount returns the total quantity across all lines.
func (t *Transaction) ItemCount() int {
	n := 0
	for _, l := range t.Lines {
		n += l.Quantity
	}
	return n
}

// Line is one product-quantity entry with a point-in-time product snapshot.
type Line struct {
	ID               LineID
	TransactionID    TransactionID
	ProductID        ProductID
	ProductName      string
	ProductCost      decimal.Decimal
	Quantity         int
	UnitPrice        decimal.Decimal
	Discount         decimal.Decimal
	TotalPrice       decimal.Decimal
	RefundedQuantity int
}

// LineTotal computes quantity * unitPrice - discount.
func LineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount))
}

// Profit returns the line revenue minus the snapshot cost of goods.
func (l Line) Profit() decimal.Decimal {
	return l.TotalPrice.Sub(l.ProductCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Returnable is the quantity that has not been refunded yet.
func (l Line) Returnable() int {
	return l.Quantity - l.RefundedQuantity
}
