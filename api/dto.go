/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in package pos from the external API contract.

NAMING CONVENTION:
  - *DTO:     Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts go out as strings with two decimals ("22.68"). Requests accept
  either a JSON number or a string; both decode into decimal.Decimal.

VALIDATION:
  Shape checks live on the domain types (Product.Validate, SaleRequest.Validate).
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
)

func moneyString(d decimal.Decimal) string {
	return d.StringFixed(pos.MoneyPlaces)
}

// =============================================================================
// USER & CATEGORY DTOs
// =============================================================================

type UserDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserDTO(u pos.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

type CreateUserRequest struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type CategoryDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCategoryDTO(c pos.Category) CategoryDTO {
	return CategoryDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Color:       c.Color,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Active      *bool  `json:"isActive"`
}

// =============================================================================
// PRODUCT DTOs
// =============================================================================

type ProductDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SKU         string    `json:"sku,omitempty"`
	Barcode     string    `json:"barcode,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Price       string    `json:"price"`
	Cost        string    `json:"cost"`
	Stock       int       `json:"stock"`
	MinStock    int       `json:"minStock"`
	Active      bool      `json:"isActive"`
	LowStock    bool      `json:"isLowStock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProductDTO(p pos.Product) ProductDTO {
	return ProductDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		CategoryID:  string(p.CategoryID),
		Price:       moneyString(p.Price),
		Cost:        moneyString(p.Cost),
		Stock:       p.Stock,
		MinStock:    p.MinStock,
		Active:      p.Active,
		LowStock:    p.IsLowStock(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// ProductRequest is the body of create and update. On update, Stock is
// ignored; use PUT /products/{id}/stock.
type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	CategoryID  string          `json:"categoryId"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int             `json:"stock"`
	MinStock    *int            `json:"minStock"`
	Active      *bool           `json:"isActive"`
}

type StockRequest struct {
	Operation string `json:"operation"`
	Quantity  int    `json:"quantity"`
}

// =============================================================================
// CUSTOMER DTOs
// =============================================================================

type CustomerDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	LoyaltyPoints int64      `json:"loyaltyPoints"`
	TotalSpent    string     `json:"totalSpent"`
	Tier          string     `json:"membershipTier"`
	Active        bool       `json:"isActive"`
	LastVisit     *time.Time `json:"lastVisit,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toCustomerDTO(c pos.Customer) CustomerDTO {
	return CustomerDTO{
		ID:            string(c.ID),
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		LoyaltyPoints: c.LoyaltyPoints,
		TotalSpent:    moneyString(c.TotalSpent),
		Tier:          string(c.Tier),
		Active:        c.Active,
		LastVisit:     c.LastVisit,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type CustomerRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Active *bool  `json:"isActive"`
}

type LoyaltyEntryDTO struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Points      int64     `json:"points"`
	Balance     int64     `json:"balance"`
	ReferenceID string    `json:"referenceId,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LoyaltyDTO is a customer's balance plus recent ledger entries.
type LoyaltyDTO struct {
	CustomerID    string            `json:"customerId"`
	LoyaltyPoints int64             `json:"loyaltyPoints"`
	Tier          string            `json:"membershipTier"`
	PointValue    string            `json:"pointValue"`
	Entries       []LoyaltyEntryDTO `json:"entries"`
}

type PointsRequest struct {
	Points         int64  `json:"points"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// =============================================================================
// TRANSACTION DTOs
// =============================================================================

type LineDTO struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	ProductName      string `json:"productName"`
	Quantity         int    `json:"quantity"`
	UnitPrice        string `json:"unitPrice"`
	Discount         string `json:"discountAmount"`
	TotalPrice       string `json:"totalPrice"`
	RefundedQuantity int    `json:"refundedQuantity"`
}

type TransactionDTO struct {
	ID             string     `json:"id"`
	Number         string     `json:"transactionNumber"`
	UserID         string     `json:"userId"`
	CustomerID     string     `json:"customerId,omitempty"`
	Subtotal       string     `json:"subtotal"`
	Tax            string     `json:"taxAmount"`
	Discount       string     `json:"discountAmount"`
	Total          string     `json:"totalAmount"`
	PaymentMethod  string     `json:"paymentMethod"`
	Status         string     `json:"status"`
	RefundedAmount string     `json:"refundedAmount"`
	RefundReason   string     `json:"refundReason,omitempty"`
	CancelReason   string     `json:"cancelReason,omitempty"`
	PointsEarned   int64      `json:"pointsEarned"`
	PointsRedeemed int64      `json:"pointsRedeemed"`
	Notes          string     `json:"notes,omitempty"`
	ReceiptPrinted bool       `json:"receiptPrinted"`
	Date           *time.Time `json:"transactionDate,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Items          []LineDTO  `json:"items,omitempty"`
}

func toTransactionDTO(t pos.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:             string(t.ID),
		Number:         t.Number,
		UserID:         string(t.UserID),
		CustomerID:     string(t.CustomerID),
		Subtotal:       moneyString(t.Subtotal),
		Tax:            moneyString(t.Tax),
		Discount:       moneyString(t.Discount),
		Total:          moneyString(t.Total),
		PaymentMethod:  string(t.PaymentMethod),
		Status:         string(t.Status),
		RefundedAmount: moneyString(t.RefundedAmount),
		RefundReason:   t.RefundReason,
		CancelReason:   t.CancelReason,
		PointsEarned:   t.PointsEarned,
		PointsRedeemed: t.PointsRedeemed,
		Notes:          t.Notes,
		ReceiptPrinted: t.ReceiptPrinted,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if !t.Date.IsZero() {
		d := t.Date
		dto.Date = &d
	}
	for _, l := range t.Lines {
		dto.Items = append(dto.Items, LineDTO{
			ID:               string(l.ID),
			ProductID:        string(l.ProductID),
			ProductName:      l.ProductName,
			Quantity:         l.Quantity,
			UnitPrice:        moneyString(l.UnitPrice),
			Discount:         moneyString(l.Discount),
			TotalPrice:       moneyString(l.TotalPrice),
			RefundedQuantity: l.RefundedQuantity,
		})
	}
	return dto
}

type SaleItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateSaleRequest is the body of POST /transactions. The cashier is
// always the authenticated caller.
type CreateSaleRequest struct {
	CustomerID     string            `json:"customerId"`
	Items          []SaleItemRequest `json:"items"`
	PaymentMethod  string            `json:"paymentMethod"`
	Discount       decimal.Decimal   `json:"discountAmount"`
	PointsToRedeem int64             `json:"pointsToRedeem"`
	Notes          string            `json:"notes"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type RefundItemRequest struct {
	LineID   string `json:"lineId"`
	Quantity int    `json:"quantity"`
}

type RefundRequest struct {
	Amount  decimal.Decimal     `json:"amount"`
	Reason  string              `json:"reason"`
	Items   []RefundItemRequest `json:"items"`
	Restock bool                `json:"restock"`
}

// =============================================================================
// LIST RESPONSES
// =============================================================================

// Page wraps list responses with the pagination that produced them.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type DeleteResponse struct {
	ID   string `json:"id"`
	Soft bool   `json:"deactivated"`
}
