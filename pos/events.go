package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleCompleted is the payload of EventSaleCompleted.
type SaleCompleted struct {
	TransactionID  TransactionID   `json:"transactionId"`
	Number         string          `json:"transactionNumber"`
	UserID         UserID          `json:"userId"`
	CustomerID     CustomerID      `json:"customerId,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"taxAmount"`
	Discount       decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"totalAmount"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	PointsEarned   int64           `json:"pointsEarned"`
	PointsRedeemed int64           `json:"pointsRedeemed"`
	Items          []SaleEventItem `json:"items"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

type SaleEventItem struct {
	ProductID ProductID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Refunded is the payload of EventRefunded.
type Refunded struct {
	TransactionID  TransactionID   `json:"transactionId"`
	Amount         decimal.Decimal `json:"amount"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	Reason         string          `json:"reason"`
	Status         Status          `json:"status"`
	Restocked      bool            `json:"restocked"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// StatusChanged is the payload of EventStatusChanged.
type StatusChanged struct {
	TransactionID TransactionID `json:"transactionId"`
	From          Status        `json:"from"`
	To            Status        `json:"to"`
	Reason        string        `json:"reason,omitempty"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

func saleCompleted(t *Transaction) SaleCompleted {
	items := make([]SaleEventItem, len(t.Lines))
	for i, l := range t.Lines {
		items[i] = SaleEventItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return SaleCompleted{
		TransactionID:  t.ID,
		Number:         t.Number,
		UserID:         t.UserID,
		CustomerID:     t.CustomerID,
		Subtotal:       t.Subtotal,
		Tax:            t.Tax,
		Discount:       t.Discount,
		Total:          t.Total,
		PaymentMethod:  t.PaymentMethod,
		PointsEarned:   t.PointsEarned,
		PointsRedeemed: t.PointsRedeemed,
		Items:          items,
		OccurredAt:     t.Date,
	}
}

// publish serializes payload and appends it to the outbox in the caller's unit of work.
func (e *Engine) publish(ctx context.Context, s Store, eventType string, aggregate TransactionID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	return s.AppendOutbox(ctx, OutboxEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: string(aggregate),
		Payload:     data,
		Status:      OutboxPending,
		CreatedAt:   e.clock.Now(),
	})
}
