/*
store.go - Persistence interface for the sale engine

PURPOSE:
  Defines the interface between the sale workflow and the database.
  Everything the engine touches inside a unit of work goes through Store,
  so the same workflow runs on SQLite, PostgreSQL and memory.

KEY INTERFACES:
  Store:   Row-level reads, locks and writes used by the engine
  TxStore: Store plus WithTx, the unit-of-work boundary

LOCKING CONTRACT:
  Lock* methods read a row and hold it for the rest of the unit of work.
  PostgreSQL issues SELECT ... FOR UPDATE. SQLite already holds the
  database write lock (BEGIN IMMEDIATE) so Lock* is a plain read there.

STOCK CONTRACT:
  DecrementStock is a compare-and-set. It reports false, and changes
  nothing, when stock is below the requested quantity. Stock can never
  go negative through this interface.

IDEMPOTENCY:
  AppendLoyaltyEntry rejects a repeated idempotency key with
  ErrDuplicateIdempotencyKey. Sale-driven keys are derived from the
  transaction ID, so one sale can never earn or redeem twice.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite (mattn/go-sqlite3) and PostgreSQL (pgx)
  - pos/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only caller of WithTx for sales
  - loyalty.go: LoyaltyEntry producers
*/
package pos

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// STORE - Row primitives used inside a unit of work
// =============================================================================

type Store interface {
	// Products
	GetProduct(ctx context.Context, id ProductID) (*Product, error)
	LockProduct(ctx context.Context, id ProductID) (*Product, error)
	// DecrementStock subtracts quantity only while stock >= quantity.
	DecrementStock(ctx context.Context, id ProductID, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id ProductID, quantity int) error
	SetStock(ctx context.Context, id ProductID, stock int) error

	// Customers
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	LockCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	// SaveLoyalty persists points, total spent, tier and last visit.
	SaveLoyalty(ctx context.Context, c *Customer) error
	AppendLoyaltyEntry(ctx context.Context, e LoyaltyEntry) error

	// Transactions
	TransactionNumberExists(ctx context.Context, number string) (bool, error)
	// InsertTransaction writes the header and all of its lines.
	InsertTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	LockTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
	// SaveTransactionState persists status, totals touched by refunds,
	// points earned, receipt flag and dates.
	SaveTransactionState(ctx context.Context, t *Transaction) error
	SaveLineRefund(ctx context.Context, id LineID, refundedQuantity int) error

	// Outbox
	AppendOutbox(ctx context.Context, e OutboxEvent) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// LOYALTY ENTRIES - Append-only points history
// =============================================================================

type LoyaltyKind string

const (
	LoyaltyEarn   LoyaltyKind = "earn"
	LoyaltyRedeem LoyaltyKind = "redeem"
	LoyaltyGrant  LoyaltyKind = "grant"
)

// LoyaltyEntry records one change to a customer's points balance.
// Points is signed: negative for redemptions.
type LoyaltyEntry struct {
	ID             string
	CustomerID     CustomerID
	Kind           LoyaltyKind
	Points         int64
	Balance        int64
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// EarnKey and RedeemKey derive the idempotency keys of sale-driven entries.
func EarnKey(id TransactionID) string   { return string(id) + ":earn" }
func RedeemKey(id TransactionID) string { return string(id) + ":redeem" }

// =============================================================================
// OUTBOX - Events committed with the unit of work
// =============================================================================

const (
	EventSaleCompleted = "sale.completed"
	EventRefunded      = "transaction.refunded"
	EventStatusChanged = "transaction.status_changed"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

type OutboxEvent struct {
	ID          string
	Type        string
	AggregateID string
	Payload     json.RawMessage
	Status      OutboxStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}
