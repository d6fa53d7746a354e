// Package store provides in-memory pos.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps behind one store-wide lock.
// WithTx holds that lock for the whole unit of work, so units of work
// are serialized the same way SQLite serializes writers.
type Memory struct {
	mu    sync.Mutex
	state memoryState
}

type memoryState struct {
	products     map[pos.ProductID]pos.Product
	customers    map[pos.CustomerID]pos.Customer
	transactions map[pos.TransactionID]pos.Transaction
	numbers      map[string]pos.TransactionID
	loyalty      []pos.LoyaltyEntry
	loyaltyKeys  map[string]bool
	outbox       []pos.OutboxEvent
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		products:     make(map[pos.ProductID]pos.Product),
		customers:    make(map[pos.CustomerID]pos.Customer),
		transactions: make(map[pos.TransactionID]pos.Transaction),
		numbers:      make(map[string]pos.TransactionID),
		loyaltyKeys:  make(map[string]bool),
	}}
}

// =============================================================================
// SEEDING AND INSPECTION - Test helpers outside of any unit of work
// =============================================================================

func (m *Memory) PutProduct(p pos.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

func (m *Memory) PutCustomer(c pos.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.customers[c.ID] = c
}

func (m *Memory) LoyaltyEntries(id pos.CustomerID) []pos.LoyaltyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []pos.LoyaltyEntry
	for _, e := range m.state.loyalty {
		if e.CustomerID == id {
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) Outbox() []pos.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pos.OutboxEvent(nil), m.state.outbox...)
}

func (m *Memory) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.transactions)
}

// =============================================================================
// pos.Store - Each call is its own unit of work
// =============================================================================

func (m *Memory) locked(fn func(s *memoryState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&m.state)
}

func (m *Memory) GetProduct(ctx context.Context, id pos.ProductID) (p *pos.Product, err error) {
	err = m.locked(func(s *memoryState) error { p, err = s.GetProduct(ctx, id); return err })
	return p, err
}

func (m *Memory) LockProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return m.GetProduct(ctx, id)
}

func (m *Memory) DecrementStock(ctx context.Context, id pos.ProductID, quantity int) (ok bool, err error) {
	err = m.locked(func(s *memoryState) error { ok, err = s.DecrementStock(ctx, id, quantity); return err })
	return ok, err
}

func (m *Memory) IncrementStock(ctx context.Context, id pos.ProductID, quantity int) error {
	return m.locked(func(s *memoryState) error { return s.IncrementStock(ctx, id, quantity) })
}

func (m *Memory) SetStock(ctx context.Context, id pos.ProductID, stock int) error {
	return m.locked(func(s *memoryState) error { return s.SetStock(ctx, id, stock) })
}

func (m *Memory) GetCustomer(ctx context.Context, id pos.CustomerID) (c *pos.Customer, err error) {
	err = m.locked(func(s *memoryState) error { c, err = s.GetCustomer(ctx, id); return err })
	return c, err
}

func (m *Memory) LockCustomer(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return m.GetCustomer(ctx, id)
}

func (m *Memory) SaveLoyalty(ctx context.Context, c *pos.Customer) error {
	return m.locked(func(s *memoryState) error { return s.SaveLoyalty(ctx, c) })
}

func (m *Memory) AppendLoyaltyEntry(ctx context.Context, e pos.LoyaltyEntry) error {
	return m.locked(func(s *memoryState) error { return s.AppendLoyaltyEntry(ctx, e) })
}

func (m *Memory) TransactionNumberExists(ctx context.Context, number string) (ok bool, err error) {
	err = m.locked(func(s *memoryState) error { ok, err = s.TransactionNumberExists(ctx, number); return err })
	return ok, err
}

func (m *Memory) InsertTransaction(ctx context.Context, t *pos.Transaction) error {
	return m.locked(func(s *memoryState) error { return s.InsertTransaction(ctx, t) })
}

func (m *Memory) GetTransaction(ctx context.Context, id pos.TransactionID) (t *pos.Transaction, err error) {
	err = m.locked(func(s *memoryState) error { t, err = s.GetTransaction(ctx, id); return err })
	return t, err
}

func (m *Memory) LockTransaction(ctx context.Context, id pos.TransactionID) (*pos.Transaction, error) {
	return m.GetTransaction(ctx, id)
}

func (m *Memory) SaveTransactionState(ctx context.Context, t *pos.Transaction) error {
	return m.locked(func(s *memoryState) error { return s.SaveTransactionState(ctx, t) })
}

func (m *Memory) SaveLineRefund(ctx context.Context, id pos.LineID, refundedQuantity int) error {
	return m.locked(func(s *memoryState) error { return s.SaveLineRefund(ctx, id, refundedQuantity) })
}

func (m *Memory) AppendOutbox(ctx context.Context, e pos.OutboxEvent) error {
	return m.locked(func(s *memoryState) error { return s.AppendOutbox(ctx, e) })
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	if err := fn(&m.state); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (s *memoryState) clone() memoryState {
	c := memoryState{
		products:     make(map[pos.ProductID]pos.Product, len(s.products)),
		customers:    make(map[pos.CustomerID]pos.Customer, len(s.customers)),
		transactions: make(map[pos.TransactionID]pos.Transaction, len(s.transactions)),
		numbers:      make(map[string]pos.TransactionID, len(s.numbers)),
		loyalty:      append([]pos.LoyaltyEntry(nil), s.loyalty...),
		loyaltyKeys:  make(map[string]bool, len(s.loyaltyKeys)),
		outbox:       append([]pos.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = copyTransaction(v)
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	for k, v := range s.loyaltyKeys {
		c.loyaltyKeys[k] = v
	}
	return c
}

// =============================================================================
// memoryState implements pos.Store without locking; callers hold Memory.mu
// =============================================================================

func (s *memoryState) GetProduct(_ context.Context, id pos.ProductID) (*pos.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	return &p, nil
}

func (s *memoryState) LockProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *memoryState) DecrementStock(_ context.Context, id pos.ProductID, quantity int) (bool, error) {
	p, ok := s.products[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	if p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return true, nil
}

func (s *memoryState) IncrementStock(_ context.Context, id pos.ProductID, quantity int) error {
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *memoryState) SetStock(_ context.Context, id pos.ProductID, stock int) error {
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	if stock < 0 {
		return fmt.Errorf("stock cannot be negative: %d", stock)
	}
	p.Stock = stock
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *memoryState) GetCustomer(_ context.Context, id pos.CustomerID) (*pos.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pos.ErrCustomerNotFound, id)
	}
	return &c, nil
}

func (s *memoryState) LockCustomer(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return s.GetCustomer(ctx, id)
}

func (s *memoryState) SaveLoyalty(_ context.Context, c *pos.Customer) error {
	existing, ok := s.customers[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", pos.ErrCustomerNotFound, c.ID)
	}
	existing.LoyaltyPoints = c.LoyaltyPoints
	existing.TotalSpent = c.TotalSpent
	existing.Tier = c.Tier
	existing.LastVisit = c.LastVisit
	existing.UpdatedAt = c.UpdatedAt
	s.customers[c.ID] = existing
	return nil
}

func (s *memoryState) AppendLoyaltyEntry(_ context.Context, e pos.LoyaltyEntry) error {
	if s.loyaltyKeys[e.IdempotencyKey] {
		return pos.ErrDuplicateIdempotencyKey
	}
	s.loyaltyKeys[e.IdempotencyKey] = true
	s.loyalty = append(s.loyalty, e)
	return nil
}

func (s *memoryState) TransactionNumberExists(_ context.Context, number string) (bool, error) {
	_, ok := s.numbers[number]
	return ok, nil
}

func (s *memoryState) InsertTransaction(_ context.Context, t *pos.Transaction) error {
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("%w: transaction %s", pos.ErrDuplicate, t.ID)
	}
	if _, ok := s.numbers[t.Number]; ok {
		return fmt.Errorf("%w: transaction number %s", pos.ErrDuplicate, t.Number)
	}
	s.transactions[t.ID] = copyTransaction(*t)
	s.numbers[t.Number] = t.ID
	return nil
}

func (s *memoryState) GetTransaction(_ context.Context, id pos.TransactionID) (*pos.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pos.ErrTransactionNotFound, id)
	}
	c := copyTransaction(t)
	return &c, nil
}

func (s *memoryState) LockTransaction(ctx context.Context, id pos.TransactionID) (*pos.Transaction, error) {
	return s.GetTransaction(ctx, id)
}

func (s *memoryState) SaveTransactionState(_ context.Context, t *pos.Transaction) error {
	existing, ok := s.transactions[t.ID]
	if !ok {
		return fmt.Errorf("%w: %s", pos.ErrTransactionNotFound, t.ID)
	}
	existing.Status = t.Status
	existing.RefundedAmount = t.RefundedAmount
	existing.RefundReason = t.RefundReason
	existing.CancelReason = t.CancelReason
	existing.PointsEarned = t.PointsEarned
	existing.ReceiptPrinted = t.ReceiptPrinted
	existing.Date = t.Date
	existing.UpdatedAt = t.UpdatedAt
	s.transactions[t.ID] = existing
	return nil
}

func (s *memoryState) SaveLineRefund(_ context.Context, id pos.LineID, refundedQuantity int) error {
	for tid, t := range s.transactions {
		for i := range t.Lines {
			if t.Lines[i].ID == id {
				t.Lines[i].RefundedQuantity = refundedQuantity
				s.transactions[tid] = t
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", pos.ErrLineNotFound, id)
}

func (s *memoryState) AppendOutbox(_ context.Context, e pos.OutboxEvent) error {
	s.outbox = append(s.outbox, e)
	return nil
}

func copyTransaction(t pos.Transaction) pos.Transaction {
	t.Lines = append([]pos.Line(nil), t.Lines...)
	return t
}
