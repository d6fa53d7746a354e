package pos

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK - Reservation within a unit of work
// =============================================================================

// Reservation is the product snapshot taken when stock is decremented.
type Reservation struct {
	ProductID ProductID
	Name      string
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
	Quantity  int
}

// Stock validates and mutates product stock through a Store.
// It holds no state; the Store's unit of work provides atomicity.
type Stock struct{}

// Reserve locks the product and decrements its stock by quantity.
// Never clamps: a shortage is an *InsufficientStockError.
func (Stock) Reserve(ctx context.Context, s Store, id ProductID, quantity int) (Reservation, error) {
	if quantity < 1 {
		return Reservation{}, invalid("quantity", "must be >= 1")
	}
	p, err := s.LockProduct(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if !p.Active {
		return Reservation{}, fmt.Errorf("%w: %s", ErrProductInactive, p.Name)
	}

	shortage := &InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Available:   p.Stock,
		Requested:   quantity,
	}
	if p.Stock < quantity {
		return Reservation{}, shortage
	}
	ok, err := s.DecrementStock(ctx, id, quantity)
	if err != nil {
		return Reservation{}, fmt.Errorf("decrement stock: %w", err)
	}
	if !ok {
		return Reservation{}, shortage
	}

	return Reservation{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		UnitCost:  p.Cost,
		Quantity:  quantity,
	}, nil
}

// Release returns quantity units to stock.
func (Stock) Release(ctx context.Context, s Store, id ProductID, quantity int) error {
	if quantity < 1 {
		return invalid("quantity", "must be >= 1")
	}
	if _, err := s.LockProduct(ctx, id); err != nil {
		return err
	}
	return s.IncrementStock(ctx, id, quantity)
}

// StockOp is a manual stock adjustment.
type StockOp string

const (
	StockSet      StockOp = "set"
	StockAdd      StockOp = "add"
	StockSubtract StockOp = "subtract"
)

// Adjust applies a manual adjustment. Subtract clamps at zero.
func (Stock) Adjust(ctx context.Context, s Store, id ProductID, op StockOp, quantity int) (*Product, error) {
	if quantity < 0 {
		return nil, invalid("quantity", "must be >= 0")
	}
	p, err := s.LockProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	switch op {
	case StockSet:
		p.Stock = quantity
	case StockAdd:
		p.Stock += quantity
	case StockSubtract:
		p.Stock = max(0, p.Stock-quantity)
	default:
		return nil, invalid("operation", "must be one of set, add, subtract")
	}

	if err := s.SetStock(ctx, id, p.Stock); err != nil {
		return nil, fmt.Errorf("set stock: %w", err)
	}
	return p, nil
}
