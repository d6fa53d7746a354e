package pos_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/pos/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	mem    *store.Memory
	engine *pos.Engine
	clock  *pos.MockClock
}

func newFixture(t *testing.T, opts ...pos.Option) *fixture {
	t.Helper()
	mem := store.NewMemory()
	clk := pos.NewMockClock(now)
	engine := pos.NewEngine(mem, append([]pos.Option{pos.WithClock(clk)}, opts...)...)
	return &fixture{mem: mem, engine: engine, clock: clk}
}

func (f *fixture) product(id pos.ProductID, price string, stock int) {
	f.mem.PutProduct(pos.Product{
		ID:       id,
		Name:     "Product " + string(id),
		SKU:      "SKU-" + string(id),
		Price:    dec(price),
		Cost:     dec(price).Div(decimal.NewFromInt(2)),
		Stock:    stock,
		MinStock: pos.DefaultMinStock,
		Active:   true,
	})
}

func (f *fixture) customer(id pos.CustomerID, points int64, spent string) {
	f.mem.PutCustomer(pos.Customer{
		ID:            id,
		Name:          "Customer " + string(id),
		LoyaltyPoints: points,
		TotalSpent:    dec(spent),
		Tier:          pos.DefaultThresholds().TierFor(dec(spent)),
		Active:        true,
	})
}

func (f *fixture) stock(t *testing.T, id pos.ProductID) int {
	t.Helper()
	p, err := f.mem.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func sale(items ...pos.SaleItem) pos.SaleRequest {
	return pos.SaleRequest{UserID: "cashier-1", Items: items}
}

func item(id pos.ProductID, qty int) pos.SaleItem {
	return pos.SaleItem{ProductID: id, Quantity: qty}
}

// =============================================================================
// CREATE SALE - Happy paths
// =============================================================================

func TestCreateSale_LoyaltyScenario(t *testing.T) {
	// GIVEN: Customer with 500 points and 900 spent, product at $50 with stock 10
	// WHEN: Buying 2 units and redeeming 100 points at 8% tax
	// THEN: subtotal 100, tax 8, total 8, stock 8, points 408, spent 908, bronze

	f := newFixture(t)
	f.product("p-50", "50", 10)
	f.customer("c-1", 500, "900")
	ctx := context.Background()

	req := sale(item("p-50", 2))
	req.CustomerID = "c-1"
	req.PointsToRedeem = 100

	txn, err := f.engine.CreateSale(ctx, req)
	require.NoError(t, err)

	assertMoney(t, "100", txn.Subtotal)
	assertMoney(t, "8", txn.Tax)
	assertMoney(t, "0", txn.Discount)
	assertMoney(t, "8", txn.Total)
	assert.Equal(t, pos.StatusCompleted, txn.Status)
	assert.Equal(t, pos.PaymentCash, txn.PaymentMethod)
	assert.Equal(t, int64(100), txn.PointsRedeemed)
	assert.Equal(t, int64(8), txn.PointsEarned)
	assert.Equal(t, now, txn.Date)
	assert.Regexp(t, `^TXN-20250310-143000-\d{4}$`, txn.Number)

	assert.Equal(t, 8, f.stock(t, "p-50"))

	c, err := f.mem.GetCustomer(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(408), c.LoyaltyPoints)
	assertMoney(t, "908", c.TotalSpent)
	assert.Equal(t, pos.TierBronze, c.Tier)

	entries := f.mem.LoyaltyEntries("c-1")
	require.Len(t, entries, 2)
	assert.Equal(t, pos.LoyaltyRedeem, entries[0].Kind)
	assert.Equal(t, int64(-100), entries[0].Points)
	assert.Equal(t, pos.RedeemKey(txn.ID), entries[0].IdempotencyKey)
	assert.Equal(t, pos.LoyaltyEarn, entries[1].Kind)
	assert.Equal(t, int64(408), entries[1].Balance)
}

func TestCreateSale_LinesReconcileWithSubtotal(t *testing.T) {
	f := newFixture(t)
	f.product("p-a", "9.99", 20)
	f.product("p-b", "3.35", 20)

	txn, err := f.engine.CreateSale(context.Background(), sale(item("p-a", 3), item("p-b", 7)))
	require.NoError(t, err)

	require.Len(t, txn.Lines, 2)
	sum := decimal.Zero
	for _, l := range txn.Lines {
		sum = sum.Add(l.TotalPrice)
		assert.Equal(t, txn.ID, l.TransactionID)
		assert.True(t, l.Discount.IsZero())
	}
	assert.True(t, sum.Equal(txn.Subtotal), "lines %s != subtotal %s", sum, txn.Subtotal)
	assert.True(t, txn.Total.Equal(txn.Subtotal.Add(txn.Tax).Sub(txn.Discount)))
	assert.Equal(t, "Product p-a", txn.Lines[0].ProductName)
	assertMoney(t, "4.995", txn.Lines[0].ProductCost)
	assert.Equal(t, 10, txn.ItemCount())
}

func TestCreateSale_AnonymousEarnsNothing(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "10", 5)

	txn, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 1)))
	require.NoError(t, err)

	assert.False(t, txn.HasCustomer())
	assert.Zero(t, txn.PointsEarned)
}

func TestCreateSale_WritesOutboxEvent(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "10", 5)

	txn, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 2)))
	require.NoError(t, err)

	events := f.mem.Outbox()
	require.Len(t, events, 1)
	assert.Equal(t, pos.EventSaleCompleted, events[0].Type)
	assert.Equal(t, string(txn.ID), events[0].AggregateID)
	assert.Equal(t, pos.OutboxPending, events[0].Status)

	var payload pos.SaleCompleted
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, txn.Number, payload.Number)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].Quantity)
}

func TestCreateSale_DuplicateProductLines(t *testing.T) {
	// GIVEN: Stock 3, the same product listed twice (2 + 2)
	// THEN: Second reservation sees the first and the whole sale fails

	f := newFixture(t)
	f.product("p-1", "10", 3)

	_, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 2), item("p-1", 2)))

	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 3, f.stock(t, "p-1"))
}

func TestCreateSale_RegeneratesCollidingNumber(t *testing.T) {
	// GIVEN: A generator returning the same number twice, then a new one
	calls := 0
	numbers := pos.NumberGeneratorFunc(func(time.Time) string {
		calls++
		if calls <= 2 {
			return "TXN-FIXED"
		}
		return "TXN-OTHER"
	})
	f := newFixture(t, pos.WithNumbers(numbers))
	f.product("p-1", "10", 5)
	ctx := context.Background()

	first, err := f.engine.CreateSale(ctx, sale(item("p-1", 1)))
	require.NoError(t, err)
	second, err := f.engine.CreateSale(ctx, sale(item("p-1", 1)))
	require.NoError(t, err)

	assert.Equal(t, "TXN-FIXED", first.Number)
	assert.Equal(t, "TXN-OTHER", second.Number)
}

// =============================================================================
// CREATE SALE - Failures roll back everything
// =============================================================================

func TestCreateSale_InsufficientStock(t *testing.T) {
	// GIVEN: Stock 3
	// WHEN: Requesting 5
	// THEN: InsufficientStock available=3 requested=5, nothing written

	f := newFixture(t)
	f.product("p-1", "10", 3)

	_, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 5)))

	var stockErr *pos.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Contains(t, err.Error(), "Product p-1")
	assert.Equal(t, pos.KindConflict, pos.KindOf(err))

	assert.Equal(t, 3, f.stock(t, "p-1"))
	assert.Zero(t, f.mem.TransactionCount())
	assert.Empty(t, f.mem.Outbox())
}

func TestCreateSale_SecondLineFailureRestoresFirst(t *testing.T) {
	// GIVEN: A has stock 10, B has stock 1
	// WHEN: Selling 4 of A and 2 of B
	// THEN: A's decrement is undone

	f := newFixture(t)
	f.product("p-a", "10", 10)
	f.product("p-b", "10", 1)

	_, err := f.engine.CreateSale(context.Background(), sale(item("p-a", 4), item("p-b", 2)))
	require.ErrorIs(t, err, pos.ErrInsufficientStock)

	assert.Equal(t, 10, f.stock(t, "p-a"))
	assert.Equal(t, 1, f.stock(t, "p-b"))
	assert.Zero(t, f.mem.TransactionCount())
}

func TestCreateSale_NegativeTotalUndoesRedemption(t *testing.T) {
	// GIVEN: A $10 sale redeeming 20 points (worth $20)
	// THEN: NegativeTotal, points and stock untouched

	f := newFixture(t)
	f.product("p-1", "10", 5)
	f.customer("c-1", 100, "0")

	req := sale(item("p-1", 1))
	req.CustomerID = "c-1"
	req.PointsToRedeem = 20

	_, err := f.engine.CreateSale(context.Background(), req)
	require.ErrorIs(t, err, pos.ErrNegativeTotal)

	c, _ := f.mem.GetCustomer(context.Background(), "c-1")
	assert.Equal(t, int64(100), c.LoyaltyPoints)
	assert.Empty(t, f.mem.LoyaltyEntries("c-1"))
	assert.Equal(t, 5, f.stock(t, "p-1"))
}

// outboxDown fails every outbox append, the last write of a sale.
type outboxDown struct {
	*store.Memory
}

func (s outboxDown) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	return s.Memory.WithTx(ctx, func(tx pos.Store) error {
		return fn(failingOutbox{tx})
	})
}

type failingOutbox struct {
	pos.Store
}

func (failingOutbox) AppendOutbox(context.Context, pos.OutboxEvent) error {
	return errors.New("outbox unavailable")
}

func TestCreateSale_LateFailureRollsBackEverything(t *testing.T) {
	// GIVEN: A sale that gets past insert, accrual and completion
	// WHEN: The outbox append fails
	// THEN: Stock, points, spend, rows and loyalty entries are untouched

	f := newFixture(t)
	f.product("p-50", "50", 10)
	f.customer("c-1", 500, "900")
	engine := pos.NewEngine(outboxDown{f.mem}, pos.WithClock(f.clock))

	req := sale(item("p-50", 2))
	req.CustomerID = "c-1"
	req.PointsToRedeem = 100

	_, err := engine.CreateSale(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")

	assert.Equal(t, 10, f.stock(t, "p-50"))
	c, err := f.mem.GetCustomer(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), c.LoyaltyPoints)
	assertMoney(t, "900", c.TotalSpent)
	assert.Empty(t, f.mem.LoyaltyEntries("c-1"))
	assert.Zero(t, f.mem.TransactionCount())
	assert.Empty(t, f.mem.Outbox())
}

func TestCreateSale_InsufficientPoints(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "100", 5)
	f.customer("c-1", 10, "0")

	req := sale(item("p-1", 1))
	req.CustomerID = "c-1"
	req.PointsToRedeem = 11

	_, err := f.engine.CreateSale(context.Background(), req)
	require.ErrorIs(t, err, pos.ErrInsufficientPoints)
	assert.Equal(t, 5, f.stock(t, "p-1"))
}

func TestCreateSale_NotFoundAndInactive(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "10", 5)
	f.mem.PutProduct(pos.Product{ID: "p-off", Name: "Old", Price: dec("1"), Stock: 5, Active: false})
	f.mem.PutCustomer(pos.Customer{ID: "c-off", Active: false})
	ctx := context.Background()

	_, err := f.engine.CreateSale(ctx, sale(item("p-missing", 1)))
	assert.ErrorIs(t, err, pos.ErrProductNotFound)
	assert.Equal(t, pos.KindNotFound, pos.KindOf(err))

	_, err = f.engine.CreateSale(ctx, sale(item("p-off", 1)))
	assert.ErrorIs(t, err, pos.ErrProductInactive)

	req := sale(item("p-1", 1))
	req.CustomerID = "c-missing"
	_, err = f.engine.CreateSale(ctx, req)
	assert.ErrorIs(t, err, pos.ErrCustomerNotFound)

	req.CustomerID = "c-off"
	_, err = f.engine.CreateSale(ctx, req)
	assert.ErrorIs(t, err, pos.ErrCustomerInactive)

	assert.Equal(t, 5, f.stock(t, "p-1"))
}

func TestCreateSale_Validation(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "10", 5)

	cases := map[string]pos.SaleRequest{
		"no cashier":           {Items: []pos.SaleItem{item("p-1", 1)}},
		"zero quantity":        sale(item("p-1", 0)),
		"unknown payment":      {UserID: "u", Items: []pos.SaleItem{item("p-1", 1)}, PaymentMethod: "barter"},
		"negative discount":    {UserID: "u", Items: []pos.SaleItem{item("p-1", 1)}, Discount: dec("-1")},
		"fractional discount":  {UserID: "u", Items: []pos.SaleItem{item("p-1", 1)}, Discount: dec("0.005")},
		"points, no customer":  {UserID: "u", Items: []pos.SaleItem{item("p-1", 1)}, PointsToRedeem: 5},
		"negative points":      {UserID: "u", Items: []pos.SaleItem{item("p-1", 1)}, PointsToRedeem: -5, CustomerID: "c"},
		"missing product id":   sale(item("", 1)),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.CreateSale(context.Background(), req)
			assert.ErrorIs(t, err, pos.ErrValidation)
			assert.Equal(t, pos.KindValidation, pos.KindOf(err))
		})
	}

	_, err := f.engine.CreateSale(context.Background(), sale())
	assert.ErrorIs(t, err, pos.ErrEmptySale)
	assert.Equal(t, 5, f.stock(t, "p-1"))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCreateSale_ConcurrentSalesNeverOversell(t *testing.T) {
	// GIVEN: Stock 5
	// WHEN: 20 concurrent sales of 1 unit
	// THEN: Exactly 5 succeed, stock is 0, never negative

	f := newFixture(t)
	f.product("p-1", "10", 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		shortages int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 1)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, pos.ErrInsufficientStock) {
				shortages++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, shortages)
	assert.Equal(t, 0, f.stock(t, "p-1"))
}

func TestCreateSale_TwoBuyersForLastUnits(t *testing.T) {
	// GIVEN: Stock 3, two sales of 2 units each
	// THEN: Exactly one fails
	f := newFixture(t)
	f.product("p-1", "10", 3)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.engine.CreateSale(context.Background(), sale(item("p-1", 2)))
			errs <- err
		}()
	}
	failures := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			require.ErrorIs(t, err, pos.ErrInsufficientStock)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, f.stock(t, "p-1"))
}

// =============================================================================
// STATUS, REFUNDS, RECEIPTS
// =============================================================================

func (f *fixture) completedSale(t *testing.T, price string, qty int) *pos.Transaction {
	t.Helper()
	f.product("p-r", price, 10)
	req := sale(item("p-r", qty))
	txn, err := f.engine.CreateSale(context.Background(), req)
	require.NoError(t, err)
	return txn
}

func TestProcessRefund_PartialThenFull(t *testing.T) {
	// GIVEN: A completed sale totalling $50 (tax-free)
	// WHEN: Refunding 30, 20, then 5
	// THEN: completed, refunded, RefundExceedsAvailable

	f := newFixture(t, pos.WithCalculator(pos.Calculator{TaxRate: decimal.Zero}))
	txn := f.completedSale(t, "25", 2)
	ctx := context.Background()

	got, err := f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{Amount: dec("30"), Reason: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, pos.StatusCompleted, got.Status)
	assertMoney(t, "30", got.RefundedAmount)

	got, err = f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{Amount: dec("20"), Reason: "damaged"})
	require.NoError(t, err)
	assert.Equal(t, pos.StatusRefunded, got.Status)
	assertMoney(t, "50", got.RefundedAmount)

	_, err = f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{Amount: dec("5"), Reason: "again"})
	assert.ErrorIs(t, err, pos.ErrRefundExceedsAvailable)

	stored, err := f.mem.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assertMoney(t, "50", stored.RefundedAmount)
	assert.Equal(t, pos.StatusRefunded, stored.Status)
}

func TestProcessRefund_NoRestockByDefault(t *testing.T) {
	f := newFixture(t)
	txn := f.completedSale(t, "10", 3)
	ctx := context.Background()

	_, err := f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{
		Amount: dec("10"),
		Reason: "returned",
		Items:  []pos.RefundItem{{LineID: txn.Lines[0].ID, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, f.stock(t, "p-r"))
	stored, _ := f.mem.GetTransaction(ctx, txn.ID)
	assert.Equal(t, 1, stored.Lines[0].RefundedQuantity)
}

func TestProcessRefund_RestockReleasesStock(t *testing.T) {
	f := newFixture(t)
	txn := f.completedSale(t, "10", 3)

	_, err := f.engine.ProcessRefund(context.Background(), txn.ID, pos.RefundRequest{
		Amount:  dec("20"),
		Reason:  "returned",
		Items:   []pos.RefundItem{{LineID: txn.Lines[0].ID, Quantity: 2}},
		Restock: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 9, f.stock(t, "p-r"))
	events := f.mem.Outbox()
	require.Len(t, events, 2)
	assert.Equal(t, pos.EventRefunded, events[1].Type)
}

func TestProcessRefund_LineQuantityExceeded(t *testing.T) {
	// GIVEN: A line of 3
	// WHEN: Returning 4
	// THEN: ErrRefundQuantityExceeded and the amount is not applied

	f := newFixture(t)
	txn := f.completedSale(t, "10", 3)
	ctx := context.Background()

	_, err := f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{
		Amount:  dec("5"),
		Reason:  "returned",
		Items:   []pos.RefundItem{{LineID: txn.Lines[0].ID, Quantity: 4}},
		Restock: true,
	})
	require.ErrorIs(t, err, pos.ErrRefundQuantityExceeded)

	stored, _ := f.mem.GetTransaction(ctx, txn.ID)
	assert.True(t, stored.RefundedAmount.IsZero())
	assert.Equal(t, 7, f.stock(t, "p-r"))

	_, err = f.engine.ProcessRefund(ctx, txn.ID, pos.RefundRequest{
		Amount: dec("5"),
		Reason: "returned",
		Items:  []pos.RefundItem{{LineID: "nope", Quantity: 1}},
	})
	assert.ErrorIs(t, err, pos.ErrLineNotFound)
}

func TestProcessRefund_UnknownTransaction(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ProcessRefund(context.Background(), "missing", pos.RefundRequest{Amount: dec("1"), Reason: "x"})
	assert.ErrorIs(t, err, pos.ErrTransactionNotFound)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	txn := f.completedSale(t, "10", 1)
	ctx := context.Background()

	_, err := f.engine.UpdateStatus(ctx, txn.ID, pos.StatusCancelled, "oops")
	assert.ErrorIs(t, err, pos.ErrInvalidTransition)

	_, err = f.engine.UpdateStatus(ctx, txn.ID, pos.StatusPending, "")
	assert.ErrorIs(t, err, pos.ErrInvalidTransition)

	_, err = f.engine.UpdateStatus(ctx, txn.ID, "lost", "")
	assert.ErrorIs(t, err, pos.ErrValidation)

	got, err := f.engine.UpdateStatus(ctx, txn.ID, pos.StatusRefunded, "")
	require.NoError(t, err)
	assert.Equal(t, pos.StatusRefunded, got.Status)
	assert.True(t, got.RefundedAmount.Equal(got.Total))
	assert.Equal(t, pos.DefaultRefundReason, got.RefundReason)

	_, err = f.engine.UpdateStatus(ctx, txn.ID, pos.StatusRefunded, "")
	assert.ErrorIs(t, err, pos.ErrInvalidTransition)
}

func TestUpdateStatus_RefundZeroTotalSale(t *testing.T) {
	// GIVEN: A $10 sale (8% tax) discounted to exactly zero
	f := newFixture(t)
	f.product("p-1", "10", 5)
	req := sale(item("p-1", 1))
	req.Discount = dec("10.80")
	txn, err := f.engine.CreateSale(context.Background(), req)
	require.NoError(t, err)
	require.True(t, txn.Total.IsZero())

	// WHEN: Marking it refunded
	got, err := f.engine.UpdateStatus(context.Background(), txn.ID, pos.StatusRefunded, "")

	// THEN: The status flips instead of failing amount validation
	require.NoError(t, err)
	assert.Equal(t, pos.StatusRefunded, got.Status)
	assert.Equal(t, pos.DefaultRefundReason, got.RefundReason)
}

func TestProcessRefund_FractionalCentsRejected(t *testing.T) {
	f := newFixture(t)
	txn := f.completedSale(t, "10", 1)

	_, err := f.engine.ProcessRefund(context.Background(), txn.ID, pos.RefundRequest{Amount: dec("0.004"), Reason: "rounding"})
	require.ErrorIs(t, err, pos.ErrValidation)
	assert.Len(t, f.mem.Outbox(), 1)
}

func TestMarkReceiptPrinted(t *testing.T) {
	f := newFixture(t)
	txn := f.completedSale(t, "10", 1)

	got, err := f.engine.MarkReceiptPrinted(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.True(t, got.ReceiptPrinted)

	_, err = f.engine.MarkReceiptPrinted(context.Background(), txn.ID)
	assert.NoError(t, err)
}

// =============================================================================
// MANUAL ADJUSTMENTS
// =============================================================================

func TestAdjustStock(t *testing.T) {
	f := newFixture(t)
	f.product("p-1", "10", 5)
	ctx := context.Background()

	p, err := f.engine.AdjustStock(ctx, "p-1", pos.StockAdd, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)

	p, err = f.engine.AdjustStock(ctx, "p-1", pos.StockSubtract, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock, "subtract clamps at zero")
	assert.True(t, p.IsLowStock())

	p, err = f.engine.AdjustStock(ctx, "p-1", pos.StockSet, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, f.stock(t, "p-1"))

	_, err = f.engine.AdjustStock(ctx, "p-1", "multiply", 2)
	assert.ErrorIs(t, err, pos.ErrValidation)
	_, err = f.engine.AdjustStock(ctx, "p-1", pos.StockSet, -1)
	assert.ErrorIs(t, err, pos.ErrValidation)
}

func TestGrantAndRedeemPoints(t *testing.T) {
	f := newFixture(t)
	f.customer("c-1", 10, "0")
	ctx := context.Background()

	c, err := f.engine.GrantPoints(ctx, "c-1", 40, pos.Ref{Reason: "birthday"})
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.LoyaltyPoints)

	c, err = f.engine.RedeemPoints(ctx, "c-1", 50, pos.Ref{Reason: "gift card"})
	require.NoError(t, err)
	assert.Zero(t, c.LoyaltyPoints)

	_, err = f.engine.RedeemPoints(ctx, "c-1", 1, pos.Ref{})
	assert.ErrorIs(t, err, pos.ErrInsufficientPoints)
	assert.Len(t, f.mem.LoyaltyEntries("c-1"), 2)
}
