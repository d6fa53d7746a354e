/*
seed.go - Demo data for development and demonstrations

PURPOSE:
  Populates an empty database with users, categories, products and
  customers, then rings up a few sales through the engine so reports,
  loyalty and the outbox have something to show.

HOW SEEDING WORKS:
 1. Skip entirely if the demo admin already exists
 2. Create users, categories, products, customers with fixed IDs
 3. Grant opening loyalty balances through the ledger
 4. Run demo sales with the cashier account

USAGE:
  pos-server -seed
  POST /api/admin/seed  (admin)

DEMO IDENTITIES (send as X-User-ID):
  user-admin, user-manager, user-cashier1, user-cashier2
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
	"github.com/warp/pos-engine/store/sqlstore"
)

// Fixed IDs of the demo identities.
const (
	DemoAdmin    pos.UserID = "user-admin"
	DemoManager  pos.UserID = "user-manager"
	DemoCashier  pos.UserID = "user-cashier1"
	DemoCashier2 pos.UserID = "user-cashier2"
)

// SeedResult counts what Seed created.
type SeedResult struct {
	Seeded     bool `json:"seeded"`
	Users      int  `json:"users"`
	Categories int  `json:"categories"`
	Products   int  `json:"products"`
	Customers  int  `json:"customers"`
	Sales      int  `json:"sales"`
}

// =============================================================================
// DEMO DATA
// =============================================================================

var demoUsers = []pos.User{
	{ID: DemoAdmin, Username: "admin", Email: "admin@pos.com", FirstName: "System", LastName: "Administrator", Role: pos.RoleAdmin},
	{ID: DemoManager, Username: "manager", Email: "manager@pos.com", FirstName: "Store", LastName: "Manager", Role: pos.RoleManager},
	{ID: DemoCashier, Username: "cashier1", Email: "cashier1@pos.com", FirstName: "John", LastName: "Cashier", Role: pos.RoleCashier},
	{ID: DemoCashier2, Username: "cashier2", Email: "cashier2@pos.com", FirstName: "Jane", LastName: "Cashier", Role: pos.RoleCashier},
}

var demoCategories = []pos.Category{
	{ID: "cat-electronics", Name: "Electronics", Description: "Electronic devices and accessories", Color: "#2563eb"},
	{ID: "cat-clothing", Name: "Clothing", Description: "Apparel and fashion items", Color: "#dc2626"},
	{ID: "cat-books", Name: "Books", Description: "Books and educational materials", Color: "#059669"},
	{ID: "cat-food", Name: "Food & Beverages", Description: "Snacks, drinks and groceries", Color: "#d97706"},
}

type demoProduct struct {
	id, name, sku, barcode string
	category               pos.CategoryID
	price, cost            string
	stock, minStock        int
}

var demoProducts = []demoProduct{
	{"prod-headphones", "Wireless Bluetooth Headphones", "WBH-001", "1234567890123", "cat-electronics", "99.99", "60.00", 25, 5},
	{"prod-case", "Smartphone Case", "SPC-001", "1234567890124", "cat-electronics", "19.99", "8.00", 50, 10},
	{"prod-cable", "USB-C Charging Cable", "USB-C-001", "1234567890125", "cat-electronics", "12.99", "5.00", 100, 20},
	{"prod-tshirt", "Cotton T-Shirt", "CTS-001", "2234567890123", "cat-clothing", "24.99", "12.00", 75, 15},
	{"prod-jeans", "Denim Jeans", "DJ-001", "2234567890124", "cat-clothing", "59.99", "30.00", 40, 8},
	{"prod-novel", "Bestselling Novel", "BN-001", "3234567890123", "cat-books", "14.99", "7.50", 30, 5},
	{"prod-coffee", "Ground Coffee 500g", "GC-001", "4234567890123", "cat-food", "8.99", "4.00", 4, 10},
}

type demoCustomer struct {
	id, name, email, phone string
	points                 int64
}

var demoCustomers = []demoCustomer{
	{"cust-john", "John Smith", "john.smith@email.com", "+1555-0101", 150},
	{"cust-sarah", "Sarah Johnson", "sarah.johnson@email.com", "+1555-0102", 320},
	{"cust-michael", "Michael Brown", "michael.brown@email.com", "+1555-0103", 75},
	{"cust-emily", "Emily Davis", "emily.davis@email.com", "+1555-0104", 850},
	{"cust-guest", "Guest Customer", "", "", 0},
}

var demoSales = []pos.SaleRequest{
	{
		CustomerID:    "cust-john",
		Items:         []pos.SaleItem{{ProductID: "prod-headphones", Quantity: 1}, {ProductID: "prod-cable", Quantity: 2}},
		PaymentMethod: pos.PaymentCard,
	},
	{
		Items:         []pos.SaleItem{{ProductID: "prod-tshirt", Quantity: 3}},
		PaymentMethod: pos.PaymentCash,
	},
	{
		CustomerID:     "cust-emily",
		Items:          []pos.SaleItem{{ProductID: "prod-jeans", Quantity: 1}, {ProductID: "prod-novel", Quantity: 1}},
		PaymentMethod:  pos.PaymentMixed,
		PointsToRedeem: 20,
		Notes:          "Loyalty redemption",
	},
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed loads the demo data unless it is already present.
func Seed(ctx context.Context, store *sqlstore.Store, engine *pos.Engine) (SeedResult, error) {
	var res SeedResult
	if _, err := store.GetUser(ctx, DemoAdmin); err == nil {
		return res, nil
	} else if !pos.IsNotFound(err) {
		return res, err
	}

	for _, u := range demoUsers {
		u.Active = true
		if err := store.CreateUser(ctx, &u); err != nil {
			return res, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		res.Users++
	}

	for _, c := range demoCategories {
		c.Active = true
		if err := store.CreateCategory(ctx, &c); err != nil {
			return res, fmt.Errorf("seed category %s: %w", c.Name, err)
		}
		res.Categories++
	}

	for _, d := range demoProducts {
		p := &pos.Product{
			ID:         pos.ProductID(d.id),
			Name:       d.name,
			SKU:        d.sku,
			Barcode:    d.barcode,
			CategoryID: d.category,
			Price:      decimal.RequireFromString(d.price),
			Cost:       decimal.RequireFromString(d.cost),
			Stock:      d.stock,
			MinStock:   d.minStock,
			Active:     true,
		}
		if err := store.CreateProduct(ctx, p); err != nil {
			return res, fmt.Errorf("seed product %s: %w", d.sku, err)
		}
		res.Products++
	}

	for _, d := range demoCustomers {
		c := &pos.Customer{ID: pos.CustomerID(d.id), Name: d.name, Email: d.email, Phone: d.phone, Active: true}
		if err := store.CreateCustomer(ctx, c); err != nil {
			return res, fmt.Errorf("seed customer %s: %w", d.name, err)
		}
		if d.points > 0 {
			ref := pos.Ref{ID: string(DemoAdmin), IdempotencyKey: "seed:" + d.id, Reason: "opening balance"}
			if _, err := engine.GrantPoints(ctx, c.ID, d.points, ref); err != nil {
				return res, fmt.Errorf("seed points for %s: %w", d.name, err)
			}
		}
		res.Customers++
	}

	for _, sale := range demoSales {
		sale.UserID = DemoCashier
		if _, err := engine.CreateSale(ctx, sale); err != nil {
			return res, fmt.Errorf("seed sale: %w", err)
		}
		res.Sales++
	}

	res.Seeded = true
	return res, nil
}

// LoadDemo seeds the database. Already seeded databases are left alone.
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	res, err := Seed(r.Context(), h.Store, h.Engine)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Log.Info().Bool("seeded", res.Seeded).Int("products", res.Products).Int("sales", res.Sales).Msg("demo data loaded")
	writeJSON(w, http.StatusOK, res)
}
