package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/pos-engine/pos"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// PRODUCTS (pos.Store interface)
// =============================================================================

const productColumns = `id, name, description, sku, barcode, category_id, price, cost,
	stock, min_stock, active, created_at, updated_at`

func scanProduct(row rowScanner) (*pos.Product, error) {
	var (
		p                        pos.Product
		sku, barcode, categoryID sql.NullString
		createdAt, updatedAt     string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &sku, &barcode, &categoryID,
		&p.Price, &p.Cost, &p.Stock, &p.MinStock, &p.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.SKU = sku.String
	p.Barcode = barcode.String
	p.CategoryID = pos.CategoryID(categoryID.String)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (c *conn) getProduct(ctx context.Context, id pos.ProductID, lock bool) (*pos.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`
	if lock {
		query += c.forUpdate()
	}
	p, err := scanProduct(c.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return p, nil
}

func (c *conn) GetProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return c.getProduct(ctx, id, false)
}

func (c *conn) LockProduct(ctx context.Context, id pos.ProductID) (*pos.Product, error) {
	return c.getProduct(ctx, id, true)
}

// DecrementStock is a compare-and-set: it only applies while stock >= quantity.
func (c *conn) DecrementStock(ctx context.Context, id pos.ProductID, quantity int) (bool, error) {
	res, err := c.exec(ctx,
		`UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
		quantity, formatTime(now()), id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *conn) IncrementStock(ctx context.Context, id pos.ProductID, quantity int) error {
	return c.updateProduct(ctx, id, `UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`,
		quantity, formatTime(now()), id)
}

func (c *conn) SetStock(ctx context.Context, id pos.ProductID, stock int) error {
	return c.updateProduct(ctx, id, `UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`,
		stock, formatTime(now()), id)
}

func (c *conn) updateProduct(ctx context.Context, id pos.ProductID, query string, args ...any) error {
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return writeError("update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrProductNotFound, id)
	}
	return nil
}

// =============================================================================
// PRODUCT CATALOG
// =============================================================================

// ProductFilter narrows ListProducts. Zero values mean "any".
type ProductFilter struct {
	Search     string
	CategoryID pos.CategoryID
	Active     *bool
	Limit      int
	Offset     int
}

// CreateProduct inserts a product, assigning an ID and timestamps.
func (s *Store) CreateProduct(ctx context.Context, p *pos.Product) error {
	if p.ID == "" {
		p.ID = pos.ProductID(uuid.NewString())
	}
	t := now()
	p.CreatedAt, p.UpdatedAt = t, t
	p.Price = pos.RoundMoney(p.Price)
	p.Cost = pos.RoundMoney(p.Cost)

	_, err := s.exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, nullString(p.SKU), nullString(p.Barcode), nullString(string(p.CategoryID)),
		money(p.Price), money(p.Cost), p.Stock, p.MinStock, p.Active,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return writeError("create product", err)
}

// UpdateProduct overwrites the editable fields. Stock is changed only
// through stock adjustments and sales.
func (s *Store) UpdateProduct(ctx context.Context, p *pos.Product) error {
	p.UpdatedAt = now()
	p.Price = pos.RoundMoney(p.Price)
	p.Cost = pos.RoundMoney(p.Cost)
	return s.updateProduct(ctx, p.ID, `
		UPDATE products
		SET name = ?, description = ?, sku = ?, barcode = ?, category_id = ?,
		    price = ?, cost = ?, min_stock = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, nullString(p.SKU), nullString(p.Barcode), nullString(string(p.CategoryID)),
		money(p.Price), money(p.Cost), p.MinStock, p.Active, formatTime(p.UpdatedAt), p.ID)
}

// DeleteProduct removes a product without sales history and deactivates
// one with history. Returns true when the delete was soft.
func (s *Store) DeleteProduct(ctx context.Context, id pos.ProductID) (soft bool, err error) {
	err = s.withTx(ctx, func(c *conn) error {
		if _, err := c.LockProduct(ctx, id); err != nil {
			return err
		}
		var lines int
		if err := c.queryRow(ctx, `SELECT COUNT(*) FROM transaction_lines WHERE product_id = ?`, id).Scan(&lines); err != nil {
			return fmt.Errorf("failed to count product history: %w", err)
		}
		if lines > 0 {
			soft = true
			return c.updateProduct(ctx, id, `UPDATE products SET active = ?, updated_at = ? WHERE id = ?`,
				false, formatTime(now()), id)
		}
		_, err := c.exec(ctx, `DELETE FROM products WHERE id = ?`, id)
		return writeError("delete product", err)
	})
	return soft, err
}

// ListProducts returns products ordered by name.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]pos.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, `(LOWER(name) LIKE LOWER(?) OR LOWER(sku) LIKE LOWER(?) OR barcode = ?)`)
		args = append(args, like, like, f.Search)
	}
	if f.CategoryID != "" {
		where = append(where, `category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.Active != nil {
		where = append(where, `active = ?`)
		args = append(args, *f.Active)
	}

	query := `SELECT ` + productColumns + ` FROM products` + whereClause(where) + ` ORDER BY name ASC, id ASC`
	query, args = paginate(query, args, f.Limit, f.Offset)
	return s.queryProducts(ctx, query, args...)
}

// LowStockProducts returns active products at or below their minimum stock.
func (s *Store) LowStockProducts(ctx context.Context) ([]pos.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE active = ? AND stock <= min_stock
		ORDER BY stock ASC, name ASC`, true)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]pos.Product, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []pos.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// =============================================================================
// QUERY BUILDING
// =============================================================================

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// DefaultLimit and MaxLimit bound list queries.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)
	offset = max(offset, 0)
	return query + ` LIMIT ? OFFSET ?`, append(args, limit, offset)
}
