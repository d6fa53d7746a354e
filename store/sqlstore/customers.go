package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// CUSTOMERS (pos.Store interface)
// =============================================================================

const customerColumns = `id, name, email, phone, loyalty_points, total_spent, tier,
	active, last_visit, created_at, updated_at`

func scanCustomer(row rowScanner) (*pos.Customer, error) {
	var (
		c                    pos.Customer
		email, lastVisit     sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Name, &email, &c.Phone, &c.LoyaltyPoints, &c.TotalSpent, &c.Tier,
		&c.Active, &lastVisit, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.LastVisit = parseNullTime(lastVisit)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (c *conn) getCustomer(ctx context.Context, id pos.CustomerID, lock bool) (*pos.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = ?`
	if lock {
		query += c.forUpdate()
	}
	cust, err := scanCustomer(c.queryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pos.ErrCustomerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return cust, nil
}

func (c *conn) GetCustomer(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return c.getCustomer(ctx, id, false)
}

func (c *conn) LockCustomer(ctx context.Context, id pos.CustomerID) (*pos.Customer, error) {
	return c.getCustomer(ctx, id, true)
}

func (c *conn) SaveLoyalty(ctx context.Context, cust *pos.Customer) error {
	res, err := c.exec(ctx, `
		UPDATE customers
		SET loyalty_points = ?, total_spent = ?, tier = ?, last_visit = ?, updated_at = ?
		WHERE id = ?`,
		cust.LoyaltyPoints, money(cust.TotalSpent), cust.Tier, nullTime(cust.LastVisit),
		formatTime(cust.UpdatedAt), cust.ID)
	if err != nil {
		return writeError("save loyalty", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrCustomerNotFound, cust.ID)
	}
	return nil
}

// AppendLoyaltyEntry adds an entry. Append-only: entries are never updated.
func (c *conn) AppendLoyaltyEntry(ctx context.Context, e pos.LoyaltyEntry) error {
	_, err := c.exec(ctx, `
		INSERT INTO loyalty_entries
		(id, customer_id, kind, points, balance, reference_id, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CustomerID, e.Kind, e.Points, e.Balance, e.ReferenceID, e.Reason,
		e.IdempotencyKey, formatTime(e.CreatedAt))
	if isUniqueConstraintError(err) {
		return pos.ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("failed to append loyalty entry: %w", err)
	}
	return nil
}

// =============================================================================
// CUSTOMER MANAGEMENT
// =============================================================================

// CustomerFilter narrows ListCustomers. Zero values mean "any".
type CustomerFilter struct {
	Search string
	Tier   pos.Tier
	Active *bool
	Limit  int
	Offset int
}

// CreateCustomer inserts a customer with zero points and bronze tier.
func (s *Store) CreateCustomer(ctx context.Context, c *pos.Customer) error {
	if c.ID == "" {
		c.ID = pos.CustomerID(uuid.NewString())
	}
	t := now()
	c.CreatedAt, c.UpdatedAt = t, t
	c.LoyaltyPoints = 0
	c.TotalSpent = decimal.Zero
	c.Tier = pos.TierBronze

	_, err := s.exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullString(c.Email), c.Phone, c.LoyaltyPoints, money(c.TotalSpent), c.Tier,
		c.Active, nullTime(c.LastVisit), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return writeError("create customer", err)
}

// UpdateCustomer overwrites contact details and the active flag. Loyalty
// fields only change through the loyalty ledger.
func (s *Store) UpdateCustomer(ctx context.Context, c *pos.Customer) error {
	c.UpdatedAt = now()
	res, err := s.exec(ctx, `
		UPDATE customers SET name = ?, email = ?, phone = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, nullString(c.Email), c.Phone, c.Active, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return writeError("update customer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrCustomerNotFound, c.ID)
	}
	return nil
}

// DeleteCustomer removes a customer without history and deactivates one
// with transactions or loyalty entries. Returns true when the delete was soft.
func (s *Store) DeleteCustomer(ctx context.Context, id pos.CustomerID) (soft bool, err error) {
	err = s.withTx(ctx, func(c *conn) error {
		if _, err := c.LockCustomer(ctx, id); err != nil {
			return err
		}
		var history int
		err := c.queryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM transactions WHERE customer_id = ?)
			     + (SELECT COUNT(*) FROM loyalty_entries WHERE customer_id = ?)`,
			id, id).Scan(&history)
		if err != nil {
			return fmt.Errorf("failed to count customer history: %w", err)
		}
		if history > 0 {
			soft = true
			_, err := c.exec(ctx, `UPDATE customers SET active = ?, updated_at = ? WHERE id = ?`,
				false, formatTime(now()), id)
			return writeError("deactivate customer", err)
		}
		_, err = c.exec(ctx, `DELETE FROM customers WHERE id = ?`, id)
		return writeError("delete customer", err)
	})
	return soft, err
}

// ListCustomers returns customers ordered by name.
func (s *Store) ListCustomers(ctx context.Context, f CustomerFilter) ([]pos.Customer, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, `(LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR phone LIKE ?)`)
		args = append(args, like, like, like)
	}
	if f.Tier != "" {
		where = append(where, `tier = ?`)
		args = append(args, f.Tier)
	}
	if f.Active != nil {
		where = append(where, `active = ?`)
		args = append(args, *f.Active)
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + whereClause(where) + ` ORDER BY name ASC, id ASC`
	query, args = paginate(query, args, f.Limit, f.Offset)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []pos.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// ListLoyaltyEntries returns a customer's loyalty history, newest first.
func (s *Store) ListLoyaltyEntries(ctx context.Context, id pos.CustomerID, limit int) ([]pos.LoyaltyEntry, error) {
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return nil, err
	}
	query, args := paginate(`
		SELECT id, customer_id, kind, points, balance, reference_id, reason, idempotency_key, created_at
		FROM loyalty_entries
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC`, []any{id}, limit, 0)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loyalty entries: %w", err)
	}
	defer rows.Close()

	entries := []pos.LoyaltyEntry{}
	for rows.Next() {
		var (
			e         pos.LoyaltyEntry
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.Kind, &e.Points, &e.Balance,
			&e.ReferenceID, &e.Reason, &e.IdempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan loyalty entry: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
