package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/pos-engine/pos"
)

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id, username, email, first_name, last_name, role, active, created_at, updated_at`

func scanUser(row rowScanner) (*pos.User, error) {
	var (
		u                    pos.User
		email                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.FirstName, &u.LastName, &u.Role, &u.Active,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *pos.User) error {
	if u.ID == "" {
		u.ID = pos.UserID(uuid.NewString())
	}
	t := now()
	u.CreatedAt, u.UpdatedAt = t, t
	_, err := s.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, nullString(u.Email), u.FirstName, u.LastName, u.Role, u.Active,
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	return writeError("create user", err)
}

func (s *Store) GetUser(ctx context.Context, id pos.UserID) (*pos.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pos.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]pos.User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []pos.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeactivateUser disables a user. Users are never deleted: transactions
// keep referencing them.
func (s *Store) DeactivateUser(ctx context.Context, id pos.UserID) error {
	res, err := s.exec(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`,
		false, formatTime(now()), id)
	if err != nil {
		return writeError("deactivate user", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrUserNotFound, id)
	}
	return nil
}

// =============================================================================
// CATEGORIES
// =============================================================================

const categoryColumns = `id, name, description, color, active, created_at, updated_at`

func scanCategory(row rowScanner) (*pos.Category, error) {
	var (
		c                    pos.Category
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *pos.Category) error {
	if c.ID == "" {
		c.ID = pos.CategoryID(uuid.NewString())
	}
	t := now()
	c.CreatedAt, c.UpdatedAt = t, t
	_, err := s.exec(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Color, c.Active, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return writeError("create category", err)
}

func (s *Store) GetCategory(ctx context.Context, id pos.CategoryID) (*pos.Category, error) {
	c, err := scanCategory(s.queryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pos.ErrCategoryNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return c, nil
}

// ListCategories returns categories by name, optionally only active ones.
func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]pos.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	var args []any
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	rows, err := s.query(ctx, query+` ORDER BY name ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []pos.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *Store) UpdateCategory(ctx context.Context, c *pos.Category) error {
	c.UpdatedAt = now()
	res, err := s.exec(ctx, `
		UPDATE categories SET name = ?, description = ?, color = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Color, c.Active, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return writeError("update category", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pos.ErrCategoryNotFound, c.ID)
	}
	return nil
}

// DeleteCategory deactivates a category that still has products and
// removes it otherwise. Returns true when the delete was soft.
func (s *Store) DeleteCategory(ctx context.Context, id pos.CategoryID) (soft bool, err error) {
	err = s.withTx(ctx, func(c *conn) error {
		var exists, products int
		if err := c.queryRow(ctx, `SELECT COUNT(*) FROM categories WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to load category: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", pos.ErrCategoryNotFound, id)
		}
		if err := c.queryRow(ctx, `SELECT COUNT(*) FROM products WHERE category_id = ?`, id).Scan(&products); err != nil {
			return fmt.Errorf("failed to count category products: %w", err)
		}
		if products > 0 {
			soft = true
			_, err := c.exec(ctx, `UPDATE categories SET active = ?, updated_at = ? WHERE id = ?`,
				false, formatTime(now()), id)
			return writeError("deactivate category", err)
		}
		_, err := c.exec(ctx, `DELETE FROM categories WHERE id = ?`, id)
		return writeError("delete category", err)
	})
	return soft, err
}
