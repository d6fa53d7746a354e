package pos

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// USERS - Staff accounts that act on the back office
// =============================================================================

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
)

func (r Role) Valid() bool {
	return r.level() > 0
}

func (r Role) level() int {
	switch r {
	case RoleCashier:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// AtLeast reports whether r grants every permission of min.
// admin ⊃ manager ⊃ cashier.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r.level() >= min.level()
}

type User struct {
	ID        UserID
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// CATEGORIES
// =============================================================================

type Category struct {
	ID          CategoryID
	Name        string
	Description string
	Color       string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// VALIDATION - Shape checks applied before anything is written
// =============================================================================

const (
	maxNameLength = 200
	maxCodeLength = 64
)

func checkName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	if utf8.RuneCountInString(value) > maxNameLength {
		return invalid(field, "must be at most %d characters", maxNameLength)
	}
	return nil
}

func checkEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func (p *Product) Validate() error {
	if err := checkName("name", p.Name); err != nil {
		return err
	}
	if utf8.RuneCountInString(p.SKU) > maxCodeLength {
		return invalid("sku", "must be at most %d characters", maxCodeLength)
	}
	if utf8.RuneCountInString(p.Barcode) > maxCodeLength {
		return invalid("barcode", "must be at most %d characters", maxCodeLength)
	}
	if p.Price.IsNegative() {
		return invalid("price", "must be >= 0")
	}
	if p.Cost.IsNegative() {
		return invalid("cost", "must be >= 0")
	}
	if p.Stock < 0 {
		return invalid("stock", "must be >= 0")
	}
	if p.MinStock < 0 {
		return invalid("minStock", "must be >= 0")
	}
	return nil
}

func (c *Customer) Validate() error {
	if err := checkName("name", c.Name); err != nil {
		return err
	}
	return checkEmail(c.Email)
}

func (u *User) Validate() error {
	if err := checkName("username", u.Username); err != nil {
		return err
	}
	if !u.Role.Valid() {
		return invalid("role", "must be one of admin, manager, cashier")
	}
	return checkEmail(u.Email)
}

func (c *Category) Validate() error {
	return checkName("name", c.Name)
}
