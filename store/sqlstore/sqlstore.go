/*
Package sqlstore provides a database/sql implementation of the pos storage interfaces.

PURPOSE:
  Implements pos.Store and pos.TxStore, plus the catalog, customer, user,
  query and report operations the HTTP layer needs. The same SQL runs on
  SQLite (mattn/go-sqlite3) and PostgreSQL (jackc/pgx stdlib).

DIALECTS:
  Queries are written with ? placeholders and rebound to $1..$n for
  PostgreSQL. Row locks (SELECT ... FOR UPDATE) are only emitted on
  PostgreSQL. SQLite opens every transaction with BEGIN IMMEDIATE
  (_txlock=immediate) and uses a single connection, so a unit of work
  holds the database write lock from its first statement.

STORAGE FORMAT:
  Money:      TEXT decimal with two places ("12.50")
  Timestamps: TEXT, UTC, fixed width, so lexical order is chronological
  Booleans:   BOOLEAN (INTEGER affinity on SQLite)

KEY TABLES:
  products, customers, categories, users
  transactions, transaction_lines
  loyalty_entries: append-only, unique idempotency key
  outbox_events:   written inside the sale unit of work

MIGRATION:
  Schema is migrated by golang-migrate from embedded SQL files on Open
  (see migrate.go).

USAGE:
  store, err := sqlstore.Open(ctx, "sqlite3", "./pos.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := pos.NewEngine(store)

SEE ALSO:
  - pos/store.go: Interface definitions
  - pos/store/memory.go: In-memory implementation for testing
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/pos-engine/pos"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn runs queries against either the pool or an open transaction.
// Every pos.Store method is defined on conn.
type conn struct {
	q       queryer
	dialect dialect
}

// Store implements all storage interfaces over database/sql.
type Store struct {
	*conn
	db     *sql.DB
	driver string
}

var _ pos.TxStore = (*Store)(nil)

// Open connects to the database and migrates the schema.
// Use driver "sqlite3" with ":memory:" for an in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case DriverSQLite:
		d = dialectSQLite
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		d = dialectPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d == dialectSQLite {
		// One connection: keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{conn: &conn{q: db, dialect: d}, db: db, driver: driver}
	if err := store.migrate(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func sqliteDSN(path string) string {
	const params = "_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// =============================================================================
// TRANSACTIONAL STORE (pos.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
// If fn returns error, the transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(pos.Store) error) error {
	return s.withTx(ctx, func(c *conn) error { return fn(c) })
}

func (s *Store) withTx(ctx context.Context, fn func(*conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
// Queries in this package never contain a literal question mark.
func (c *conn) rebind(query string) string {
	if c.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate returns the row-lock suffix for the dialect.
func (c *conn) forUpdate() string {
	if c.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// =============================================================================
// VALUE CONVERSION
// =============================================================================

const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func money(d decimal.Decimal) string {
	return d.StringFixed(pos.MoneyPlaces)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func now() time.Time {
	return time.Now().UTC()
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isCheckConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// ConstraintError is a constraint violation reported by the database.
// Error returns a fixed message per operation; the driver error is kept
// in Cause for logging and never shown to clients.
type ConstraintError struct {
	Op     string
	Reason string
	kind   error
	cause  error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

func (e *ConstraintError) Cause() error {
	return e.cause
}

// writeError maps constraint violations to domain errors.
func writeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueConstraintError(err):
		return &ConstraintError{Op: op, Reason: "a record with the same unique value already exists", kind: pos.ErrDuplicate, cause: err}
	case isForeignKeyError(err):
		return &ConstraintError{Op: op, Reason: "references a record that does not exist", kind: pos.ErrValidation, cause: err}
	case isCheckConstraintError(err):
		return &ConstraintError{Op: op, Reason: "a value is out of the allowed range", kind: pos.ErrValidation, cause: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
