// Package finance tracks expenses in a SQLite ledger.
package finance

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrNotFound is returned when an expense id does not exist.
var ErrNotFound = errors.New("expense not found")

// Valid expense categories.
var Categories = []string{"Food", "Transportation", "Miscellaneous"}

// Expense is one recorded spending entry. Amounts are whole VND.
type Expense struct {
	ID          string
	Description string
	AmountVND   int64
	Category    string
	SpentAt     time.Time
	CreatedAt   time.Time
}

// Store is the SQLite-backed expense ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the expense database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create finance dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open finance db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ValidCategory reports whether the category is one of the allowed set.
func ValidCategory(c string) bool {
	for _, valid := range Categories {
		if c == valid {
			return true
		}
	}
	return false
}

// Add records an expense, assigning an id and creation time.
func (s *Store) Add(ctx context.Context, e *Expense) (*Expense, error) {
	if !ValidCategory(e.Category) {
		return nil, fmt.Errorf("invalid category %q", e.Category)
	}
	if e.AmountVND <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.SpentAt.IsZero() {
		e.SpentAt = time.Now()
	}
	e.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO expenses(id, description, amount_vnd, category, spent_ms, created_ms) VALUES(?,?,?,?,?,?)",
		e.ID, e.Description, e.AmountVND, e.Category,
		e.SpentAt.UnixMilli(), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

// List returns expenses with spent time in [from, to), newest first.
// An empty category matches all categories.
func (s *Store) List(ctx context.Context, from, to time.Time, category string) ([]*Expense, error) {
	query := "SELECT id, description, amount_vnd, category, spent_ms, created_ms FROM expenses WHERE spent_ms >= ? AND spent_ms < ?"
	args := []any{from.UnixMilli(), to.UnixMilli()}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY spent_ms DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		var e Expense
		var spentMs, createdMs int64
		if err := rows.Scan(&e.ID, &e.Description, &e.AmountVND, &e.Category, &spentMs, &createdMs); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.SpentAt = time.UnixMilli(spentMs)
		e.CreatedAt = time.UnixMilli(createdMs)
		expenses = append(expenses, &e)
	}
	return expenses, rows.Err()
}

// Total sums expenses with spent time in [from, to). An empty category
// matches all categories.
func (s *Store) Total(ctx context.Context, from, to time.Time, category string) (int64, error) {
	query := "SELECT COALESCE(SUM(amount_vnd), 0) FROM expenses WHERE spent_ms >= ? AND spent_ms < ?"
	args := []any{from.UnixMilli(), to.UnixMilli()}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

// Delete removes an expense, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
