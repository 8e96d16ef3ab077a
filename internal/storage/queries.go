package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const (
	transactionColumns = `id, owner, type, category, amount_cents, description, date`

	insertTransaction = `INSERT INTO transactions (owner, type, category, amount_cents, description, date)
VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

	getTransaction = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	updateTransaction = `UPDATE transactions
SET owner = ?, type = ?, category = ?, amount_cents = ?, description = ?, date = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

	deleteTransaction = `DELETE FROM transactions WHERE id = ?`

	budgetColumns = `id, owner, category, amount_cents, month, year`

	findBudget = `SELECT id FROM budgets WHERE owner = ? AND category = ? AND month = ? AND year = ?`

	insertBudget = `INSERT INTO budgets (owner, category, amount_cents, month, year)
VALUES (?, ?, ?, ?, ?) RETURNING id`

	updateBudget = `UPDATE budgets SET amount_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	getBudget = `SELECT ` + budgetColumns + ` FROM budgets WHERE id = ?`

	deleteBudget = `DELETE FROM budgets WHERE id = ?`

	listCategories = `SELECT id, name, type, description, color FROM categories ORDER BY type, name`

	insertCategory = `INSERT INTO categories (name, type, description, color)
VALUES (?, ?, ?, ?) ON CONFLICT (name) DO NOTHING RETURNING id`

	countTransactions = `SELECT COUNT(*) FROM transactions`
	countBudgets      = `SELECT COUNT(*) FROM budgets`
	countCategories   = `SELECT COUNT(*) FROM categories`
)

// listTransactionsQuery builds the filtered listing, newest first.
func listTransactionsQuery(f ledger.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, f.Owner)
	}
	if !f.From.IsEmpty() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsEmpty() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	switch f.Kind {
	case core.Income:
		where = append(where, "(type = ? OR (type IS NULL AND amount_cents > 0))")
		args = append(args, string(f.Kind))
	case core.Expense:
		where = append(where, "(type = ? OR (type IS NULL AND amount_cents < 0))")
		args = append(args, string(f.Kind))
	}

	var b strings.Builder
	b.WriteString("SELECT " + transactionColumns + " FROM transactions")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY date DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
		if f.Offset > 0 {
			b.WriteString(" OFFSET ?")
			args = append(args, f.Offset)
		}
	}
	return b.String(), args
}

func listBudgetsQuery(owner string, period *core.Period) (string, []any) {
	var (
		where []string
		args  []any
	)
	if owner != "" {
		where = append(where, "owner = ?")
		args = append(args, owner)
	}
	if period != nil {
		where = append(where, "month = ?", "year = ?")
		args = append(args, period.Month, period.Year)
	}
	q := "SELECT " + budgetColumns + " FROM budgets"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY year, month, category, owner, id", args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t     core.Transaction
		kind  sql.NullString
		cents int64
		date  any
	)
	if err := row.Scan(&t.ID, &t.Owner, &kind, &t.Category, &cents, &t.Description, &date); err != nil {
		return core.Transaction{}, err
	}
	d, err := scanDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Kind = core.Kind(kind.String)
	t.Amount = core.Cents(cents)
	t.Date = d
	return t, nil
}

// nullKind maps an unset Kind to NULL.
func nullKind(k core.Kind) sql.NullString {
	return sql.NullString{String: string(k), Valid: k != ""}
}

func scanBudget(row rowScanner) (core.BudgetAllocation, error) {
	var (
		b     core.BudgetAllocation
		cents int64
	)
	if err := row.Scan(&b.ID, &b.Owner, &b.Category, &cents, &b.Period.Month, &b.Period.Year); err != nil {
		return core.BudgetAllocation{}, err
	}
	b.Allocated = core.Cents(cents)
	return b, nil
}

// scanDate accepts the TEXT dates SQLite returns and the DATE values
// Postgres returns.
func scanDate(v any) (core.Date, error) {
	switch x := v.(type) {
	case time.Time:
		return core.NewDate(x.Year(), int(x.Month()), x.Day()), nil
	case string:
		return core.ParseDate(dateOnly(x))
	case []byte:
		return core.ParseDate(dateOnly(string(x)))
	}
	return core.Date{}, fmt.Errorf("unexpected date value %T", v)
}

func dateOnly(s string) string {
	if len(s) > len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}
	return s
}
