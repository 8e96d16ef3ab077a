package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Repository is a ledger.Store backed by database/sql.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

var _ ledger.Store = (*Repository)(nil)

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open(SQLite.DriverName(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(SQLite, dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: SQLite}, nil
}

func NewPostgresRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open(Postgres.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(Postgres, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: Postgres}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Dialect() Dialect { return r.dialect }

func (r *Repository) q(query string) string { return r.dialect.Rebind(query) }

func (r *Repository) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	query, args := listTransactionsQuery(f)
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, r.q(getTransaction), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// CreateTransaction stores t. A missing Kind is stored as NULL so the sign
// keeps deciding the direction, as it does in the memory store.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	err := r.db.QueryRowContext(ctx, r.q(insertTransaction),
		t.Owner, nullKind(t.Kind), t.Category, t.Amount.Cents, t.Description, t.Date.String(),
	).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"backend", string(r.dialect),
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())

	return t, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanTransaction(tx.QueryRowContext(ctx, r.q(getTransaction), t.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", t.ID, err)
	}
	if _, err := tx.ExecContext(ctx, r.q(updateTransaction),
		t.Owner, nullKind(t.Kind), t.Category, t.Amount.Cents, t.Description, t.Date.String(), t.ID,
	); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanTransaction(tx.QueryRowContext(ctx, r.q(getTransaction), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, r.q(deleteTransaction), id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

func (r *Repository) ListBudgets(ctx context.Context, owner string, period *core.Period) ([]core.BudgetAllocation, error) {
	query, args := listBudgetsQuery(owner, period)
	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetAllocation
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return out, nil
}

func (r *Repository) UpsertBudget(ctx context.Context, b core.BudgetAllocation) (core.BudgetAllocation, bool, error) {
	if err := b.Validate(core.MinBudgetYear); err != nil {
		return core.BudgetAllocation{}, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.BudgetAllocation{}, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	created := false
	err = tx.QueryRowContext(ctx, r.q(findBudget), b.Owner, b.Category, b.Period.Month, b.Period.Year).Scan(&b.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		err = tx.QueryRowContext(ctx, r.q(insertBudget),
			b.Owner, b.Category, b.Allocated.Cents, b.Period.Month, b.Period.Year,
		).Scan(&b.ID)
		if err != nil {
			return core.BudgetAllocation{}, false, fmt.Errorf("insert budget: %w", err)
		}
	case err != nil:
		return core.BudgetAllocation{}, false, fmt.Errorf("find budget: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, r.q(updateBudget), b.Allocated.Cents, b.ID); err != nil {
			return core.BudgetAllocation{}, false, fmt.Errorf("update budget %d: %w", b.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.BudgetAllocation{}, false, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"id", b.ID,
		"category", b.Category,
		"period", b.Period.String(),
		"created", created)

	return b, created, nil
}

func (r *Repository) DeleteBudget(ctx context.Context, id int64) (core.BudgetAllocation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.BudgetAllocation{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanBudget(tx.QueryRowContext(ctx, r.q(getBudget), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetAllocation{}, fmt.Errorf("budget %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.BudgetAllocation{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, r.q(deleteBudget), id); err != nil {
		return core.BudgetAllocation{}, fmt.Errorf("delete budget %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.BudgetAllocation{}, fmt.Errorf("commit: %w", err)
	}
	return prev, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.Name, &kind, &c.Description, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.Color == "" {
		c.Color = "#6366f1"
	}
	err := r.db.QueryRowContext(ctx, r.q(insertCategory), c.Name, string(c.Kind), c.Description, c.Color).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ledger.ErrCategoryExists)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) Stats(ctx context.Context) (ledger.Stats, error) {
	var s ledger.Stats
	counts := []struct {
		query string
		dest  *int64
	}{
		{countTransactions, &s.Transactions},
		{countBudgets, &s.Budgets},
		{countCategories, &s.Categories},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return ledger.Stats{}, fmt.Errorf("count: %w", err)
		}
	}
	if err := r.db.QueryRowContext(ctx, r.dialect.sizeQuery()).Scan(&s.SizeBytes); err != nil {
		return ledger.Stats{}, fmt.Errorf("database size: %w", err)
	}
	return s, nil
}

// Ping checks connectivity and that the ledger tables exist.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	var tables int
	if err := r.db.QueryRowContext(ctx, r.dialect.tablesQuery()).Scan(&tables); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if tables != 3 {
		return fmt.Errorf("schema incomplete: found %d of 3 ledger tables", tables)
	}
	return nil
}
