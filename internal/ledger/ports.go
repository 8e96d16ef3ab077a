// Package ledger defines the ports through which the rest of the program
// reads and writes transactions, budgets and categories.
package ledger

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrCategoryExists = errors.New("category already exists")
)

// Ports for outbound adapters.
type (
	TransactionReader interface {
		// ListTransactions returns the records matching f, newest first.
		ListTransactions(ctx context.Context, f Filter) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	}

	TransactionWriter interface {
		// CreateTransaction stores t and returns it with its assigned ID.
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// UpdateTransaction replaces the record with t.ID and returns the
		// previous version.
		UpdateTransaction(ctx context.Context, t core.Transaction) (prev core.Transaction, err error)
		// DeleteTransaction removes the record and returns it.
		DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
	}

	BudgetReader interface {
		// ListBudgets returns allocations for owner ("" for every owner),
		// restricted to period when it is non-nil.
		ListBudgets(ctx context.Context, owner string, period *core.Period) ([]core.BudgetAllocation, error)
	}

	BudgetWriter interface {
		// UpsertBudget inserts or replaces the allocation for
		// (owner, category, period). created is false on replace.
		UpsertBudget(ctx context.Context, b core.BudgetAllocation) (saved core.BudgetAllocation, created bool, err error)
		DeleteBudget(ctx context.Context, id int64) (core.BudgetAllocation, error)
	}

	CategoryReader interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	CategoryWriter interface {
		// CreateCategory fails with ErrCategoryExists on a duplicate name.
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	}

	// Store is a complete ledger backend.
	Store interface {
		TransactionReader
		TransactionWriter
		BudgetReader
		BudgetWriter
		CategoryReader
		CategoryWriter
		Stats(ctx context.Context) (Stats, error)
		// Ping verifies the backend is reachable and its schema present.
		Ping(ctx context.Context) error
		Close() error
	}

	// Stats summarizes the stored data.
	Stats struct {
		Transactions int64 `json:"transactions"`
		Budgets      int64 `json:"budgets"`
		Categories   int64 `json:"categories"`
		SizeBytes    int64 `json:"sizeBytes"`
	}
)
