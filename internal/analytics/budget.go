package analytics

import (
	"fmt"

	"fintrack/internal/core"
)

// BudgetRollup compares one allocation with the spend recorded against it.
// Remaining is negative when the category is overspent.
type BudgetRollup struct {
	BudgetID  int64       `json:"budgetId,omitempty"`
	Owner     string      `json:"owner,omitempty"`
	Category  string      `json:"category"`
	Period    core.Period `json:"period"`
	Allocated core.Money  `json:"allocated"`
	Spent     core.Money  `json:"spent"`
	Remaining core.Money  `json:"remaining"`
}

type budgetKey struct {
	owner    string
	category string
	period   core.Period
}

// ComputeBudgetRollups returns one rollup per allocation, in input order.
// Spent sums expense magnitudes whose owner, category and month match the
// allocation. Allocations are validated first: a bad period, a
// non-positive amount, a missing category or a duplicate
// (owner, category, period) yields a *core.ConfigurationError before any
// transaction is read.
func (e Engine) ComputeBudgetRollups(allocs []core.BudgetAllocation, txs []core.Transaction) ([]BudgetRollup, error) {
	if err := ValidateAllocations(allocs, e.MinYear()); err != nil {
		return nil, err
	}

	index := make(map[budgetKey]int, len(allocs))
	out := make([]BudgetRollup, len(allocs))
	for i, a := range allocs {
		index[budgetKey{a.Owner, a.Category, a.Period}] = i
		out[i] = BudgetRollup{
			BudgetID:  a.ID,
			Owner:     a.Owner,
			Category:  a.Category,
			Period:    a.Period,
			Allocated: a.Allocated,
		}
	}

	for i, t := range txs {
		entry, err := e.normalize(i, t)
		if err != nil {
			return nil, err
		}
		if entry.Kind != core.Expense {
			continue
		}
		j, ok := index[budgetKey{t.Owner, t.Category, t.Date.Period()}]
		if !ok {
			continue
		}
		out[j].Spent = out[j].Spent.Add(entry.Magnitude)
	}

	for i := range out {
		out[i].Remaining = out[i].Allocated.Sub(out[i].Spent)
	}
	return out, nil
}

// ValidateAllocations checks allocations against minYear and rejects
// duplicates of (owner, category, period).
func ValidateAllocations(allocs []core.BudgetAllocation, minYear int) error {
	seen := make(map[budgetKey]int, len(allocs))
	for i, a := range allocs {
		if a.Category == "" {
			return &core.ConfigurationError{Index: i, Field: "category", Reason: "missing category"}
		}
		if a.Allocated.Cents <= 0 {
			return &core.ConfigurationError{Index: i, Field: "allocated", Reason: fmt.Sprintf("allocation %s must be positive", a.Allocated)}
		}
		if err := a.Period.Validate(minYear); err != nil {
			return &core.ConfigurationError{Index: i, Field: "period", Reason: err.Error()}
		}
		k := budgetKey{a.Owner, a.Category, a.Period}
		if prev, dup := seen[k]; dup {
			return &core.ConfigurationError{Index: i, Field: "category", Reason: fmt.Sprintf("duplicate allocation for %s %s (first at %d)", a.Category, a.Period, prev)}
		}
		seen[k] = i
	}
	return nil
}

// Overspent reports whether spend exceeded the allocation.
func (b BudgetRollup) Overspent() bool {
	return b.Remaining.IsNegative()
}

// PercentUsed returns spent as a percentage of allocated, rounded down.
func (b BudgetRollup) PercentUsed() int64 {
	if b.Allocated.Cents <= 0 {
		return 0
	}
	return b.Spent.Cents * 100 / b.Allocated.Cents
}
