package analytics

import (
	"sort"

	"fintrack/internal/core"
)

type (
	// MonthTotals holds the income and expense magnitudes of one month.
	MonthTotals struct {
		Income   core.Money `json:"income"`
		Expenses core.Money `json:"expenses"`
	}

	// Report is the aggregate of a scoped set of transactions.
	// TotalExpenses and every category total are non-negative.
	Report struct {
		TotalIncome      core.Money             `json:"totalIncome"`
		TotalExpenses    core.Money             `json:"totalExpenses"`
		NetIncome        core.Money             `json:"netIncome"`
		CategoryExpenses map[string]core.Money  `json:"categoryExpenses"`
		Monthly          map[string]MonthTotals `json:"monthly"`
	}

	// CategoryAmount represents an amount aggregated by category name.
	CategoryAmount struct {
		Name   string     `json:"name"`
		Amount core.Money `json:"amount"`
	}
)

// ComputeReport sums income and expenses overall, per expense category and
// per YYYY-MM month in one pass. An invalid record fails the whole call
// with a *core.DataIntegrityError.
func (e Engine) ComputeReport(txs []core.Transaction) (Report, error) {
	r := Report{
		CategoryExpenses: map[string]core.Money{},
		Monthly:          map[string]MonthTotals{},
	}
	for i, t := range txs {
		entry, err := e.normalize(i, t)
		if err != nil {
			return Report{}, err
		}
		key := t.Date.MonthKey()
		m := r.Monthly[key]
		switch entry.Kind {
		case core.Income:
			r.TotalIncome = r.TotalIncome.Add(entry.Magnitude)
			m.Income = m.Income.Add(entry.Magnitude)
		case core.Expense:
			if t.Category == "" {
				return Report{}, &core.DataIntegrityError{Index: i, ID: t.ID, Field: "category", Reason: "expense without category"}
			}
			r.TotalExpenses = r.TotalExpenses.Add(entry.Magnitude)
			r.CategoryExpenses[t.Category] = r.CategoryExpenses[t.Category].Add(entry.Magnitude)
			m.Expenses = m.Expenses.Add(entry.Magnitude)
		}
		r.Monthly[key] = m
	}
	r.NetIncome = r.TotalIncome.Sub(r.TotalExpenses)
	return r, nil
}

// Months returns the month keys in chronological order.
func (r Report) Months() []string {
	keys := make([]string, 0, len(r.Monthly))
	for k := range r.Monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RankedCategories returns category expenses ordered by amount descending,
// ties broken by name.
func (r Report) RankedCategories() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(r.CategoryExpenses))
	for name, amt := range r.CategoryExpenses {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Clone returns a copy whose maps are not shared with r.
func (r Report) Clone() Report {
	out := r
	out.CategoryExpenses = make(map[string]core.Money, len(r.CategoryExpenses))
	for k, v := range r.CategoryExpenses {
		out.CategoryExpenses[k] = v
	}
	out.Monthly = make(map[string]MonthTotals, len(r.Monthly))
	for k, v := range r.Monthly {
		out.Monthly[k] = v
	}
	return out
}
