package google

import (
	"fmt"
	"strings"

	"fintrack/internal/analytics"
)

// TabName returns "<base> YYYY-MM", suffixed with the owner when the
// overview is scoped to one.
func TabName(base string, ov analytics.Overview) string {
	name := fmt.Sprintf("%s %s", strings.TrimSpace(base), ov.Period.String())
	if owner := strings.TrimSpace(ov.Owner); owner != "" {
		name += " " + owner
	}
	return name
}

// OverviewRows lays out an overview as sheet rows: totals, the ranked
// category breakdown, then the budget table.
func OverviewRows(ov analytics.Overview) [][]any {
	r := ov.Report
	rows := [][]any{
		{"Period", ov.Period.String()},
		{"Owner", ov.Owner},
		{},
		{"Total income", r.TotalIncome.String()},
		{"Total expenses", r.TotalExpenses.String()},
		{"Net income", r.NetIncome.String()},
		{},
		{"Category", "Expenses"},
	}
	for _, c := range r.RankedCategories() {
		rows = append(rows, []any{c.Name, c.Amount.String()})
	}

	rows = append(rows, []any{}, []any{"Budget", "Allocated", "Spent", "Remaining", "Used %", "Status"})
	for _, b := range ov.Budgets {
		status := "ok"
		if b.Overspent() {
			status = "over"
		}
		rows = append(rows, []any{
			b.Category,
			b.Allocated.String(),
			b.Spent.String(),
			b.Remaining.String(),
			b.PercentUsed(),
			status,
		})
	}
	return rows
}
