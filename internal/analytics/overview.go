package analytics

import (
	"fintrack/internal/core"
)

// Overview pairs an owner's monthly report with the budget rollups of the
// same month.
type Overview struct {
	Owner   string         `json:"owner,omitempty"`
	Period  core.Period    `json:"period"`
	Report  Report         `json:"report"`
	Budgets []BudgetRollup `json:"budgets"`
}

// Overspent returns the rollups whose spend exceeded the allocation.
func (o Overview) Overspent() []BudgetRollup {
	var out []BudgetRollup
	for _, b := range o.Budgets {
		if b.Overspent() {
			out = append(out, b)
		}
	}
	return out
}
