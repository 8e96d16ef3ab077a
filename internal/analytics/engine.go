// Package analytics aggregates ledger records into reports and budget
// rollups.
//
// Every function here is pure: inputs are read once, never mutated, and
// the result is a freshly allocated value. Amounts are normalized through
// core.Normalize before any arithmetic, so the aggregation code only sees
// non-negative magnitudes tagged with a Kind.
package analytics

import (
	"fintrack/internal/core"
)

// Engine computes reports under a fixed sign convention. The zero value
// uses core.ConventionAuto and core.MinBudgetYear.
type Engine struct {
	Convention    core.SignConvention
	MinBudgetYear int
}

// NewEngine returns an Engine for conv.
func NewEngine(conv core.SignConvention) Engine {
	return Engine{Convention: conv}
}

// ComputeReport aggregates transactions with the auto sign convention.
func ComputeReport(txs []core.Transaction) (Report, error) {
	return Engine{}.ComputeReport(txs)
}

// ComputeBudgetRollups rolls up allocations with the auto sign convention.
func ComputeBudgetRollups(allocs []core.BudgetAllocation, txs []core.Transaction) ([]BudgetRollup, error) {
	return Engine{}.ComputeBudgetRollups(allocs, txs)
}

// MinYear returns the earliest budget year the engine accepts.
func (e Engine) MinYear() int {
	if e.MinBudgetYear == 0 {
		return core.MinBudgetYear
	}
	return e.MinBudgetYear
}

func (e Engine) convention() core.SignConvention {
	if e.Convention == "" {
		return core.ConventionAuto
	}
	return e.Convention
}

// normalize converts one record, mapping failures to a DataIntegrityError
// that points at the record.
func (e Engine) normalize(i int, t core.Transaction) (core.Entry, error) {
	if t.Date.IsEmpty() {
		return core.Entry{}, &core.DataIntegrityError{Index: i, ID: t.ID, Field: "date", Reason: "missing date"}
	}
	entry, err := core.Normalize(t, e.convention())
	if err != nil {
		field := "amount"
		if t.Kind != "" && !t.Kind.IsValid() {
			field = "type"
		}
		return core.Entry{}, &core.DataIntegrityError{Index: i, ID: t.ID, Field: field, Reason: err.Error()}
	}
	return entry, nil
}

// Accepts reports whether t can be interpreted under the engine's sign
// convention.
func (e Engine) Accepts(t core.Transaction) error {
	_, err := core.Normalize(t, e.convention())
	return err
}
