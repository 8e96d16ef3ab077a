package ledger

import (
	"fintrack/internal/core"
)

// Filter scopes a transaction listing. Zero fields do not filter.
type Filter struct {
	Owner    string
	From     core.Date // inclusive
	To       core.Date // inclusive
	Category string
	Kind     core.Kind
	Limit    int
	Offset   int // skipped records; only applies with a Limit
}

// PeriodFilter returns a filter covering owner's records in p.
func PeriodFilter(owner string, p core.Period) Filter {
	return Filter{Owner: owner, From: p.Start(), To: p.End()}
}

// Matches reports whether t falls inside the filter. Limit and Offset are
// ignored.
func (f Filter) Matches(t core.Transaction) bool {
	if f.Owner != "" && t.Owner != f.Owner {
		return false
	}
	if !f.From.IsEmpty() && t.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsEmpty() && t.Date.After(f.To.Time) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Kind != "" && EffectiveKind(t) != f.Kind {
		return false
	}
	return true
}

// EffectiveKind returns the stored Kind, or the one implied by the sign.
func EffectiveKind(t core.Transaction) core.Kind {
	if t.Kind != "" {
		return t.Kind
	}
	return core.KindFromAmount(t.Amount)
}
