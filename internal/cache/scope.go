package cache

import (
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// Scope identifies the slice of the ledger a cached result was computed
// from. Empty fields are unbounded.
type Scope struct {
	Owner    string
	From     core.Date
	To       core.Date
	Category string
}

// PeriodScope covers owner's records in p.
func PeriodScope(owner string, p core.Period) Scope {
	return Scope{Owner: owner, From: p.Start(), To: p.End()}
}

// Key is a deterministic function of the scope. Owner and category are
// quoted so separators inside them cannot collide.
func (s Scope) Key() string {
	var b strings.Builder
	b.WriteString("owner=")
	b.WriteString(strconv.Quote(s.Owner))
	b.WriteString("|from=")
	b.WriteString(s.From.String())
	b.WriteString("|to=")
	b.WriteString(s.To.String())
	b.WriteString("|category=")
	b.WriteString(strconv.Quote(s.Category))
	return b.String()
}

// Filter returns the ledger filter selecting the scope's records.
func (s Scope) Filter() ledger.Filter {
	return ledger.Filter{Owner: s.Owner, From: s.From, To: s.To, Category: s.Category}
}

func (s Scope) inRange(t time.Time) bool {
	if !s.From.IsEmpty() && t.Before(s.From.Time) {
		return false
	}
	if !s.To.IsEmpty() && t.After(s.To.Time) {
		return false
	}
	return true
}

// Change describes a write to the ledger. Empty Dates or Categories mean
// the write may touch any date or category.
type Change struct {
	Owner      string
	Dates      []core.Date
	Categories []string
}

// ChangeOf builds the change covering every given transaction version,
// typically the record before and after an update.
func ChangeOf(owner string, txs ...core.Transaction) Change {
	c := Change{Owner: owner}
	for _, t := range txs {
		c.Dates = append(c.Dates, t.Date)
		c.Categories = append(c.Categories, t.Category)
	}
	return c
}

// BudgetChange covers a write to an allocation.
func BudgetChange(b core.BudgetAllocation) Change {
	return Change{Owner: b.Owner, Dates: []core.Date{b.Period.Start()}, Categories: []string{b.Category}}
}

// Overlaps reports whether c may alter a result computed for s.
func (s Scope) Overlaps(c Change) bool {
	if s.Owner != "" && s.Owner != c.Owner {
		return false
	}
	if len(c.Dates) > 0 {
		hit := false
		for _, d := range c.Dates {
			if s.inRange(d.Time) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if s.Category == "" || len(c.Categories) == 0 {
		return true
	}
	for _, cat := range c.Categories {
		if cat == s.Category {
			return true
		}
	}
	return false
}

type scopedEntry[T any] struct {
	scope Scope
	value T
}

// ScopedCache stores results by Scope and drops the ones a Change overlaps.
type ScopedCache[T any] struct {
	lru *LRUCache[scopedEntry[T]]
}

func NewScopedCache[T any](maxSize int, ttl time.Duration) *ScopedCache[T] {
	return &ScopedCache[T]{lru: NewLRUCache[scopedEntry[T]](maxSize, ttl)}
}

func (c *ScopedCache[T]) Get(s Scope) (T, bool) {
	e, ok := c.lru.Get(s.Key())
	return e.value, ok
}

func (c *ScopedCache[T]) Set(s Scope, v T) {
	c.lru.Set(s.Key(), scopedEntry[T]{scope: s, value: v})
}

// Invalidate removes every entry whose scope overlaps change and returns
// the number removed.
func (c *ScopedCache[T]) Invalidate(change Change) int {
	return c.lru.DeleteFunc(func(_ string, e scopedEntry[T]) bool {
		return e.scope.Overlaps(change)
	})
}

// Clear empties the cache.
func (c *ScopedCache[T]) Clear() int {
	return c.lru.DeleteFunc(func(string, scopedEntry[T]) bool { return true })
}

func (c *ScopedCache[T]) CleanExpired() int { return c.lru.CleanExpired() }

func (c *ScopedCache[T]) Size() int { return c.lru.Size() }
