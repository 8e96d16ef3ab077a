// Package memory is an in-process ledger.Store. Every read returns a copy,
// so callers own the snapshot they are handed.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

type Store struct {
	mu      sync.Mutex
	nextID  int64
	txs     []core.Transaction
	budgets []core.BudgetAllocation
	cats    []core.Category
}

var _ ledger.Store = (*Store)(nil)

func New(cats []core.Category) *Store {
	s := &Store{}
	for _, c := range dedupeCategories(cats) {
		s.nextID++
		c.ID = s.nextID
		s.cats = append(s.cats, c)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "name[,type]" per line. The default set is used when the file is
// missing or empty.
func NewFromFiles(base string) *Store {
	cats := readCategories(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = ledger.DefaultCategories()
	}
	return New(cats)
}

// SeedSample loads a small demonstration ledger for owner: one July 2024
// month of signed transactions with matching budgets.
func (s *Store) SeedSample(owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample := []struct {
		day   int
		desc  string
		cents int64
		cat   string
	}{
		{1, "Salary", 500000, "Income"},
		{2, "Grocery Store", -15000, "Groceries"},
		{3, "Gas Station", -6000, "Gas"},
		{5, "Restaurant", -4500, "Food & Dining"},
		{7, "Electric Bill", -12000, "Bills & Utilities"},
	}
	for _, x := range sample {
		s.nextID++
		s.txs = append(s.txs, core.Transaction{
			ID:          s.nextID,
			Owner:       owner,
			Date:        core.NewDate(2024, 7, x.day),
			Description: x.desc,
			Amount:      core.Cents(x.cents),
			Category:    x.cat,
		})
	}
	budgets := []struct {
		cat   string
		cents int64
	}{
		{"Food & Dining", 50000},
		{"Groceries", 40000},
		{"Transportation", 30000},
		{"Entertainment", 20000},
		{"Bills & Utilities", 50000},
	}
	for _, b := range budgets {
		s.nextID++
		s.budgets = append(s.budgets, core.BudgetAllocation{
			ID:        s.nextID,
			Owner:     owner,
			Category:  b.cat,
			Allocated: core.Cents(b.cents),
			Period:    core.Period{Month: 7, Year: 2024},
		})
	}
}

func (s *Store) ListTransactions(_ context.Context, f ledger.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return []core.Transaction{}, nil
		}
		out = out[max(f.Offset, 0):]
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	return s.txs[i], nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(t.ID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, ledger.ErrNotFound)
	}
	prev := s.txs[i]
	s.txs[i] = t
	return prev, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ledger.ErrNotFound)
	}
	prev := s.txs[i]
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return prev, nil
}

func (s *Store) ListBudgets(_ context.Context, owner string, period *core.Period) ([]core.BudgetAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BudgetAllocation, 0, len(s.budgets))
	for _, b := range s.budgets {
		if owner != "" && b.Owner != owner {
			continue
		}
		if period != nil && b.Period != *period {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Period.Year != b.Period.Year {
			return a.Period.Year < b.Period.Year
		}
		if a.Period.Month != b.Period.Month {
			return a.Period.Month < b.Period.Month
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.BudgetAllocation) (core.BudgetAllocation, bool, error) {
	if err := b.Validate(core.MinBudgetYear); err != nil {
		return core.BudgetAllocation{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.budgets {
		if existing.Owner == b.Owner && existing.Category == b.Category && existing.Period == b.Period {
			b.ID = existing.ID
			s.budgets[i] = b
			return b, false, nil
		}
	}
	s.nextID++
	b.ID = s.nextID
	s.budgets = append(s.budgets, b)
	return b, true, nil
}

func (s *Store) DeleteBudget(_ context.Context, id int64) (core.BudgetAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.ID == id {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return b, nil
		}
	}
	return core.BudgetAllocation{}, fmt.Errorf("budget %d: %w", id, ledger.ErrNotFound)
}

// ListCategories returns categories ordered by type then name.
func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.cats...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("category %q: %w", c.Name, ledger.ErrCategoryExists)
		}
	}
	if c.Color == "" {
		c.Color = "#6366f1"
	}
	s.nextID++
	c.ID = s.nextID
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) Stats(_ context.Context) (ledger.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Stats{
		Transactions: int64(len(s.txs)),
		Budgets:      int64(len(s.budgets)),
		Categories:   int64(len(s.cats)),
	}, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) txIndex(id int64) int {
	for i, t := range s.txs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func readCategories(path string) []core.Category {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.Category
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, kind, _ := strings.Cut(line, ",")
		c := core.Category{Name: strings.TrimSpace(name), Kind: core.Both}
		if k := core.Kind(strings.ToLower(strings.TrimSpace(kind))); k != "" {
			c.Kind = k
		}
		out = append(out, c)
	}
	return out
}

// dedupeCategories drops blank, invalid and repeated names, preserving
// input order.
func dedupeCategories(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		if c.Validate() != nil {
			continue
		}
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}
