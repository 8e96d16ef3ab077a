package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	created, err := s.CreateTransaction(ctx, core.Transaction{
		Owner:       "alice",
		Date:        core.NewDate(2024, 7, 2),
		Description: "Grocery Store",
		Amount:      core.Cents(-15000),
		Category:    "Groceries",
	})
	if err != nil || created.ID == 0 {
		t.Fatalf("unexpected create: %+v err=%v", created, err)
	}

	upd := created
	upd.Amount = core.Cents(-16000)
	prev, err := s.UpdateTransaction(ctx, upd)
	if err != nil || prev.Amount != core.Cents(-15000) {
		t.Fatalf("unexpected update: prev=%+v err=%v", prev, err)
	}
	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil || got.Amount != core.Cents(-16000) {
		t.Fatalf("unexpected get: %+v err=%v", got, err)
	}

	if _, err := s.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, created.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.DeleteTransaction(ctx, created.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCreateTransactionRejectsInvalid(t *testing.T) {
	s := New(nil)
	_, err := s.CreateTransaction(context.Background(), core.Transaction{Date: core.NewDate(2024, 7, 2)})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestListTransactionsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	s.SeedSample("alice")
	s.SeedSample("bob")

	all, _ := s.ListTransactions(ctx, ledger.Filter{Owner: "alice"})
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	if all[0].Description != "Electric Bill" || all[4].Description != "Salary" {
		t.Fatalf("expected newest first, got %s..%s", all[0].Description, all[4].Description)
	}

	income, _ := s.ListTransactions(ctx, ledger.Filter{Owner: "alice", Kind: core.Income})
	if len(income) != 1 || income[0].Category != "Income" {
		t.Fatalf("unexpected income listing %+v", income)
	}

	window, _ := s.ListTransactions(ctx, ledger.Filter{From: core.NewDate(2024, 7, 2), To: core.NewDate(2024, 7, 3)})
	if len(window) != 4 {
		t.Fatalf("expected 4 records in window, got %d", len(window))
	}

	limited, _ := s.ListTransactions(ctx, ledger.Filter{Category: "Gas", Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	// mutating the snapshot must not touch the store
	all[0].Description = "changed"
	again, _ := s.ListTransactions(ctx, ledger.Filter{Owner: "alice"})
	if again[0].Description != "Electric Bill" {
		t.Fatalf("store leaked its slice")
	}
}

func TestUpsertBudget(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	p := core.Period{Month: 7, Year: 2024}

	b, created, err := s.UpsertBudget(ctx, core.BudgetAllocation{Owner: "alice", Category: "Groceries", Allocated: core.Cents(40000), Period: p})
	if err != nil || !created {
		t.Fatalf("unexpected insert: created=%v err=%v", created, err)
	}
	b2, created, err := s.UpsertBudget(ctx, core.BudgetAllocation{Owner: "alice", Category: "Groceries", Allocated: core.Cents(45000), Period: p})
	if err != nil || created || b2.ID != b.ID {
		t.Fatalf("expected replace of %d, got %+v created=%v err=%v", b.ID, b2, created, err)
	}
	list, _ := s.ListBudgets(ctx, "alice", &p)
	if len(list) != 1 || list[0].Allocated != core.Cents(45000) {
		t.Fatalf("unexpected budgets %+v", list)
	}
	other := core.Period{Month: 8, Year: 2024}
	if list, _ := s.ListBudgets(ctx, "alice", &other); len(list) != 0 {
		t.Fatalf("expected no budgets in other period")
	}

	if _, _, err := s.UpsertBudget(ctx, core.BudgetAllocation{Category: "Groceries", Allocated: core.Cents(1), Period: core.Period{Month: 1, Year: 2019}}); err == nil {
		t.Fatalf("expected validation error for year 2019")
	}

	deleted, err := s.DeleteBudget(ctx, b.ID)
	if err != nil || deleted.Category != "Groceries" {
		t.Fatalf("unexpected delete %+v err=%v", deleted, err)
	}
	if _, err := s.DeleteBudget(ctx, b.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	s := New(ledger.DefaultCategories())
	cats, _ := s.ListCategories(ctx)
	if len(cats) != 18 {
		t.Fatalf("expected 18 defaults, got %d", len(cats))
	}
	if cats[0].Kind != core.Expense {
		t.Fatalf("expected expenses first, got %s", cats[0].Kind)
	}

	c, err := s.CreateCategory(ctx, core.Category{Name: " Pets ", Kind: core.Expense})
	if err != nil || c.Name != "Pets" || c.Color != "#6366f1" {
		t.Fatalf("unexpected create %+v err=%v", c, err)
	}
	if _, err := s.CreateCategory(ctx, core.Category{Name: "Pets", Kind: core.Both}); !errors.Is(err, ledger.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) != len(ledger.DefaultCategories()) {
		t.Fatalf("expected defaults when file missing, got %d", len(cats))
	}

	content := "# header\nRent,expense\nSalary,income\nRent\n\nMisc\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 3 {
		t.Fatalf("unexpected cats: %+v", cats)
	}
	// both < expense < income
	if cats[0].Name != "Misc" || cats[1].Name != "Rent" || cats[2].Name != "Salary" {
		t.Fatalf("unexpected order: %+v", cats)
	}
}

func TestStats(t *testing.T) {
	s := New(ledger.DefaultCategories())
	s.SeedSample("")
	st, err := s.Stats(context.Background())
	if err != nil || st.Transactions != 5 || st.Budgets != 5 || st.Categories != 18 {
		t.Fatalf("unexpected stats %+v err=%v", st, err)
	}
}

func TestListTransactionsPages(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	s.SeedSample("alice")

	cases := []struct {
		limit, offset int
		want          []string
	}{
		{2, 0, []string{"Electric Bill", "Restaurant"}},
		{2, 2, []string{"Gas Station", "Grocery Store"}},
		{2, 4, []string{"Salary"}},
		{2, 10, nil},
		{0, 3, []string{"Electric Bill", "Restaurant", "Gas Station", "Grocery Store", "Salary"}},
	}
	for i, tc := range cases {
		got, err := s.ListTransactions(ctx, ledger.Filter{Owner: "alice", Limit: tc.limit, Offset: tc.offset})
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("case %d: got %d records, want %d", i, len(got), len(tc.want))
		}
		for j, d := range tc.want {
			if got[j].Description != d {
				t.Fatalf("case %d: record %d = %q, want %q", i, j, got[j].Description, d)
			}
		}
	}
}

func TestListBudgetsOrderedLikeSQL(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	aug := core.Period{Month: 8, Year: 2024}
	jul := core.Period{Month: 7, Year: 2024}
	for _, b := range []core.BudgetAllocation{
		{Owner: "bob", Category: "Groceries", Allocated: core.Cents(100), Period: aug},
		{Owner: "alice", Category: "Rent", Allocated: core.Cents(100), Period: jul},
		{Owner: "alice", Category: "Groceries", Allocated: core.Cents(100), Period: aug},
		{Owner: "alice", Category: "Food", Allocated: core.Cents(100), Period: jul},
	} {
		if _, _, err := s.UpsertBudget(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListBudgets(ctx, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alice/Food/2024-07", "alice/Rent/2024-07", "alice/Groceries/2024-08", "bob/Groceries/2024-08"}
	if len(got) != len(want) {
		t.Fatalf("got %d budgets, want %d", len(got), len(want))
	}
	for i, b := range got {
		if key := b.Owner + "/" + b.Category + "/" + b.Period.String(); key != want[i] {
			t.Fatalf("budget %d = %s, want %s", i, key, want[i])
		}
	}
}
