package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var july = core.Period{Month: 7, Year: 2024}

// countingStore counts transaction loads and can inject records the
// memory store would refuse.
type countingStore struct {
	ledger.Store
	loads atomic.Int64
	extra []core.Transaction
}

func (s *countingStore) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	s.loads.Add(1)
	txs, err := s.Store.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, t := range s.extra {
		if f.Matches(t) {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []*amqp.LedgerChangedMessage
	err    error
	closed bool
}

func (p *fakePublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func (p *fakePublisher) published() []*amqp.LedgerChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.LedgerChangedMessage(nil), p.msgs...)
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestService(t *testing.T, engine analytics.Engine) (*ReportService, *countingStore, *fakePublisher) {
	t.Helper()
	mem := memory.New(nil)
	mem.SeedSample("alice")
	store := &countingStore{Store: mem}
	pub := &fakePublisher{}
	svc := NewReportService(store, Options{
		Engine:       engine,
		DefaultOwner: "alice",
		Publisher:    pub,
		Logger:       quietLogger(),
	})
	return svc, store, pub
}

func TestReportCachedAndInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t, analytics.Engine{})
	julyScope := cache.PeriodScope("alice", july)
	augScope := cache.PeriodScope("alice", core.Period{Month: 8, Year: 2024})

	r, err := svc.Report(ctx, julyScope)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.TotalIncome.Cents != 500000 || r.TotalExpenses.Cents != 37500 {
		t.Fatalf("unexpected totals %+v", r)
	}
	if _, err := svc.Report(ctx, julyScope); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Report(ctx, augScope); err != nil {
		t.Fatal(err)
	}
	if n := store.loads.Load(); n != 2 {
		t.Fatalf("expected 2 loads (july once, august once), got %d", n)
	}

	// callers own their copy
	r.CategoryExpenses["Groceries"] = core.Cents(1)

	_, err = svc.AddTransaction(ctx, core.Transaction{
		Date:        core.NewDate(2024, 7, 20),
		Description: "Bakery",
		Amount:      core.Cents(-1250),
		Category:    "Groceries",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	r, err = svc.Report(ctx, julyScope)
	if err != nil {
		t.Fatal(err)
	}
	if r.CategoryExpenses["Groceries"].Cents != 16250 {
		t.Fatalf("groceries = %v, want 162.50", r.CategoryExpenses["Groceries"])
	}
	if _, err := svc.Report(ctx, augScope); err != nil {
		t.Fatal(err)
	}
	if n := store.loads.Load(); n != 3 {
		t.Fatalf("expected only july to reload, got %d loads", n)
	}

	msgs := pub.published()
	if len(msgs) != 1 {
		t.Fatalf("expected one event, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Entity != amqp.EntityTransaction || m.Action != amqp.ActionCreated || m.Owner != "alice" {
		t.Fatalf("unexpected event %+v", m)
	}
	if len(m.Dates) != 1 || m.Dates[0].String() != "2024-07-20" {
		t.Fatalf("unexpected event dates %v", m.Dates)
	}
}

func TestWritesValidateInput(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		engine analytics.Engine
		tx     core.Transaction
		field  string
	}{
		{
			name:  "empty description",
			tx:    core.Transaction{Date: core.NewDate(2024, 7, 1), Amount: core.Cents(-100), Category: "Gas"},
			field: "description",
		},
		{
			name:  "zero amount",
			tx:    core.Transaction{Date: core.NewDate(2024, 7, 1), Description: "x", Category: "Gas"},
			field: "amount",
		},
		{
			name:   "signed amount under magnitude convention",
			engine: analytics.NewEngine(core.ConventionMagnitude),
			tx:     core.Transaction{Date: core.NewDate(2024, 7, 1), Description: "x", Amount: core.Cents(-100), Category: "Gas", Kind: core.Expense},
			field:  "amount",
		},
	}
	for i, tc := range cases {
		svc, _, pub := newTestService(t, tc.engine)
		_, err := svc.AddTransaction(ctx, tc.tx)
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d (%s): expected ValidationError, got %v", i, tc.name, err)
		}
		if _, ok := verr.Fields[tc.field]; !ok {
			t.Fatalf("case %d (%s): expected field %q in %v", i, tc.name, tc.field, verr.Fields)
		}
		if len(pub.published()) != 0 {
			t.Fatalf("case %d (%s): rejected write must not publish", i, tc.name)
		}
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _, pub := newTestService(t, analytics.Engine{})
	pub.err = errors.New("broker down")

	saved, err := svc.AddTransaction(context.Background(), core.Transaction{
		Date:        core.NewDate(2024, 7, 9),
		Description: "Cinema",
		Amount:      core.Cents(-1800),
		Category:    "Entertainment",
	})
	if err != nil || saved.ID == 0 {
		t.Fatalf("write should succeed without the broker: %+v %v", saved, err)
	}
}

func TestNoPublisher(t *testing.T) {
	mem := memory.New(nil)
	svc := NewReportService(mem, Options{Logger: quietLogger()})
	if _, err := svc.AddCategory(context.Background(), core.Category{Name: "Pets"}); err != nil {
		t.Fatalf("add category: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func rollupFor(t *testing.T, rs []analytics.BudgetRollup, category string) analytics.BudgetRollup {
	t.Helper()
	for _, r := range rs {
		if r.Category == category {
			return r
		}
	}
	t.Fatalf("no rollup for %s in %+v", category, rs)
	return analytics.BudgetRollup{}
}

func TestBudgetRollupsFollowSetBudget(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t, analytics.Engine{})

	rs, err := svc.BudgetRollups(ctx, "alice", july)
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}
	if len(rs) != 5 {
		t.Fatalf("expected 5 rollups, got %d", len(rs))
	}
	g := rollupFor(t, rs, "Groceries")
	if g.Spent.Cents != 15000 || g.Remaining.Cents != 25000 {
		t.Fatalf("unexpected groceries rollup %+v", g)
	}

	saved, created, err := svc.SetBudget(ctx, core.BudgetAllocation{
		Category:  "Groceries",
		Allocated: core.Cents(10000),
		Period:    july,
	})
	if err != nil || created || saved.Owner != "alice" {
		t.Fatalf("expected replacement of alice's allocation: %+v created=%v err=%v", saved, created, err)
	}

	rs, err = svc.BudgetRollups(ctx, "alice", july)
	if err != nil {
		t.Fatal(err)
	}
	g = rollupFor(t, rs, "Groceries")
	if g.Remaining.Cents != -5000 || !g.Overspent() {
		t.Fatalf("expected overspent groceries after lowering budget, got %+v", g)
	}

	msgs := pub.published()
	if len(msgs) != 1 || msgs[0].Entity != amqp.EntityBudget || msgs[0].Action != amqp.ActionUpdated {
		t.Fatalf("unexpected events %+v", msgs)
	}

	if _, err := svc.DeleteBudget(ctx, saved.ID); err != nil {
		t.Fatalf("delete budget: %v", err)
	}
	rs, _ = svc.BudgetRollups(ctx, "alice", july)
	if len(rs) != 4 {
		t.Fatalf("expected 4 rollups after delete, got %d", len(rs))
	}
}

func TestSetBudgetHonoursMinYear(t *testing.T) {
	svc, _, _ := newTestService(t, analytics.Engine{MinBudgetYear: 2023})
	_, _, err := svc.SetBudget(context.Background(), core.BudgetAllocation{
		Category:  "Gas",
		Allocated: core.Cents(100),
		Period:    core.Period{Month: 1, Year: 2022},
	})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Fields["period"] == "" {
		t.Fatalf("expected period validation error, got %v", err)
	}
}

func TestPeriodOverview(t *testing.T) {
	svc, _, _ := newTestService(t, analytics.Engine{})
	ov, err := svc.PeriodOverview(context.Background(), "alice", july)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Report.NetIncome.Cents != 462500 || len(ov.Budgets) != 5 || ov.Period != july {
		t.Fatalf("unexpected overview %+v", ov)
	}
	if len(ov.Overspent()) != 0 {
		t.Fatalf("sample data should not be overspent: %+v", ov.Overspent())
	}
}

func TestUpdateAcrossOwnersInvalidatesBoth(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t, analytics.Engine{})

	bob := cache.PeriodScope("bob", july)
	if _, err := svc.Report(ctx, bob); err != nil {
		t.Fatal(err)
	}
	txs, _ := store.ListTransactions(ctx, ledger.Filter{Owner: "alice", Category: "Gas"})
	if len(txs) != 1 {
		t.Fatalf("expected one sample gas record, got %d", len(txs))
	}
	loads := store.loads.Load()

	moved := txs[0]
	moved.Owner = "bob"
	prev, err := svc.UpdateTransaction(ctx, moved)
	if err != nil || prev.Owner != "alice" {
		t.Fatalf("update: prev=%+v err=%v", prev, err)
	}
	r, err := svc.Report(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if store.loads.Load() != loads+1 || r.TotalExpenses.Cents != 6000 {
		t.Fatalf("bob's report should be recomputed with the moved record: %+v", r)
	}

	msgs := pub.published()
	if len(msgs) != 2 || msgs[0].Owner != "alice" || msgs[1].Owner != "bob" {
		t.Fatalf("expected one event per owner, got %+v", msgs)
	}

	if _, err := svc.DeleteTransaction(ctx, moved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.DeleteTransaction(ctx, moved.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddCategory(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t, analytics.Engine{})

	c, err := svc.AddCategory(ctx, core.Category{Name: "Pets"})
	if err != nil || c.Kind != core.Both {
		t.Fatalf("unexpected category %+v err=%v", c, err)
	}
	if _, err := svc.AddCategory(ctx, core.Category{Name: "Pets"}); !errors.Is(err, ledger.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}
	msgs := pub.published()
	if len(msgs) != 1 || msgs[0].Entity != amqp.EntityCategory {
		t.Fatalf("unexpected events %+v", msgs)
	}
}

func TestIntegrityFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, analytics.Engine{})
	store.extra = []core.Transaction{{
		ID: 99, Owner: "alice", Date: core.NewDate(2024, 7, 4), Description: "broken", Category: "Gas",
	}}

	for i := 0; i < 2; i++ {
		_, err := svc.Report(ctx, cache.PeriodScope("alice", july))
		var ierr *core.DataIntegrityError
		if !errors.As(err, &ierr) || ierr.ID != 99 {
			t.Fatalf("attempt %d: expected integrity error for record 99, got %v", i, err)
		}
	}
	if store.loads.Load() != 2 {
		t.Fatalf("failed computations must not be cached")
	}
}

func TestClose(t *testing.T) {
	svc, _, pub := newTestService(t, analytics.Engine{})
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Fatalf("publisher not closed")
	}
}

// writeDuringLoadStore runs onLoad once, after the inner store answered
// but before the caller sees the rows.
type writeDuringLoadStore struct {
	ledger.Store
	once   sync.Once
	onLoad func()
}

func (s *writeDuringLoadStore) ListTransactions(ctx context.Context, f ledger.Filter) ([]core.Transaction, error) {
	txs, err := s.Store.ListTransactions(ctx, f)
	if s.onLoad != nil {
		s.once.Do(s.onLoad)
	}
	return txs, err
}

func TestWriteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	mem := memory.New(nil)
	mem.SeedSample("alice")
	store := &writeDuringLoadStore{Store: mem}
	svc := NewReportService(store, Options{DefaultOwner: "alice", Logger: quietLogger()})
	scope := cache.PeriodScope("alice", july)

	store.onLoad = func() {
		if _, err := svc.AddTransaction(ctx, core.Transaction{
			Date: core.NewDate(2024, 7, 20), Description: "Bonus", Amount: core.Cents(10000), Category: "Income",
		}); err != nil {
			t.Errorf("add: %v", err)
		}
	}

	stale, err := svc.Report(ctx, scope)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if stale.TotalIncome.Cents != 500000 {
		t.Fatalf("first load should predate the write, got %v", stale.TotalIncome)
	}
	fresh, err := svc.Report(ctx, scope)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if fresh.TotalIncome.Cents != 510000 {
		t.Fatalf("stale report served from cache: income %v", fresh.TotalIncome)
	}
}

func TestFillIfCurrent(t *testing.T) {
	svc, _, _ := newTestService(t, analytics.Engine{})

	gen := svc.currentGeneration()
	if !svc.fillIfCurrent(gen, func() {}) {
		t.Fatalf("fill without an invalidation should run")
	}
	svc.Invalidate(cache.Change{Owner: "alice"})
	filled := false
	if svc.fillIfCurrent(gen, func() { filled = true }) || filled {
		t.Fatalf("fill after an invalidation must be skipped")
	}
}

func TestConcurrentReadsAndWritesSettleFresh(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, analytics.Engine{})
	scope := cache.PeriodScope("alice", july)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := svc.Report(ctx, scope); err != nil {
					t.Errorf("report: %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			if _, err := svc.AddTransaction(ctx, core.Transaction{
				Date: core.NewDate(2024, 7, 10), Description: "Snack", Amount: core.Cents(-100), Category: "Food & Dining",
			}); err != nil {
				t.Errorf("add: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	txs, err := store.Store.ListTransactions(ctx, scope.Filter())
	if err != nil {
		t.Fatal(err)
	}
	want, err := analytics.ComputeReport(txs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Report(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalExpenses != want.TotalExpenses || want.TotalExpenses.Cents != 37500+2000 {
		t.Fatalf("cached expenses %v, store says %v", got.TotalExpenses, want.TotalExpenses)
	}
}

func TestSignOnlyEditsMatchAcrossBackends(t *testing.T) {
	ctx := context.Background()
	sqliteRepo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqliteRepo.Close() })

	backends := []struct {
		name  string
		store ledger.Store
	}{
		{"memory", memory.New(nil)},
		{"sqlite", sqliteRepo},
	}
	sept := core.Period{Month: 9, Year: 2024}
	for _, b := range backends {
		svc := NewReportService(b.store, Options{DefaultOwner: "dana", Logger: quietLogger()})

		added, err := svc.AddTransaction(ctx, core.Transaction{
			Date: core.NewDate(2024, 9, 3), Description: "Refund", Amount: core.Cents(-15000), Category: "Shopping",
		})
		if err != nil {
			t.Fatalf("%s: add: %v", b.name, err)
		}
		stored, err := b.store.GetTransaction(ctx, added.ID)
		if err != nil {
			t.Fatalf("%s: get: %v", b.name, err)
		}
		if stored.Kind != "" {
			t.Fatalf("%s: kind should stay unset, got %q", b.name, stored.Kind)
		}
		stored.Amount = core.Cents(20000)
		if _, err := svc.UpdateTransaction(ctx, stored); err != nil {
			t.Fatalf("%s: update: %v", b.name, err)
		}

		r, err := svc.Report(ctx, cache.PeriodScope("dana", sept))
		if err != nil {
			t.Fatalf("%s: report: %v", b.name, err)
		}
		if r.TotalIncome.Cents != 20000 || !r.TotalExpenses.IsZero() {
			t.Fatalf("%s: income=%v expenses=%v, want 200.00/0.00", b.name, r.TotalIncome, r.TotalExpenses)
		}
	}
}
