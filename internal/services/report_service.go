package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
)

// Publisher announces ledger writes to other processes.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error
	Close() error
}

// Options configures a ReportService. Zero values fall back to defaults.
type Options struct {
	Engine       analytics.Engine
	DefaultOwner string
	CacheSize    int
	CacheTTL     time.Duration
	Publisher    Publisher
	Metrics      *metrics.Metrics
	Logger       *log.Logger
}

// ReportService scopes ledger reads for the engine, caches the results by
// scope and keeps the caches consistent with writes made through it or
// announced by other processes.
type ReportService struct {
	store     ledger.Store
	engine    analytics.Engine
	owner     string
	reports   *cache.ScopedCache[analytics.Report]
	rollups   *cache.ScopedCache[[]analytics.BudgetRollup]
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger

	// mu orders cache fills against invalidations. generation is bumped on
	// every invalidation; results loaded across a bump are returned but not
	// cached.
	mu         sync.Mutex
	generation uint64
}

func NewReportService(store ledger.Store, opts Options) *ReportService {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ReportService{
		store:     store,
		engine:    opts.Engine,
		owner:     opts.DefaultOwner,
		reports:   cache.NewScopedCache[analytics.Report](opts.CacheSize, opts.CacheTTL),
		rollups:   cache.NewScopedCache[[]analytics.BudgetRollup](opts.CacheSize, opts.CacheTTL),
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    logger.WithComponent(log.ComponentReport),
	}
}

// Caches returns the service caches for periodic expiry.
func (s *ReportService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.reports, s.rollups}
}

// DefaultOwner is the owner applied to writes that do not name one.
func (s *ReportService) DefaultOwner() string {
	return s.owner
}

// Report returns the aggregate of every transaction inside scope.
func (s *ReportService) Report(ctx context.Context, scope cache.Scope) (analytics.Report, error) {
	if r, ok := s.reports.Get(scope); ok {
		s.metrics.CacheLookup("report", true)
		return r.Clone(), nil
	}
	s.metrics.CacheLookup("report", false)

	gen := s.currentGeneration()
	start := time.Now()
	txs, err := s.store.ListTransactions(ctx, scope.Filter())
	if err != nil {
		return analytics.Report{}, fmt.Errorf("load transactions: %w", err)
	}
	r, err := s.engine.ComputeReport(txs)
	if err != nil {
		s.computeFailed(ctx, log.OpReport, scope, err)
		return analytics.Report{}, err
	}
	s.metrics.ObserveComputation("report", start)

	s.fillIfCurrent(gen, func() { s.reports.Set(scope, r.Clone()) })
	s.logger.DebugContext(ctx, "Report computed",
		log.FieldScopeKey, scope.Key(),
		log.FieldCount, len(txs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return r, nil
}

// BudgetRollups compares owner's allocations for period with the spend
// recorded against them. An empty owner covers every owner.
func (s *ReportService) BudgetRollups(ctx context.Context, owner string, period core.Period) ([]analytics.BudgetRollup, error) {
	scope := cache.PeriodScope(owner, period)
	if r, ok := s.rollups.Get(scope); ok {
		s.metrics.CacheLookup("rollup", true)
		return cloneRollups(r), nil
	}
	s.metrics.CacheLookup("rollup", false)

	gen := s.currentGeneration()
	start := time.Now()
	allocs, err := s.store.ListBudgets(ctx, owner, &period)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	txs, err := s.store.ListTransactions(ctx, ledger.PeriodFilter(owner, period))
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	rollups, err := s.engine.ComputeBudgetRollups(allocs, txs)
	if err != nil {
		s.computeFailed(ctx, log.OpRollup, scope, err)
		return nil, err
	}
	s.metrics.ObserveComputation("rollup", start)

	s.fillIfCurrent(gen, func() { s.rollups.Set(scope, rollups) })
	return cloneRollups(rollups), nil
}

// PeriodOverview loads the report and the budget rollups of one month
// concurrently.
func (s *ReportService) PeriodOverview(ctx context.Context, owner string, period core.Period) (analytics.Overview, error) {
	ov := analytics.Overview{Owner: owner, Period: period}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.Report(gctx, cache.PeriodScope(owner, period))
		ov.Report = r
		return err
	})
	g.Go(func() error {
		b, err := s.BudgetRollups(gctx, owner, period)
		ov.Budgets = b
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.Overview{}, err
	}
	return ov, nil
}

func (s *ReportService) computeFailed(ctx context.Context, op string, scope cache.Scope, err error) {
	var ierr *core.DataIntegrityError
	if errors.As(err, &ierr) {
		s.metrics.IntegrityFailure()
	}
	s.logger.LogFields(ctx, log.LevelError, "Computation failed", log.NewFields().
		WithOperation(op).
		WithError(err).
		With(log.FieldScopeKey, scope.Key()))
}

// AddTransaction validates and stores t. An empty owner is replaced by the
// default owner.
func (s *ReportService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Owner == "" {
		t.Owner = s.owner
	}
	if err := s.validateTransaction(t); err != nil {
		return core.Transaction{}, err
	}
	saved, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.logger.LogFields(ctx, log.LevelInfo, "Transaction added", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(saved))
	s.changed(ctx, amqp.EntityTransaction, amqp.ActionCreated, cache.ChangeOf(saved.Owner, saved))
	return saved, nil
}

// UpdateTransaction replaces the stored record with t and returns the
// previous version.
func (s *ReportService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.Owner == "" {
		t.Owner = s.owner
	}
	if err := s.validateTransaction(t); err != nil {
		return core.Transaction{}, err
	}
	prev, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	s.logger.LogFields(ctx, log.LevelInfo, "Transaction updated", log.NewFields().
		WithOperation(log.OpUpdate).
		WithTransaction(t))
	if prev.Owner == t.Owner {
		s.changed(ctx, amqp.EntityTransaction, amqp.ActionUpdated, cache.ChangeOf(t.Owner, prev, t))
	} else {
		s.changed(ctx, amqp.EntityTransaction, amqp.ActionUpdated, cache.ChangeOf(prev.Owner, prev))
		s.changed(ctx, amqp.EntityTransaction, amqp.ActionUpdated, cache.ChangeOf(t.Owner, t))
	}
	return prev, nil
}

// DeleteTransaction removes a record and returns it.
func (s *ReportService) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.logger.LogFields(ctx, log.LevelInfo, "Transaction deleted", log.NewFields().
		WithOperation(log.OpDelete).
		WithTransaction(deleted))
	s.changed(ctx, amqp.EntityTransaction, amqp.ActionDeleted, cache.ChangeOf(deleted.Owner, deleted))
	return deleted, nil
}

func (s *ReportService) validateTransaction(t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.engine.Accepts(t); err != nil {
		return &core.ValidationError{Fields: map[string]string{"amount": err.Error()}}
	}
	return nil
}

// SetBudget creates or replaces the allocation for its owner, category and
// period. created is false when an existing allocation was replaced.
func (s *ReportService) SetBudget(ctx context.Context, b core.BudgetAllocation) (core.BudgetAllocation, bool, error) {
	if b.Owner == "" {
		b.Owner = s.owner
	}
	if err := b.Validate(s.engine.MinYear()); err != nil {
		return core.BudgetAllocation{}, false, err
	}
	saved, created, err := s.store.UpsertBudget(ctx, b)
	if err != nil {
		return core.BudgetAllocation{}, false, fmt.Errorf("save budget: %w", err)
	}
	action := amqp.ActionUpdated
	if created {
		action = amqp.ActionCreated
	}
	s.logger.LogFields(ctx, log.LevelInfo, "Budget saved", log.NewFields().
		WithOperation(log.OpUpdate).
		WithBudget(saved).
		With(log.FieldAction, action))
	s.changed(ctx, amqp.EntityBudget, action, cache.BudgetChange(saved))
	return saved, created, nil
}

func (s *ReportService) DeleteBudget(ctx context.Context, id int64) (core.BudgetAllocation, error) {
	deleted, err := s.store.DeleteBudget(ctx, id)
	if err != nil {
		return core.BudgetAllocation{}, fmt.Errorf("delete budget %d: %w", id, err)
	}
	s.logger.LogFields(ctx, log.LevelInfo, "Budget deleted", log.NewFields().
		WithOperation(log.OpDelete).
		WithBudget(deleted))
	s.changed(ctx, amqp.EntityBudget, amqp.ActionDeleted, cache.BudgetChange(deleted))
	return deleted, nil
}

// AddCategory stores a new category definition. Categories without a type
// apply to both directions.
func (s *ReportService) AddCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.Kind == "" {
		c.Kind = core.Both
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	saved, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("save category %q: %w", c.Name, err)
	}
	s.logger.InfoContext(ctx, "Category added", log.FieldCategory, saved.Name)
	// no cached result depends on definitions, only announce it
	s.publish(ctx, amqp.NewLedgerChangedMessage(amqp.EntityCategory, amqp.ActionCreated, "", nil, []string{saved.Name}))
	return saved, nil
}

// Invalidate drops every cached result the change may affect and returns
// how many entries were removed.
func (s *ReportService) Invalidate(c cache.Change) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.reports.Invalidate(c) + s.rollups.Invalidate(c)
}

func (s *ReportService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// fillIfCurrent runs fill only if no invalidation happened since gen was
// read. It holds the lock Invalidate takes.
func (s *ReportService) fillIfCurrent(gen uint64, fill func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	fill()
	return true
}

func (s *ReportService) changed(ctx context.Context, entity, action string, c cache.Change) {
	if n := s.Invalidate(c); n > 0 {
		s.logger.DebugContext(ctx, "Cache entries invalidated",
			log.FieldOwner, c.Owner,
			log.FieldCount, n)
	}
	s.publish(ctx, amqp.NewLedgerChangedMessage(entity, action, c.Owner, c.Dates, c.Categories))
}

// publish failures are logged only; the write already succeeded.
func (s *ReportService) publish(ctx context.Context, msg *amqp.LedgerChangedMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping ledger change event",
			log.FieldEntity, msg.Entity)
		return
	}
	err := s.publisher.PublishLedgerChange(ctx, msg)
	s.metrics.EventPublished(err)
	if err != nil {
		s.logger.LogFields(ctx, log.LevelError, "Failed to publish ledger change", log.NewFields().
			WithOperation(log.OpPublish).
			WithError(err).
			With(log.FieldMessageID, msg.ID).
			With(log.FieldEntity, msg.Entity).
			With(log.FieldAction, msg.Action))
	}
}

// Close releases the store and the publisher.
func (s *ReportService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close report service: %w", err)
	}
	return nil
}

func cloneRollups(in []analytics.BudgetRollup) []analytics.BudgetRollup {
	if in == nil {
		return nil
	}
	return append([]analytics.BudgetRollup(nil), in...)
}
