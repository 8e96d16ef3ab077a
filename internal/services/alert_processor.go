package services

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/sheets"
)

// AlertProcessor reacts to ledger change events: it drops stale cache
// entries, recomputes the budget rollups of every month the change touched
// and reports the categories that went over budget.
type AlertProcessor struct {
	reports  *ReportService
	exporter sheets.Exporter
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// NewAlertProcessor creates a processor. exporter may be nil.
func NewAlertProcessor(reports *ReportService, exporter sheets.Exporter, m *metrics.Metrics, logger *log.Logger) *AlertProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &AlertProcessor{
		reports:  reports,
		exporter: exporter,
		metrics:  m,
		logger:   logger.WithComponent(log.ComponentAlerts),
	}
}

// Handle processes one message. Records that cannot be aggregated are
// logged and skipped, since redelivery would not fix them; store and
// export failures are returned so the message is retried.
func (p *AlertProcessor) Handle(ctx context.Context, msg *amqp.LedgerChangedMessage) (err error) {
	defer func() { p.metrics.EventConsumed(err) }()

	n := p.reports.Invalidate(cache.Change{Owner: msg.Owner, Dates: msg.Dates, Categories: msg.Categories})
	p.logger.DebugContext(ctx, "Ledger change received",
		log.FieldMessageID, msg.ID,
		log.FieldEntity, msg.Entity,
		log.FieldAction, msg.Action,
		log.FieldOwner, msg.Owner,
		log.FieldCount, n)

	if msg.Entity == amqp.EntityCategory {
		return nil
	}

	for _, period := range msg.Periods() {
		if err := p.checkPeriod(ctx, msg.Owner, period); err != nil {
			return err
		}
	}
	return nil
}

// Reconcile recomputes one month from the store, dropping whatever the
// caches hold for it first. It covers change events lost while the worker
// was down.
func (p *AlertProcessor) Reconcile(ctx context.Context, owner string, period core.Period) error {
	n := p.reports.Invalidate(cache.Change{Owner: owner, Dates: []core.Date{period.Start()}})
	p.logger.LogFields(ctx, log.LevelInfo, "Reconciling period", log.NewFields().
		WithPeriod(owner, period).
		With(log.FieldCount, n))
	return p.checkPeriod(ctx, owner, period)
}

func (p *AlertProcessor) checkPeriod(ctx context.Context, owner string, period core.Period) error {
	ov, err := p.reports.PeriodOverview(ctx, owner, period)
	if err != nil {
		if isPermanent(err) {
			p.logger.LogFields(ctx, log.LevelError, "Skipping period with inconsistent data", log.NewFields().
				WithPeriod(owner, period).
				WithError(err))
			return nil
		}
		return fmt.Errorf("overview %s: %w", period, err)
	}

	for _, b := range ov.Overspent() {
		p.metrics.OverspendAlert(b.Category)
		p.logger.LogFields(ctx, log.LevelWarn, "Budget overspent", log.NewFields().
			WithPeriod(b.Owner, b.Period).
			With(log.FieldCategory, b.Category).
			With(log.FieldBudgetID, b.BudgetID).
			With("allocated_cents", b.Allocated.Cents).
			With("spent_cents", b.Spent.Cents).
			With("percent_used", b.PercentUsed()))
	}

	if p.exporter == nil {
		return nil
	}
	if err := p.exporter.ExportOverview(ctx, ov); err != nil {
		return fmt.Errorf("export %s: %w", period, err)
	}
	return nil
}

func isPermanent(err error) bool {
	var (
		ierr *core.DataIntegrityError
		cerr *core.ConfigurationError
	)
	return errors.As(err, &ierr) || errors.As(err, &cerr)
}
