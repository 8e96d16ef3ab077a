package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/services"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	sheetsmem "fintrack/internal/sheets/memory"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker, os.Stdout)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker, os.Stdout)

	logger.Info("Starting fintrack-worker", "backend", cfg.DataBackend)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	result, err := cli.OpenBackend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to open ledger store", log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	// The worker only reads; change events come from the processes that write.
	svc := cli.NewReportService(cfg, result, nil, m, logger)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	for _, c := range svc.Caches() {
		caches.Register(c)
	}

	var exporter sheets.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		g, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		exporter = g
	} else {
		logger.Info("Google Sheets disabled - overviews kept in memory")
		exporter = sheetsmem.New()
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		caches.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close failed", log.FieldError, err)
		}
		if err := svc.Close(); err != nil {
			logger.Warn("Store close failed", log.FieldError, err)
		}
	})

	caches.StartCleanup(ctx, cfg.CacheCleanupInterval)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, m); err != nil {
				logger.Error("Metrics listener stopped", log.FieldError, err)
			}
		}()
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
	}

	processor := services.NewAlertProcessor(svc, exporter, m, logger)
	// Catch up on events missed while the worker was down, then periodically.
	if cfg.ReconcileInterval > 0 {
		go reconcileLoop(ctx, processor, cfg.DefaultOwner, cfg.ReconcileInterval, logger)
	}

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- client.ConsumeLedgerChanges(ctx, processor.Handle)
	}()

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			caches.Stop()
			_ = client.Close()
			_ = svc.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	cli.WaitForShutdown(ctx, done)
}

func reconcileLoop(ctx context.Context, p *services.AlertProcessor, owner string, interval time.Duration, logger *log.Logger) {
	reconcile := func() {
		period := core.Date{Time: time.Now()}.Period()
		if err := p.Reconcile(ctx, owner, period); err != nil && ctx.Err() == nil {
			logger.Error("Periodic reconcile failed", log.FieldError, err, "period", period.String())
		}
	}

	reconcile()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconcile()
		}
	}
}
