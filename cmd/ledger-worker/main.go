package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	memsheet "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	backfillStart := flag.String("backfill-start", "", "export stored transactions from this date (YYYY-MM-DD) and exit")
	backfillEnd := flag.String("backfill-end", "", "last date of the backfill (YYYY-MM-DD, default today)")
	flag.Parse()

	cfg, logger := cli.LoadConfig()
	logger = logger.WithComponent(log.ComponentWorker)

	exporter := newExporter(logger, cfg)
	w := worker.NewLedgerExportWorker(exporter, logger)

	if *backfillStart != "" {
		runBackfill(logger, cfg, w, *backfillStart, *backfillEnd)
		return
	}

	cli.ExitOnError(logger, "Configuration validation failed", cfg.ValidateWorker())
	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	cli.ExitOnError(logger, "Failed to initialize AMQP client", err)
	defer client.Close()

	caches := cache.NewManager()
	caches.Register(w.SeenCache())
	caches.StartCleanup(time.Hour)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		caches.Stop()
	})

	if err := client.ConsumeLedgerEvents(ctx, cfg.WorkerPrefetch, w.HandleLedgerEvent); err != nil && !errors.Is(err, context.Canceled) {
		cli.ExitOnError(logger, "Message consumption failed", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// newExporter writes to the configured spreadsheet, or keeps rows in
// memory when none is configured.
func newExporter(logger *log.Logger, cfg *config.Config) sheets.LedgerExporter {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
		return memsheet.New()
	}
	client, err := gsheet.New(context.Background(), gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		LedgerSheet:     cfg.GoogleLedgerSheet,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	cli.ExitOnError(logger, "Failed to initialize Google Sheets client", err)
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}

func runBackfill(logger *log.Logger, cfg *config.Config, w *worker.LedgerExportWorker, startRaw, endRaw string) {
	start, err := core.ParseDate(startRaw)
	cli.ExitOnError(logger, "Invalid -backfill-start", err)
	end := core.Today()
	if endRaw != "" {
		end, err = core.ParseDate(endRaw)
		cli.ExitOnError(logger, "Invalid -backfill-end", err)
	}

	ctx := context.Background()
	be := cli.InitBackend(ctx, logger, cfg)
	defer be.Cleanup()

	n, err := w.Backfill(ctx, be.Store, start, end)
	if err != nil {
		logger.Error("Backfill failed", "exported", n, log.FieldError, err)
		return
	}
	logger.Info("Backfill complete", "exported", n, "start", start.String(), "end", end.String())
}
