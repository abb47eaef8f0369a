package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

const (
	seenEventsSize = 10000
	seenEventsTTL  = 24 * time.Hour
)

// TransactionLister is the part of the store the backfill reads.
type TransactionLister interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
}

// LedgerExportWorker mirrors ledger events into a spreadsheet. Event ids
// already exported are remembered so broker redeliveries do not write the
// same row twice.
type LedgerExportWorker struct {
	exporter sheets.LedgerExporter
	seen     *cache.LRUCache[struct{}]
	logger   *log.Logger
}

func NewLedgerExportWorker(exporter sheets.LedgerExporter, logger *log.Logger) *LedgerExportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerExportWorker{
		exporter: exporter,
		seen:     cache.NewLRUCache[struct{}](seenEventsSize, seenEventsTTL),
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// SeenCache exposes the dedupe cache so the process can register it for
// periodic cleanup.
func (w *LedgerExportWorker) SeenCache() *cache.LRUCache[struct{}] {
	return w.seen
}

// HandleLedgerEvent processes a single ledger event from AMQP. A returned
// error makes the consumer requeue the message.
func (w *LedgerExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	return w.export(ctx, ev.ID.String(), RowFromEvent(ev))
}

func (w *LedgerExportWorker) export(ctx context.Context, key string, row sheets.LedgerRow) error {
	if _, ok := w.seen.Get(key); ok {
		w.logger.DebugContext(ctx, "Skipping already exported event", log.FieldEventID, key)
		return nil
	}

	ref, err := w.exporter.AppendLedgerRow(ctx, row)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	w.seen.Set(key, struct{}{})

	w.logger.InfoContext(ctx, "Exported ledger row",
		log.FieldEventID, key,
		log.FieldTransactionID, row.TransactionID,
		log.FieldDelta, row.Delta.String(),
		"sheets_ref", ref)
	return nil
}

// Backfill exports every stored transaction dated within [start, end],
// oldest first. It recovers rows when events were lost or the worker was
// down; rows already exported by this process are skipped.
func (w *LedgerExportWorker) Backfill(ctx context.Context, txs TransactionLister, start, end core.Date) (int, error) {
	all, err := txs.ListTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	var pending []core.Transaction
	for _, tx := range all {
		if tx.TransactionDate.Before(start.Time) || tx.TransactionDate.After(end.Time) {
			continue
		}
		pending = append(pending, tx)
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].TransactionDate.Equal(pending[j].TransactionDate.Time) {
			return pending[i].TransactionDate.Before(pending[j].TransactionDate.Time)
		}
		return pending[i].ID < pending[j].ID
	})

	exported := 0
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		key := fmt.Sprintf("backfill-%d", tx.ID)
		if err := w.export(ctx, key, rowFor(key, "backfill", tx, tx.SignedAmount(), "")); err != nil {
			return exported, err
		}
		exported++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"from", start.String(),
		"to", end.String(),
		"exported", exported)
	return exported, nil
}

// RowFromEvent converts an event to its sheet row. Delta is the change the
// event made to the ledger total: the signed amount on creation, its
// negation on deletion and the difference to the previous row on update.
func RowFromEvent(ev *amqp.LedgerEvent) sheets.LedgerRow {
	tx := ev.Transaction
	delta := tx.SignedAmount()
	switch ev.Type {
	case amqp.EventTransactionDeleted:
		delta = delta.Neg()
	case amqp.EventTransactionUpdated:
		if ev.Previous != nil {
			delta = delta.Sub(ev.Previous.SignedAmount())
		}
	}
	return rowFor(ev.ID.String(), string(ev.Type), tx, delta, ev.Posting)
}

func rowFor(eventID, event string, tx core.Transaction, delta core.Money, posting string) sheets.LedgerRow {
	return sheets.LedgerRow{
		EventID:       eventID,
		Event:         event,
		TransactionID: tx.ID,
		Date:          tx.TransactionDate,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Delta:         delta,
		Description:   tx.Description,
		ThirdParty:    tx.ThirdParty,
		AccountID:     tx.AccountID,
		Posting:       posting,
	}
}
