package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ports "fintrack/internal/sheets"
)

// Exporter keeps exported ledger rows in memory. It backs the worker when
// no spreadsheet is configured and doubles as a test fake.
type Exporter struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
	// Err, when set, is returned by every append.
	Err error
}

var _ ports.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// AppendLedgerRow stores the row and returns a synthetic row reference.
func (e *Exporter) AppendLedgerRow(_ context.Context, row ports.LedgerRow) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return "", e.Err
	}
	if row.EventID == "" {
		return "", errors.New("ledger row without event id")
	}
	e.rows = append(e.rows, row)
	return fmt.Sprintf("mem:%d", len(e.rows)), nil
}

// Rows returns a copy of the exported rows in append order.
func (e *Exporter) Rows() []ports.LedgerRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ports.LedgerRow(nil), e.rows...)
}
