package sheets

import (
	"context"
	"strconv"

	"fintrack/internal/core"
)

// LedgerRow is one line of the exported ledger. Delta is the balance effect
// of the event: the signed amount for creations, its negation for
// deletions.
type LedgerRow struct {
	EventID       string
	Event         string
	TransactionID int64
	Date          core.Date
	Type          core.TransactionType
	Amount        core.Money
	Delta         core.Money
	Description   string
	ThirdParty    string
	AccountID     *int64
	Posting       string
}

// Header is the column layout written by the exporters.
var Header = []string{
	"Date", "Event", "Transaction", "Type", "Amount", "Delta",
	"Description", "Third party", "Account", "Posting", "Event ID",
}

// Values renders the row in Header order. Money is written as fixed
// two-digit strings so the sheet never sees a float.
func (r LedgerRow) Values() []any {
	account := ""
	if r.AccountID != nil {
		account = strconv.FormatInt(*r.AccountID, 10)
	}
	return []any{
		r.Date.String(),
		r.Event,
		r.TransactionID,
		string(r.Type),
		r.Amount.String(),
		r.Delta.String(),
		r.Description,
		r.ThirdParty,
		account,
		r.Posting,
		r.EventID,
	}
}

// Ports for outbound adapters.
type (
	LedgerExporter interface {
		AppendLedgerRow(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}
)
