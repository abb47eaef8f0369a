package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// EventType names what happened to a transaction.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		return true
	}
	return false
}

// LedgerEvent is published after a ledger write commits. It carries the
// transaction as it was at commit time so consumers never read back from
// the store.
type LedgerEvent struct {
	ID          uuid.UUID         `json:"id"`
	Type        EventType         `json:"type"`
	Transaction core.Transaction  `json:"transaction"`
	// Previous is the row before an update.
	Previous    *core.Transaction `json:"previous,omitempty"`
	// Posting is the balance posting status of the write ("applied",
	// "none", "account_missing").
	Posting     string            `json:"posting,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewLedgerEvent stamps a fresh event id and time.
func NewLedgerEvent(typ EventType, tx core.Transaction, posting string) *LedgerEvent {
	return &LedgerEvent{
		ID:          uuid.New(),
		Type:        typ,
		Transaction: tx,
		Posting:     posting,
		OccurredAt:  time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and sanity checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, fmt.Errorf("ledger event without id")
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown ledger event type %q", ev.Type)
	}
	return &ev, nil
}
