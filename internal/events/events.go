// Package events publishes ledger record lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/cashflow-ledger/internal/models"
)

// Event types.
const (
	TypeRecordCreated = "record.created"
	TypeRecordUpdated = "record.updated"
	TypeRecordDeleted = "record.deleted"
)

// RecordEvent describes a change to a stored record. Amount and dates are
// omitted for deletions.
type RecordEvent struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	TenantID   string           `json:"tenant_id"`
	ActorID    string           `json:"actor_id"`
	RecordID   int64            `json:"record_id"`
	Kind       models.Kind      `json:"kind,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	OccurredOn string           `json:"occurred_on,omitempty"`
	Source     string           `json:"source,omitempty"`
}

// NewRecordEvent builds an event for a stored record.
func NewRecordEvent(eventType, actorID string, record *models.Record, at time.Time) RecordEvent {
	e := RecordEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC(),
		TenantID:   record.TenantID,
		ActorID:    actorID,
		RecordID:   record.ID,
	}
	if eventType == TypeRecordDeleted {
		return e
	}
	amount := record.Amount
	e.Kind = record.Kind
	e.Amount = &amount
	e.Currency = record.Currency
	e.OccurredOn = record.OccurredOnString()
	e.Source = record.Source
	return e
}

// Publisher delivers record events.
type Publisher interface {
	Publish(ctx context.Context, event RecordEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, RecordEvent) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
