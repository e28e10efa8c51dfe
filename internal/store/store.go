package store

import (
	"context"
	"errors"

	"fortunebridge/internal/model"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// EventStore persists detected payment events. The collection name separates
// consult events ("fortunes") from minting events ("nfts").
type EventStore interface {
	// InsertEventIfAbsent stores the event unless a record with the same
	// (wallet address, receipt id, network) tuple already exists in the
	// collection. Reports whether a new record was written. The check and
	// insert are atomic with respect to concurrent callers.
	InsertEventIfAbsent(ctx context.Context, collection string, ev model.PaymentEvent) (bool, error)

	// FindEvents returns events matching the query filters.
	FindEvents(ctx context.Context, collection string, q model.EventQuery) ([]model.PaymentEvent, error)
}

// ConsultStore persists completed fortune readings.
type ConsultStore interface {
	PutConsult(ctx context.Context, c model.Consult) error
	GetConsult(ctx context.Context, id string) (model.Consult, error)
}

// MintStore persists mint outcomes.
type MintStore interface {
	PutMint(ctx context.Context, m model.MintRecord) error
}

// WebhookStore keeps the raw notification audit log.
type WebhookStore interface {
	PutWebhook(ctx context.Context, w model.WebhookAudit) error
}

// Store is the full document-store surface the service depends on.
type Store interface {
	EventStore
	ConsultStore
	MintStore
	WebhookStore
}
