package domain

import (
	"context"
	"time"
)

// LedgerPort is the persistence surface for outbox messages.
// Add runs in whatever transaction its Queryer is bound to; the remaining
// operations exist for the external dispatcher
type LedgerPort interface {
	// Add validates and inserts one PENDING message; a duplicate event id is
	// rejected by the unique constraint
	Add(ctx context.Context, msg *Message) error

	// ListDueForUpdate selects PENDING messages whose available_at has
	// passed, oldest first, skipping rows locked by other dispatchers
	ListDueForUpdate(ctx context.Context, limit int) ([]*Message, error)

	MarkSent(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID, reason string) error
	Reschedule(ctx context.Context, eventID string, availableAt time.Time) error
}
