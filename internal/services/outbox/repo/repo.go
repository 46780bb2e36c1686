// Package repo provides the outbox message repository
package repo

import (
	"context"
	"time"

	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/services/outbox/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.LedgerPort] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.LedgerPort { return &pg{q: q} }

// Add validates and inserts one message in the caller's transaction
func (s *pg) Add(ctx context.Context, msg *domain.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	const sqlq = `
		INSERT INTO outbox_messages (
			event_id, aggregate_type, aggregate_id, event_type, payload,
			occurred_at, available_at, retry_count, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err := s.q.Exec(ctx, sqlq,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		msg.OccurredAt, msg.AvailableAt, msg.RetryCount, msg.Status,
	)
	if err != nil {
		return perr.FromPostgresf(err, "insert outbox message %s", msg.EventID)
	}
	return nil
}

// ListDueForUpdate claims due PENDING rows without blocking on rows another
// dispatcher already holds
func (s *pg) ListDueForUpdate(ctx context.Context, limit int) ([]*domain.Message, error) {
	const sqlq = `
		SELECT event_id, aggregate_type, aggregate_id, event_type, payload,
		       occurred_at, available_at, retry_count, status, last_error
		  FROM outbox_messages
		 WHERE status = 'PENDING' AND available_at <= now()
		 ORDER BY available_at
		 LIMIT $1
		   FOR UPDATE SKIP LOCKED
	`
	rows, err := s.q.Query(ctx, sqlq, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list due outbox messages")
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.EventID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload,
			&m.OccurredAt, &m.AvailableAt, &m.RetryCount, &m.Status, &m.LastError,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan outbox message")
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkSent moves one PENDING message to its SENT terminal state
func (s *pg) MarkSent(ctx context.Context, eventID string) error {
	const sqlq = `
		UPDATE outbox_messages SET status = 'SENT', last_error = NULL
		 WHERE event_id = $1 AND status = 'PENDING'
	`
	return s.transition(ctx, sqlq, eventID)
}

// MarkFailed moves one PENDING message to its FAILED terminal state
func (s *pg) MarkFailed(ctx context.Context, eventID, reason string) error {
	const sqlq = `
		UPDATE outbox_messages SET status = 'FAILED', last_error = $2
		 WHERE event_id = $1 AND status = 'PENDING'
	`
	return s.transition(ctx, sqlq, eventID, reason)
}

// Reschedule pushes a PENDING message's availability forward and bumps its
// retry count
func (s *pg) Reschedule(ctx context.Context, eventID string, availableAt time.Time) error {
	const sqlq = `
		UPDATE outbox_messages
		   SET available_at = $2, retry_count = retry_count + 1
		 WHERE event_id = $1 AND status = 'PENDING'
	`
	return s.transition(ctx, sqlq, eventID, availableAt)
}

func (s *pg) transition(ctx context.Context, sqlq, eventID string, args ...any) error {
	tag, err := s.q.Exec(ctx, sqlq, append([]any{eventID}, args...)...)
	if err != nil {
		return perr.FromPostgresf(err, "update outbox message %s", eventID)
	}
	if tag.RowsAffected() != 1 {
		return perr.NotFoundf("no pending outbox message %s", eventID)
	}
	return nil
}
