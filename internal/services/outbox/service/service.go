// Package service exposes the dispatcher-facing outbox ledger with
// backoff scheduling
package service

import (
	"context"
	"time"

	"mentormatch/internal/modkit/repokit"
	"mentormatch/internal/platform/clock"
	"mentormatch/internal/platform/logger"
	"mentormatch/internal/services/outbox/domain"
)

// Config tunes the reschedule backoff
type Config struct {
	// BackoffBase is the delay before the first redelivery
	BackoffBase time.Duration

	// BackoffCap bounds the exponential growth
	BackoffCap time.Duration

	// SkewWarn is the drift level that triggers an operator warning
	SkewWarn time.Duration
}

func (c Config) withDefaults() Config {
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Minute
	}
	if c.SkewWarn <= 0 {
		c.SkewWarn = time.Second
	}
	return c
}

// Ledger is the outbox service.
// The allocation coordinator writes through the repo binder inside its own
// transaction; everything here serves the external dispatcher
type Ledger struct {
	log logger.Logger
	clk clock.Clock
	pg  repokit.TxRunner
	rep repokit.Binder[domain.LedgerPort]
	cfg Config
}

// New constructs a Ledger
func New(log logger.Logger, clk clock.Clock, pg repokit.TxRunner, rep repokit.Binder[domain.LedgerPort], cfg Config) *Ledger {
	return &Ledger{log: log, clk: clk, pg: pg, rep: rep, cfg: cfg.withDefaults()}
}

// ListDueForUpdate claims up to limit due messages inside fn's transaction.
// Skip-locked semantics only hold while the transaction is open, so the
// dispatcher processes the batch inside fn
func (l *Ledger) ListDueForUpdate(ctx context.Context, limit int, fn func(ctx context.Context, port domain.LedgerPort, due []*domain.Message) error) error {
	return l.pg.Tx(ctx, func(q repokit.Queryer) error {
		port := l.rep.Bind(q)
		due, err := port.ListDueForUpdate(ctx, limit)
		if err != nil {
			return err
		}
		return fn(ctx, port, due)
	})
}

// MarkSent finalizes a delivered message
func (l *Ledger) MarkSent(ctx context.Context, eventID string) error {
	return l.rep.Bind(l.pg).MarkSent(ctx, eventID)
}

// MarkFailed finalizes a message whose delivery budget is exhausted
func (l *Ledger) MarkFailed(ctx context.Context, eventID, reason string) error {
	return l.rep.Bind(l.pg).MarkFailed(ctx, eventID, reason)
}

// Reschedule pushes a message to sched.AvailableAt
func (l *Ledger) Reschedule(ctx context.Context, eventID string, sched domain.Schedule) error {
	return l.rep.Bind(l.pg).Reschedule(ctx, eventID, sched.AvailableAt)
}

// NextAvailableAt computes the message's next delivery slot: the delay comes
// from the retry-count backoff measured on the monotonic clock, the stored
// timestamp from the wall clock, and the skew between the two is surfaced
func (l *Ledger) NextAvailableAt(msg *domain.Message) domain.Schedule {
	delay := backoffFor(msg.RetryCount, l.cfg.BackoffBase, l.cfg.BackoffCap)
	skew := l.clk.Skew()
	if skew > l.cfg.SkewWarn || skew < -l.cfg.SkewWarn {
		l.log.Warn().
			Str("event_id", msg.EventID).
			Dur("skew", skew).
			Msg("wall clock drifting from monotonic time")
	}
	return domain.Schedule{
		AvailableAt: l.clk.Now().Add(delay),
		Delay:       delay,
		Skew:        skew,
	}
}

// backoffFor doubles the base delay per prior retry, capped
func backoffFor(retries int, base, ceil time.Duration) time.Duration {
	if retries < 0 {
		retries = 0
	}
	if retries > 20 {
		retries = 20
	}
	d := base << uint(retries)
	if d <= 0 || d > ceil {
		return ceil
	}
	return d
}
