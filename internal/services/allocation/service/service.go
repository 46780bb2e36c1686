// Package service implements the atomic allocation coordinator: one
// transaction per attempt, idempotent replay, policy evaluation, sequence
// reservation, outbox append, and conflict recovery when a concurrent
// identical request wins the insert race
package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"mentormatch/internal/core/canon"
	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/platform/logger"
	"mentormatch/internal/services/allocation/domain"
	"mentormatch/internal/services/allocation/idem"
	"mentormatch/internal/services/allocation/policy"
	"mentormatch/internal/services/allocation/rank"
	"mentormatch/internal/services/allocation/request"
	"mentormatch/internal/services/allocation/seq"
	outboxdomain "mentormatch/internal/services/outbox/domain"
	roster "mentormatch/internal/services/roster/domain"
)

// Config tunes the cross-attempt retry loop
type Config struct {
	// MaxRetries bounds re-execution after transient transaction errors
	MaxRetries int

	// BackoffBase is the delay before the first retry; doubles per attempt
	BackoffBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 100 * time.Millisecond
	}
	return c
}

// Coordinator orchestrates the allocation pipeline.
// Safe for concurrent use; each call opens its own transactions
type Coordinator struct {
	log    logger.Logger
	pg     repokit.TxRunner
	roster repokit.Binder[roster.ReaderPort]
	alloc  repokit.Binder[domain.StoragePort]
	outbox repokit.Binder[outboxdomain.LedgerPort]
	norm   *request.Normalizer
	engine *policy.Engine
	ranker *rank.Ranker
	seq    *seq.Allocator
	cfg    Config

	now   func() time.Time
	sleep func(time.Duration)

	allocations        atomic.Int64
	conflictsRecovered atomic.Int64
	retries            atomic.Int64
}

// New constructs a Coordinator
func New(
	log logger.Logger,
	pg repokit.TxRunner,
	rosterRepo repokit.Binder[roster.ReaderPort],
	allocRepo repokit.Binder[domain.StoragePort],
	outboxRepo repokit.Binder[outboxdomain.LedgerPort],
	engine *policy.Engine,
	ranker *rank.Ranker,
	seqAlloc *seq.Allocator,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		log:    log,
		pg:     pg,
		roster: rosterRepo,
		alloc:  allocRepo,
		outbox: outboxRepo,
		norm:   request.New(),
		engine: engine,
		ranker: ranker,
		seq:    seqAlloc,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// SetNow overrides the time source for tests
func (c *Coordinator) SetNow(now func() time.Time) { c.now = now }

// SetSleep overrides the retry sleeper for tests
func (c *Coordinator) SetSleep(sleep func(time.Duration)) { c.sleep = sleep }

// Allocate implements domain.AllocatorPort
func (c *Coordinator) Allocate(ctx context.Context, raw domain.RawRequest) (domain.AllocationResult, error) {
	return c.run(ctx, raw, false)
}

// Preview implements domain.AllocatorPort; evaluates without writing
func (c *Coordinator) Preview(ctx context.Context, raw domain.RawRequest) (domain.AllocationResult, error) {
	return c.run(ctx, raw, true)
}

func (c *Coordinator) run(ctx context.Context, raw domain.RawRequest, dry bool) (domain.AllocationResult, error) {
	req, err := c.norm.Normalize(raw)
	if err != nil {
		code := domain.ErrValidation
		if perr.IsCode(err, perr.ErrorCodeJSON) {
			code = domain.ErrPayloadInvalid
		}
		return domain.AllocationResult{
			Status:    domain.StatusRejected,
			ErrorCode: code,
			Message:   err.Error(),
		}, nil
	}

	key, err := idem.Key(req)
	if err != nil {
		return domain.AllocationResult{
			Status:    domain.StatusRejected,
			ErrorCode: domain.ErrInternal,
			Message:   "could not derive idempotency key",
		}, perr.Wrap(err, perr.ErrorCodeUnknown, "derive idempotency key")
	}
	eventID := idem.EventID(key)
	ctx = logger.WithRequest(ctx, req.RequestID, key)
	log := logger.Ctx(ctx, c.log)

	for attempt := 0; ; attempt++ {
		res, err := c.attempt(ctx, req, key, eventID, dry)
		if err == nil {
			return res, nil
		}
		if !perr.Retryable(err) {
			log.Error().Err(err).Msg("allocation attempt failed")
			return domain.AllocationResult{
				Status:         domain.StatusRejected,
				ErrorCode:      domain.ErrInternal,
				Message:        err.Error(),
				IdempotencyKey: key,
			}, err
		}
		if attempt >= c.cfg.MaxRetries {
			log.Error().Err(err).Int("attempts", attempt+1).Msg("allocation retry budget exhausted")
			return domain.AllocationResult{
				Status:         domain.StatusRejected,
				ErrorCode:      domain.ErrRetryExhausted,
				Message:        "transient errors exhausted the retry budget",
				IdempotencyKey: key,
			}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "allocation retries exhausted after %d attempts", attempt+1)
		}
		c.retries.Add(1)
		wait := backoffFor(attempt, c.cfg.BackoffBase)
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Int64("retries_total", c.retries.Load()).
			Msg("transient allocation error, retrying")
		c.sleep(wait)
	}
}

// attempt runs one full transaction; business outcomes come back as a
// result with nil error, only infrastructure failures as errors
func (c *Coordinator) attempt(ctx context.Context, req domain.AllocationRequest, key, eventID string, dry bool) (domain.AllocationResult, error) {
	var (
		res    domain.AllocationResult
		winner int64
	)
	err := c.pg.Tx(ctx, func(q repokit.Queryer) error {
		allocs := c.alloc.Bind(q)
		people := c.roster.Bind(q)

		// idempotent replay: the first writer's row answers everyone after it
		prior, err := allocs.FindByKey(ctx, key)
		switch {
		case err == nil:
			res = replayResult(prior, eventID)
			return nil
		case !perr.IsCode(err, perr.ErrorCodeNotFound):
			return err
		}

		st, mentor, rej, err := c.selectPair(ctx, people, req, key)
		if err != nil {
			return err
		}
		if rej != nil {
			res = *rej
			return nil
		}

		if dry {
			res = domain.AllocationResult{
				Status:         domain.StatusDryRun,
				MentorID:       mentor.ID,
				Message:        "allocation would succeed",
				IdempotencyKey: key,
			}
			return nil
		}

		rsv, err := c.seq.Next(ctx, q, st)
		if err != nil {
			return err
		}
		if req.YearCode != "" && req.YearCode != rsv.YearCode {
			lg := logger.Ctx(ctx, c.log)
			lg.Warn().
				Str("requested_year", req.YearCode).
				Str("computed_year", rsv.YearCode).
				Msg("client year code mismatch, system year wins")
		}

		var reqID *string
		if req.RequestID != "" {
			reqID = &req.RequestID
		}
		rec := &domain.AllocationRecord{
			ID:             rsv.AllocationID,
			Code:           rsv.Code,
			YearCode:       rsv.YearCode,
			StudentID:      st.ID,
			MentorID:       mentor.ID,
			IdempotencyKey: key,
			RequestID:      reqID,
			Status:         domain.RecordStatusConfirmed,
			Metadata:       req.Metadata,
		}
		if err := allocs.Insert(ctx, rec); err != nil {
			return err
		}
		if err := allocs.IncrementMentorLoad(ctx, mentor.ID); err != nil {
			return err
		}

		at := c.now().UTC()
		payload, err := eventPayload(rec, eventID, at)
		if err != nil {
			return err
		}
		msg := &outboxdomain.Message{
			EventID:       eventID,
			AggregateType: "allocation",
			AggregateID:   strconv.FormatInt(rec.ID, 10),
			EventType:     "allocation.confirmed",
			Payload:       payload,
			OccurredAt:    at,
			AvailableAt:   at,
			Status:        outboxdomain.StatusPending,
		}
		if err := c.outbox.Bind(q).Add(ctx, msg); err != nil {
			return err
		}

		winner = mentor.ID
		res = domain.AllocationResult{
			Status:         domain.StatusOK,
			AllocationID:   rec.ID,
			AllocationCode: rec.Code,
			YearCode:       rec.YearCode,
			MentorID:       mentor.ID,
			Message:        "allocation confirmed",
			IdempotencyKey: key,
			OutboxEventID:  eventID,
		}
		return nil
	})
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeDuplicateKey) || perr.IsDuplicateKey(err) {
			return c.recoverConflict(ctx, req, key, eventID)
		}
		return domain.AllocationResult{}, err
	}
	if winner != 0 {
		c.ranker.NoteAssigned(key, winner)
		c.allocations.Add(1)
		lg := logger.Ctx(ctx, c.log)
		lg.Info().
			Str("allocation_code", res.AllocationCode).
			Int64("mentor_id", winner).
			Int64("allocations_total", c.allocations.Load()).
			Msg("allocation confirmed")
	}
	return res, nil
}

// selectPair locks the (student, mentor) pair and policy-checks it.
// With a named mentor the mentor row locks first; the candidate-set path
// locks the student and then all active mentors in id order.
// A non-nil result is a terminal rejection
func (c *Coordinator) selectPair(ctx context.Context, people roster.ReaderPort, req domain.AllocationRequest, key string) (*roster.Student, *roster.Mentor, *domain.AllocationResult, error) {
	if req.MentorID > 0 {
		m, err := people.MentorForUpdate(ctx, req.MentorID)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				r := rejection(key, domain.ErrMentorNotFound, "", err.Error())
				return nil, nil, &r, nil
			}
			return nil, nil, nil, err
		}
		st, err := c.lockStudent(ctx, people, req.StudentID)
		if err != nil || st == nil {
			return studentMiss(key, err)
		}
		v, err := c.engine.Evaluate(ctx, st, m)
		if err != nil {
			return nil, nil, nil, err
		}
		if !v.Approved {
			r := rejection(key, domain.ErrPolicyReject, v.Code, policyMessage(v))
			return nil, nil, &r, nil
		}
		return st, m, nil, nil
	}

	st, err := c.lockStudent(ctx, people, req.StudentID)
	if err != nil || st == nil {
		return studentMiss(key, err)
	}
	mentors, err := people.ActiveMentorsForUpdate(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	var cands []rank.Candidate
	for _, m := range mentors {
		v, err := c.engine.Evaluate(ctx, st, m)
		if err != nil {
			return nil, nil, nil, err
		}
		if v.Approved {
			cands = append(cands, rank.Candidate{Mentor: m, Trace: v.Trace()})
		}
	}
	if len(cands) == 0 {
		r := rejection(key, domain.ErrNoEligibleMentor, "", "no active mentor passes policy for this student")
		return nil, nil, &r, nil
	}
	return st, c.ranker.Rank(key, cands)[0].Mentor, nil, nil
}

// lockStudent returns (nil, nil) on a miss so callers can reject
func (c *Coordinator) lockStudent(ctx context.Context, people roster.ReaderPort, id string) (*roster.Student, error) {
	st, err := people.StudentForUpdate(ctx, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}

func studentMiss(key string, err error) (*roster.Student, *roster.Mentor, *domain.AllocationResult, error) {
	if err != nil {
		return nil, nil, nil, err
	}
	r := rejection(key, domain.ErrStudentNotFound, "", "student not found")
	return nil, nil, &r, nil
}

// recoverConflict runs after losing the unique-constraint race: the winner's
// row must exist, by key or by (student, year)
func (c *Coordinator) recoverConflict(ctx context.Context, req domain.AllocationRequest, key, eventID string) (domain.AllocationResult, error) {
	allocs := c.alloc.Bind(c.pg)
	rec, err := allocs.FindByKey(ctx, key)
	if err != nil && perr.IsCode(err, perr.ErrorCodeNotFound) {
		rec, err = allocs.FindByStudentYear(ctx, req.StudentID, c.now().UTC().Format("06"))
	}
	if err != nil {
		return domain.AllocationResult{
			Status:         domain.StatusRejected,
			ErrorCode:      domain.ErrInternal,
			Message:        "lost the insert race but found no winning row",
			IdempotencyKey: key,
		}, perr.Wrap(err, perr.ErrorCodeConflict, "conflict recovery found no winner")
	}
	c.conflictsRecovered.Add(1)
	lg := logger.Ctx(ctx, c.log)
	lg.Info().
		Str("allocation_code", rec.Code).
		Int64("conflicts_recovered_total", c.conflictsRecovered.Load()).
		Msg("lost allocation race, returning winner")
	return replayResult(rec, eventID), nil
}

func replayResult(rec *domain.AllocationRecord, eventID string) domain.AllocationResult {
	return domain.AllocationResult{
		Status:         domain.StatusAlreadyAssigned,
		AllocationID:   rec.ID,
		AllocationCode: rec.Code,
		YearCode:       rec.YearCode,
		MentorID:       rec.MentorID,
		Message:        "allocation already exists for this request",
		IdempotencyKey: rec.IdempotencyKey,
		OutboxEventID:  eventID,
	}
}

func rejection(key string, code domain.ErrCode, ruleCode, msg string) domain.AllocationResult {
	return domain.AllocationResult{
		Status:         domain.StatusRejected,
		ErrorCode:      code,
		RuleCode:       ruleCode,
		Message:        msg,
		IdempotencyKey: key,
	}
}

func policyMessage(v policy.Verdict) string {
	if note, ok := v.Details["note"].(string); ok && note != "" {
		return v.Code + ": " + note
	}
	return v.Code
}

// eventPayload snapshots the record into the outbox event body
func eventPayload(rec *domain.AllocationRecord, eventID string, at time.Time) ([]byte, error) {
	j, err := canon.JSON(map[string]any{
		"event_id":        eventID,
		"allocation_id":   rec.ID,
		"allocation_code": rec.Code,
		"year_code":       rec.YearCode,
		"student_id":      rec.StudentID,
		"mentor_id":       rec.MentorID,
		"idempotency_key": rec.IdempotencyKey,
		"status":          rec.Status,
		"occurred_at":     at.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "encode outbox payload")
	}
	return []byte(j), nil
}

func backoffFor(attempt int, base time.Duration) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	d := base << uint(attempt)
	if d <= 0 || d > 10*time.Minute {
		return 10 * time.Minute
	}
	return d
}
