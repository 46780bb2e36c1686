// Package repo provides the allocation record repository
package repo

import (
	"context"
	"strings"

	"mentormatch/internal/core/canon"
	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/services/allocation/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.StoragePort] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StoragePort { return &pg{q: q} }

const allocationColumns = `
		allocation_id, allocation_code, year_code, student_id, mentor_id,
		idempotency_key, request_id, status, policy_code, metadata, created_at`

// FindByKey looks an allocation up by idempotency key
func (s *pg) FindByKey(ctx context.Context, key string) (*domain.AllocationRecord, error) {
	sqlq := `SELECT` + allocationColumns + `
		  FROM allocations
		 WHERE idempotency_key = $1
	`
	rec, err := scanAllocation(s.q.QueryRow(ctx, sqlq, key))
	if err != nil {
		if isNoRows(err) {
			return nil, perr.NotFoundf("no allocation for key %s", key)
		}
		return nil, perr.FromPostgres(err, "load allocation by key")
	}
	return rec, nil
}

// FindByStudentYear is the conflict-recovery fallback lookup
func (s *pg) FindByStudentYear(ctx context.Context, studentID, yearCode string) (*domain.AllocationRecord, error) {
	sqlq := `SELECT` + allocationColumns + `
		  FROM allocations
		 WHERE student_id = $1 AND year_code = $2
		 ORDER BY created_at
		 LIMIT 1
	`
	rec, err := scanAllocation(s.q.QueryRow(ctx, sqlq, studentID, yearCode))
	if err != nil {
		if isNoRows(err) {
			return nil, perr.NotFoundf("no allocation for student %s in year %s", studentID, yearCode)
		}
		return nil, perr.FromPostgresf(err, "load allocation for student %s", studentID)
	}
	return rec, nil
}

// Insert writes one immutable allocation row.
// A duplicate idempotency key surfaces as perr.ErrorCodeDuplicateKey
func (s *pg) Insert(ctx context.Context, rec *domain.AllocationRecord) error {
	meta, err := canon.JSON(rec.Metadata)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode allocation metadata")
	}
	const sqlq = `
		INSERT INTO allocations (
			allocation_id, allocation_code, year_code, student_id, mentor_id,
			idempotency_key, request_id, status, policy_code, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err = s.q.Exec(ctx, sqlq,
		rec.ID, rec.Code, rec.YearCode, rec.StudentID, rec.MentorID,
		rec.IdempotencyKey, rec.RequestID, rec.Status, rec.PolicyCode, meta,
	)
	if err != nil {
		return perr.FromPostgresf(err, "insert allocation %d", rec.ID)
	}
	return nil
}

// IncrementMentorLoad bumps current_load in the caller's transaction
func (s *pg) IncrementMentorLoad(ctx context.Context, mentorID int64) error {
	const sqlq = `UPDATE mentors SET current_load = current_load + 1 WHERE mentor_id = $1`
	tag, err := s.q.Exec(ctx, sqlq, mentorID)
	if err != nil {
		return perr.FromPostgresf(err, "bump load for mentor %d", mentorID)
	}
	if tag.RowsAffected() != 1 {
		return perr.Invariantf("mentor %d vanished during allocation", mentorID)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanAllocation(r scanner) (*domain.AllocationRecord, error) {
	var (
		rec  domain.AllocationRecord
		meta []byte
	)
	if err := r.Scan(
		&rec.ID, &rec.Code, &rec.YearCode, &rec.StudentID, &rec.MentorID,
		&rec.IdempotencyKey, &rec.RequestID, &rec.Status, &rec.PolicyCode,
		&meta, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		m, err := canon.ParseObject(string(meta))
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode allocation metadata")
		}
		rec.Metadata = m
	}
	return &rec, nil
}

func isNoRows(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no rows")
}
