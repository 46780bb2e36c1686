// Package repo provides the roster repository implementation
package repo

import (
	"context"
	"strings"

	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/services/roster/domain"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[domain.ReaderPort] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.ReaderPort { return &pg{q: q} }

// StudentForUpdate locks and loads one student row; perr.ErrNotFound on miss
func (s *pg) StudentForUpdate(ctx context.Context, id string) (*domain.Student, error) {
	const sqlq = `
		SELECT student_id, gender, education_status, registration_center,
		       registration_status, group_code, school_code
		  FROM students
		 WHERE student_id = $1
		   FOR UPDATE
	`
	var st domain.Student
	err := s.q.QueryRow(ctx, sqlq, id).Scan(
		&st.ID, &st.Gender, &st.EducationStatus, &st.RegistrationCenter,
		&st.RegistrationStatus, &st.GroupCode, &st.SchoolCode,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, perr.NotFoundf("student %s not found", id)
		}
		return nil, perr.FromPostgresf(err, "load student %s", id)
	}
	return &st, nil
}

const mentorColumns = `
		m.mentor_id, m.gender, m.mentor_type, m.capacity, m.current_load,
		m.manager_id, m.active,
		(SELECT COALESCE(array_agg(g.group_code ORDER BY g.group_code), '{}')::int8[]
		   FROM mentor_allowed_groups g WHERE g.mentor_id = m.mentor_id),
		(SELECT COALESCE(array_agg(c.center_code ORDER BY c.center_code), '{}')::int8[]
		   FROM mentor_allowed_centers c WHERE c.mentor_id = m.mentor_id),
		(SELECT COALESCE(array_agg(sc.school_code ORDER BY sc.school_code), '{}')::int8[]
		   FROM mentor_school_codes sc WHERE sc.mentor_id = m.mentor_id)`

// MentorForUpdate locks and loads one mentor row with its allow-lists
func (s *pg) MentorForUpdate(ctx context.Context, id int64) (*domain.Mentor, error) {
	sqlq := `SELECT` + mentorColumns + `
		  FROM mentors m
		 WHERE m.mentor_id = $1
		   FOR UPDATE OF m
	`
	m, err := scanMentor(s.q.QueryRow(ctx, sqlq, id))
	if err != nil {
		if isNoRows(err) {
			return nil, perr.NotFoundf("mentor %d not found", id)
		}
		return nil, perr.FromPostgresf(err, "load mentor %d", id)
	}
	return m, nil
}

// ActiveMentorsForUpdate locks all active mentors in id order so concurrent
// candidate-set allocations acquire locks in a consistent order
func (s *pg) ActiveMentorsForUpdate(ctx context.Context) ([]*domain.Mentor, error) {
	sqlq := `SELECT` + mentorColumns + `
		  FROM mentors m
		 WHERE m.active
		 ORDER BY m.mentor_id
		   FOR UPDATE OF m
	`
	rows, err := s.q.Query(ctx, sqlq)
	if err != nil {
		return nil, perr.FromPostgres(err, "list active mentors")
	}
	defer rows.Close()

	var out []*domain.Mentor
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, perr.FromPostgres(err, "scan mentor")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Manager loads one manager; perr.ErrNotFound on miss
func (s *pg) Manager(ctx context.Context, id int64) (*domain.Manager, error) {
	const sqlq = `SELECT manager_id, active FROM managers WHERE manager_id = $1`
	var m domain.Manager
	if err := s.q.QueryRow(ctx, sqlq, id).Scan(&m.ID, &m.Active); err != nil {
		if isNoRows(err) {
			return nil, perr.NotFoundf("manager %d not found", id)
		}
		return nil, perr.FromPostgresf(err, "load manager %d", id)
	}
	return &m, nil
}

// ManagerCenters lists the centers a manager's mentors may serve
func (s *pg) ManagerCenters(ctx context.Context, id int64) ([]int, error) {
	const sqlq = `
		SELECT center_code FROM manager_centers
		 WHERE manager_id = $1
		 ORDER BY center_code
	`
	rows, err := s.q.Query(ctx, sqlq, id)
	if err != nil {
		return nil, perr.FromPostgresf(err, "load centers for manager %d", id)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanMentor(r scanner) (*domain.Mentor, error) {
	var (
		m       domain.Mentor
		groups  []int64
		centers []int64
		schools []int64
	)
	if err := r.Scan(
		&m.ID, &m.Gender, &m.Type, &m.Capacity, &m.CurrentLoad,
		&m.ManagerID, &m.Active,
		&groups, &centers, &schools,
	); err != nil {
		return nil, err
	}
	m.AllowedGroups = toInts(groups)
	m.AllowedCenters = toInts(centers)
	m.SchoolCodes = toInts(schools)
	return &m, nil
}

func toInts(xs []int64) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}

func isNoRows(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no rows")
}
