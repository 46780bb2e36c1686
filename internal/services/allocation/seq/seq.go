// Package seq reserves allocation sequence numbers and renders the public
// allocation code: 2-digit year + gender prefix + 4-digit sequence,
// 9 ASCII digits total
package seq

import (
	"context"
	"fmt"
	"time"

	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/platform/store"
	roster "mentormatch/internal/services/roster/domain"
)

// Gender prefixes baked into every allocation code
const (
	PrefixMale   = "357"
	PrefixFemale = "373"
)

// Reservation is one reserved sequence number with its rendered code
type Reservation struct {
	AllocationID int64
	YearCode     string
	Code         string
}

// Allocator reserves ids inside the caller's transaction.
// The time source is injectable for tests
type Allocator struct {
	now func() time.Time
}

// New constructs an Allocator on the given time source (nil means time.Now)
func New(now func() time.Time) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{now: now}
}

// Next reserves the next allocation id from the database sequence and
// renders the code for the student's gender. A sequence past 4 digits or a
// malformed year is an invariant violation, never a retryable condition
func (a *Allocator) Next(ctx context.Context, q repokit.Queryer, st *roster.Student) (Reservation, error) {
	id, err := store.Scalar[int64](ctx, q, `SELECT nextval('allocation_seq')`)
	if err != nil {
		return Reservation{}, perr.FromPostgres(err, "reserve allocation sequence")
	}
	if id < 0 || id > 9999 {
		return Reservation{}, perr.Invariantf("allocation sequence %d does not fit 4 digits", id)
	}

	year := a.now().UTC().Format("06")
	if len(year) != 2 {
		return Reservation{}, perr.Invariantf("year code %q is not 2 digits", year)
	}

	prefix := PrefixMale
	if st.Gender == roster.GenderFemale {
		prefix = PrefixFemale
	}
	return Reservation{
		AllocationID: id,
		YearCode:     year,
		Code:         fmt.Sprintf("%s%s%04d", year, prefix, id),
	}, nil
}
