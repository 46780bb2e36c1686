package seq

import (
	"context"
	"strings"
	"testing"
	"time"

	"mentormatch/internal/modkit/repokit"
	perr "mentormatch/internal/platform/errors"
	roster "mentormatch/internal/services/roster/domain"
)

type fakeRow struct{ val int64 }

func (r fakeRow) Scan(dest ...any) error {
	if p, ok := dest[0].(*int64); ok {
		*p = r.val
	}
	return nil
}

type fakeQueryer struct {
	next int64
	sql  string
}

func (f *fakeQueryer) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	panic("unexpected Exec")
}

func (f *fakeQueryer) Query(context.Context, string, ...any) (repokit.Rows, error) {
	panic("unexpected Query")
}

func (f *fakeQueryer) QueryRow(_ context.Context, sql string, _ ...any) repokit.Row {
	f.sql = sql
	return fakeRow{val: f.next}
}

func fixed(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestNextRendersNineDigitCodes(t *testing.T) {
	at := time.Date(2004, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		seq    int64
		gender roster.Gender
		want   string
	}{
		{"male prefix", 42, roster.GenderMale, "043570042"},
		{"female prefix", 42, roster.GenderFemale, "043730042"},
		{"zero padded", 7, roster.GenderMale, "043570007"},
		{"max sequence", 9999, roster.GenderMale, "043579999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueryer{next: tc.seq}
			rsv, err := New(fixed(at)).Next(context.Background(), q, &roster.Student{ID: "s", Gender: tc.gender})
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if rsv.Code != tc.want {
				t.Fatalf("code = %s, want %s", rsv.Code, tc.want)
			}
			if len(rsv.Code) != 9 {
				t.Fatalf("code %q is not 9 digits", rsv.Code)
			}
			if rsv.YearCode != "04" {
				t.Fatalf("year = %s, want 04", rsv.YearCode)
			}
			if rsv.AllocationID != tc.seq {
				t.Fatalf("id = %d, want %d", rsv.AllocationID, tc.seq)
			}
			if !strings.Contains(q.sql, "nextval('allocation_seq')") {
				t.Fatalf("unexpected sequence sql: %s", q.sql)
			}
		})
	}
}

func TestNextSequenceOverflowIsInvariant(t *testing.T) {
	q := &fakeQueryer{next: 10000}
	_, err := New(fixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))).
		Next(context.Background(), q, &roster.Student{Gender: roster.GenderMale})
	if err == nil {
		t.Fatal("expected invariant error for sequence 10000")
	}
	if !perr.IsInvariant(err) {
		t.Fatalf("code = %v, want invariant (err %v)", perr.CodeOf(err), err)
	}
	// invariants must never be classified retryable
	if perr.Retryable(err) {
		t.Fatal("invariant error marked retryable")
	}
}

func TestNextUsesUTCYear(t *testing.T) {
	// local 2027-01-01 02:30 +05 is still 2026-12-31 21:30 UTC
	loc := time.FixedZone("east", 5*3600)
	at := time.Date(2027, 1, 1, 2, 30, 0, 0, loc) // 2026-12-31 21:30 UTC
	q := &fakeQueryer{next: 1}
	rsv, err := New(fixed(at)).Next(context.Background(), q, &roster.Student{Gender: roster.GenderMale})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rsv.YearCode != "26" {
		t.Fatalf("year = %s, want 26 (UTC)", rsv.YearCode)
	}
}
