package store

import (
	"context"
	"testing"

	perr "mentormatch/internal/platform/errors"
)

type fakeTag struct{ s string }

func (t fakeTag) String() string      { return t.s }
func (t fakeTag) RowsAffected() int64 { return 1 }

type sliceRows struct {
	vals []int64
	i    int
}

func (r *sliceRows) Next() bool { r.i++; return r.i <= len(r.vals) }

func (r *sliceRows) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.vals[r.i-1]
	return nil
}

func (r *sliceRows) Err() error        { return nil }
func (r *sliceRows) Close()            {}
func (r *sliceRows) Columns() []string { return []string{"v"} }

type scalarRow struct{ val int64 }

func (r scalarRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.val
	return nil
}

type fakeQuerier struct {
	tag  string
	rows []int64
}

func (f *fakeQuerier) Exec(context.Context, string, ...any) (CommandTag, error) {
	return fakeTag{s: f.tag}, nil
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (Rows, error) {
	return &sliceRows{vals: f.rows}, nil
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) Row {
	return scalarRow{val: f.rows[0]}
}

func scanInt(r Row) (int64, error) {
	var v int64
	err := r.Scan(&v)
	return v, err
}

func TestScalar(t *testing.T) {
	q := &fakeQuerier{rows: []int64{42}}
	got, err := Scalar[int64](context.Background(), q, "SELECT 42")
	if err != nil {
		t.Fatalf("Scalar: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d", got)
	}
}

func TestOne(t *testing.T) {
	q := &fakeQuerier{rows: []int64{7}}
	got, err := One(context.Background(), q, scanInt, "SELECT v")
	if err != nil {
		t.Fatalf("One: %v", err)
	}
	if got != 7 {
		t.Fatalf("got %d", got)
	}
}

func TestOneEmptyIsNotFound(t *testing.T) {
	q := &fakeQuerier{}
	_, err := One(context.Background(), q, scanInt, "SELECT v")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestOneRejectsExtraRows(t *testing.T) {
	q := &fakeQuerier{rows: []int64{1, 2}}
	if _, err := One(context.Background(), q, scanInt, "SELECT v"); err == nil {
		t.Fatal("expected error for 2 rows")
	}
}

func TestMany(t *testing.T) {
	q := &fakeQuerier{rows: []int64{1, 2, 3}}
	got, err := Many(context.Background(), q, scanInt, "SELECT v")
	if err != nil {
		t.Fatalf("Many: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestExecOne(t *testing.T) {
	if err := ExecOne(context.Background(), &fakeQuerier{tag: "UPDATE 1"}, "UPDATE x"); err != nil {
		t.Fatalf("ExecOne: %v", err)
	}
	if err := ExecOne(context.Background(), &fakeQuerier{tag: "UPDATE 0"}, "UPDATE x"); err == nil {
		t.Fatal("expected error for 0 rows affected")
	}
}
