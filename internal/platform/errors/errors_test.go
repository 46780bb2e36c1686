package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCodeOfAndWrapping(t *testing.T) {
	base := New(ErrorCodeNotFound, "gone")
	wrapped := Wrap(base, ErrorCodeDB, "load thing")

	if !IsCode(base, ErrorCodeNotFound) {
		t.Fatal("base lost its code")
	}
	// the outermost code wins
	if !IsCode(wrapped, ErrorCodeDB) {
		t.Fatalf("wrapped code = %v", CodeOf(wrapped))
	}
	if Root(wrapped).Error() != "gone" {
		t.Fatalf("root = %v", Root(wrapped))
	}
	if CodeOf(stderrs.New("plain")) != ErrorCodeUnknown {
		t.Fatal("foreign errors must map to unknown")
	}
}

func TestWithFieldAndOpAreCopyOnWrite(t *testing.T) {
	base := Validationf("bad input")
	withField := WithField(base, "student_id")

	e, ok := As(withField)
	if !ok || e.Field() != "student_id" {
		t.Fatalf("field = %+v", e)
	}
	orig, _ := As(base)
	if orig.Field() != "" {
		t.Fatal("mutator leaked into the original")
	}

	withOp := WithOp(base, "allocate")
	if e, _ := As(withOp); e.Op() != "allocate" {
		t.Fatalf("op = %q", e.Op())
	}
}

func TestInvariantClassification(t *testing.T) {
	err := Invariantf("sequence %d does not fit", 10000)
	if !IsInvariant(err) {
		t.Fatal("not classified as invariant")
	}
	if Retryable(err) {
		t.Fatal("invariants must never be retryable")
	}
}

func TestDBErrorCodeMapping(t *testing.T) {
	cases := []struct {
		state string
		want  ErrorCode
	}{
		{"23505", ErrorCodeDuplicateKey},
		{"23503", ErrorCodeInvalidArgument},
		{"23502", ErrorCodeValidation},
		{"40001", ErrorCodeDB},
		{"40P01", ErrorCodeDB},
		{"57P03", ErrorCodeUnavailable},
	}
	for _, tc := range cases {
		code, ok := DBErrorCode(&pgconn.PgError{Code: tc.state})
		if !ok || code != tc.want {
			t.Fatalf("state %s -> %v (ok=%v), want %v", tc.state, code, ok, tc.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("not pg")); ok {
		t.Fatal("non-pg error must not map")
	}
}

func TestIsDuplicateKeySeesThroughWrapping(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	wrapped := FromPostgres(pgErr, "insert allocation")

	if !IsDuplicateKey(wrapped) {
		t.Fatal("duplicate not detected through the wrap")
	}
	if !IsCode(wrapped, ErrorCodeDuplicateKey) {
		t.Fatalf("code = %v", CodeOf(wrapped))
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"commit rollback text", stderrs.New("commit unexpectedly resulted in rollback"), true},
		{"serialize text", stderrs.New("ERROR: could not serialize access due to concurrent update"), true},
		{"plain error", stderrs.New("boom"), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
		{"wrapped pg retryable", Wrap(&pgconn.PgError{Code: "40001"}, ErrorCodeDB, "tx"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable = %v, want %v", got, tc.want)
			}
		})
	}
}
