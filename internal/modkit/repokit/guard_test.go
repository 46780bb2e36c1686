package repokit

import (
	"context"
	"errors"
	"testing"

	"mentormatch/internal/platform/testkit"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeGuarder struct{ err error }

func (f fakeGuarder) Guard(context.Context) error { return f.err }

func TestMustPing(t *testing.T) {
	testkit.MustNotPanic(t, func() {
		MustPing(context.Background(), "pg", fakePinger{})
	})
	testkit.MustPanic(t, func() {
		MustPing(context.Background(), "pg", fakePinger{err: errors.New("down")})
	})
	testkit.MustPanic(t, func() {
		MustPing(context.Background(), "pg", nil)
	})
}

func TestMustGuard(t *testing.T) {
	testkit.MustNotPanic(t, func() {
		MustGuard(context.Background(), fakeGuarder{})
	})
	testkit.MustPanic(t, func() {
		MustGuard(context.Background(), fakeGuarder{err: errors.New("pg: down")})
	})
}

func TestRequireQueryer(t *testing.T) {
	testkit.MustPanic(t, func() { RequireQueryer(nil) })
}
