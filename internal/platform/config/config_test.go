package config

import (
	"testing"
	"time"

	"mentormatch/internal/platform/testkit"
)

func TestPrefixScoping(t *testing.T) {
	t.Setenv("ALLOC_MAX_RETRIES", "5")
	t.Setenv("MAX_RETRIES", "1")

	if got := New().Prefix("ALLOC_").MayInt("MAX_RETRIES", 0); got != 5 {
		t.Fatalf("prefixed MayInt = %d, want 5", got)
	}
	if got := New().MayInt("MAX_RETRIES", 0); got != 1 {
		t.Fatalf("root MayInt = %d, want 1", got)
	}
}

func TestMayAccessorsFallBack(t *testing.T) {
	cfg := New().Prefix("TESTCFG_ABSENT_")

	if got := cfg.MayString("S", "def"); got != "def" {
		t.Fatalf("MayString = %q", got)
	}
	if got := cfg.MayInt("I", 7); got != 7 {
		t.Fatalf("MayInt = %d", got)
	}
	if got := cfg.MayFloat64("F", 0.5); got != 0.5 {
		t.Fatalf("MayFloat64 = %v", got)
	}
	if got := cfg.MayBool("B", true); !got {
		t.Fatal("MayBool lost the default")
	}
	if got := cfg.MayDuration("D", time.Minute); got != time.Minute {
		t.Fatalf("MayDuration = %v", got)
	}
}

func TestMayAccessorsParse(t *testing.T) {
	t.Setenv("TESTCFG_I", "42")
	t.Setenv("TESTCFG_F", "0.25")
	t.Setenv("TESTCFG_B", "true")
	t.Setenv("TESTCFG_D", "250ms")

	cfg := New().Prefix("TESTCFG_")
	if got := cfg.MayInt("I", 0); got != 42 {
		t.Fatalf("MayInt = %d", got)
	}
	if got := cfg.MayFloat64("F", 0); got != 0.25 {
		t.Fatalf("MayFloat64 = %v", got)
	}
	if !cfg.MayBool("B", false) {
		t.Fatal("MayBool = false")
	}
	if got := cfg.MayDuration("D", 0); got != 250*time.Millisecond {
		t.Fatalf("MayDuration = %v", got)
	}
}

func TestInvalidValuesFallBackToDefault(t *testing.T) {
	t.Setenv("TESTCFG_I", "not-a-number")
	t.Setenv("TESTCFG_D", "soon")

	cfg := New().Prefix("TESTCFG_")
	if got := cfg.MayInt("I", 3); got != 3 {
		t.Fatalf("MayInt = %d, want default", got)
	}
	if got := cfg.MayDuration("D", time.Second); got != time.Second {
		t.Fatalf("MayDuration = %v, want default", got)
	}
}

func TestMayEnum(t *testing.T) {
	t.Setenv("TESTCFG_STRATEGY", "bucket_round_robin")
	cfg := New().Prefix("TESTCFG_")

	got := cfg.MayEnum("STRATEGY", "NONE", "NONE", "DETERMINISTIC_JITTER", "BUCKET_ROUND_ROBIN")
	if got != "bucket_round_robin" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := cfg.MayEnum("MISSING", "NONE", "NONE"); got != "NONE" {
		t.Fatalf("MayEnum default = %q", got)
	}
}

func TestMustAccessorsPanic(t *testing.T) {
	testkit.MustPanic(t, func() { New().MustString("TESTCFG_DEFINITELY_MISSING") })
	testkit.MustPanic(t, func() { New().MustInt("TESTCFG_DEFINITELY_MISSING") })
	testkit.MustPanic(t, func() { New().Require("TESTCFG_DEFINITELY_MISSING") })

	t.Setenv("TESTCFG_BAD_ENUM", "nope")
	testkit.MustPanic(t, func() {
		New().Prefix("TESTCFG_").MayEnum("BAD_ENUM", "A", "A", "B")
	})
}
