package clock

import (
	"testing"
	"time"
)

func TestSystemSkewStartsNearZero(t *testing.T) {
	c := NewSystem()
	if skew := c.Skew(); skew < -time.Second || skew > time.Second {
		t.Fatalf("fresh system clock skew = %v", skew)
	}
	if c.Mono() < 0 {
		t.Fatal("monotonic reading went backwards")
	}
}

func TestManualAdvanceKeepsClocksAligned(t *testing.T) {
	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	c := NewManual(start)

	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("wall = %v", got)
	}
	if got := c.Mono(); got != 90*time.Second {
		t.Fatalf("mono = %v", got)
	}
	if got := c.Skew(); got != 0 {
		t.Fatalf("aligned clocks report skew %v", got)
	}
}

func TestManualStepWallSurfacesSkew(t *testing.T) {
	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	c := NewManual(start)

	c.Advance(time.Minute)
	c.StepWall(30 * time.Second) // NTP jump forward
	if got := c.Skew(); got != 30*time.Second {
		t.Fatalf("skew = %v, want 30s", got)
	}

	c.StepWall(-45 * time.Second) // jump backward past the drift
	if got := c.Skew(); got != -15*time.Second {
		t.Fatalf("skew = %v, want -15s", got)
	}
	if got := c.Mono(); got != time.Minute {
		t.Fatalf("wall steps must not touch mono: %v", got)
	}
}
