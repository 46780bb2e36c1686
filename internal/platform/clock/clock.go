// Package clock separates wall time from monotonic time so schedule math can
// measure delays on a source that never jumps while storing timestamps the
// database can compare.
package clock

import (
	"sync"
	"time"
)

// Clock supplies a wall reading, a monotonic reading, and the skew between them
type Clock interface {
	// Now returns the wall clock; subject to NTP steps and operator changes
	Now() time.Time
	// Mono returns elapsed monotonic time since the clock was constructed
	Mono() time.Duration
	// Skew returns wall-elapsed minus monotonic-elapsed since construction.
	// A drifting wall clock shows up here; operators alert on it
	Skew() time.Duration
}

// System is the production Clock backed by the runtime's monotonic reading
type System struct {
	wallStart time.Time
	monoStart time.Time
}

// NewSystem constructs a System clock anchored at the current instant
func NewSystem() *System {
	now := time.Now()
	return &System{
		wallStart: now.Round(0), // strip the monotonic component from the wall anchor
		monoStart: now,
	}
}

// Now implements Clock
func (s *System) Now() time.Time { return time.Now() }

// Mono implements Clock
func (s *System) Mono() time.Duration { return time.Since(s.monoStart) }

// Skew implements Clock
func (s *System) Skew() time.Duration {
	wallElapsed := time.Now().Round(0).Sub(s.wallStart)
	return wallElapsed - s.Mono()
}

// Manual is a hand-driven Clock for tests
type Manual struct {
	mu        sync.Mutex
	wall      time.Time
	wallStart time.Time
	mono      time.Duration
}

// NewManual constructs a Manual clock starting at wall
func NewManual(wall time.Time) *Manual {
	return &Manual{wall: wall, wallStart: wall}
}

// Now implements Clock
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}

// Mono implements Clock
func (m *Manual) Mono() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mono
}

// Skew implements Clock; the manual clock drifts only via StepWall
func (m *Manual) Skew() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall.Sub(m.wallStart) - m.mono
}

// Advance moves both readings forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = m.wall.Add(d)
	m.mono += d
}

// StepWall moves only the wall clock, simulating an NTP jump
func (m *Manual) StepWall(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = m.wall.Add(d)
}
