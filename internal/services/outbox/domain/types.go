// Package domain holds the outbox message model and ports
package domain

import (
	"encoding/json"
	"time"

	perr "mentormatch/internal/platform/errors"
)

// Status of a message's delivery lifecycle
type Status string

// Statuses; the core only ever creates PENDING rows, the external
// dispatcher owns the transitions to SENT and FAILED
const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// MaxPayloadBytes bounds a message payload
const MaxPayloadBytes = 32 << 10

// Message is one delivery-pending event row, written in the same
// transaction as the business change it announces
type Message struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte // JSON
	OccurredAt    time.Time
	AvailableAt   time.Time
	RetryCount    int
	Status        Status
	LastError     *string
}

// Validate enforces the message invariants.
// Violations are programmer errors and must never be swallowed
func (m *Message) Validate() error {
	if m.EventID == "" {
		return perr.Invariantf("outbox message without event id")
	}
	if m.AggregateType == "" || m.EventType == "" {
		return perr.Invariantf("outbox message %s missing aggregate or event type", m.EventID)
	}
	if len(m.Payload) > MaxPayloadBytes {
		return perr.Invariantf("outbox payload %d bytes exceeds %d", len(m.Payload), MaxPayloadBytes)
	}
	if len(m.Payload) > 0 && !json.Valid(m.Payload) {
		return perr.Invariantf("outbox payload for %s is not valid JSON", m.EventID)
	}
	if m.RetryCount < 0 {
		return perr.Invariantf("negative retry count %d", m.RetryCount)
	}
	switch m.Status {
	case StatusPending, StatusSent, StatusFailed:
	default:
		return perr.Invariantf("invalid outbox status %q", m.Status)
	}
	return nil
}

// Schedule is a computed next-delivery slot.
// Skew is wall-elapsed minus monotonic-elapsed at computation time; it is
// surfaced so operators can detect clock drift
type Schedule struct {
	AvailableAt time.Time
	Delay       time.Duration
	Skew        time.Duration
}
