// Package domain holds allocation types, statuses, and ports
package domain

import "time"

// Status labels a terminal allocation outcome
type Status string

// Statuses returned by the coordinator
const (
	StatusOK              Status = "OK"
	StatusAlreadyAssigned Status = "ALREADY_ASSIGNED"
	StatusDryRun          Status = "DRY_RUN"
	StatusRejected        Status = "REJECTED"
)

// ErrCode is the stable machine-readable code surfaced to callers
type ErrCode string

// Error codes surfaced to callers
const (
	ErrNone             ErrCode = ""
	ErrMentorNotFound   ErrCode = "MENTOR_NOT_FOUND"
	ErrStudentNotFound  ErrCode = "STUDENT_NOT_FOUND"
	ErrPolicyReject     ErrCode = "POLICY_REJECT"
	ErrNoEligibleMentor ErrCode = "NO_ELIGIBLE_MENTOR"
	ErrValidation       ErrCode = "VALIDATION_ERROR"
	ErrPayloadInvalid   ErrCode = "PAYLOAD_INVALID"
	ErrRetryExhausted   ErrCode = "RETRY_EXHAUSTED"
	ErrInternal         ErrCode = "INTERNAL"
)

// RecordStatusConfirmed is the only steady state this core creates
const RecordStatusConfirmed = "CONFIRMED"

// RawRequest is the loosely-typed inbound shape before normalization
// ids may arrive as strings, numbers, or bytes; payload as JSON text or a map
type RawRequest struct {
	StudentID any
	MentorID  any
	RequestID string
	Payload   any
	Metadata  map[string]any
	YearCode  string // advisory; the system-computed year always wins
}

// AllocationRequest is the canonical normalized request
// two semantically equal requests normalize to byte-identical forms
type AllocationRequest struct {
	StudentID string
	MentorID  int64 // 0 means "any eligible mentor"
	RequestID string
	Payload   map[string]any
	Metadata  map[string]any
	YearCode  string
}

// AllocationRecord is the immutable allocation row
// the unique constraint on IdempotencyKey is the concurrency-safety boundary
type AllocationRecord struct {
	ID             int64
	Code           string
	YearCode       string
	StudentID      string
	MentorID       int64
	IdempotencyKey string
	RequestID      *string
	Status         string
	PolicyCode     string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// AllocationResult is the coordinator's reply for every terminal outcome
type AllocationResult struct {
	Status         Status
	AllocationID   int64
	AllocationCode string
	YearCode       string
	MentorID       int64
	Message        string
	ErrorCode      ErrCode
	RuleCode       string
	IdempotencyKey string
	OutboxEventID  string
}
