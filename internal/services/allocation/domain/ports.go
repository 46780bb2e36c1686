package domain

import "context"

// AllocatorPort is the single inbound contract consumed by the web layer
type AllocatorPort interface {
	// Allocate runs the full transactional allocation pipeline
	Allocate(ctx context.Context, raw RawRequest) (AllocationResult, error)

	// Preview evaluates the same pipeline without allocating a sequence
	// number or writing anything
	Preview(ctx context.Context, raw RawRequest) (AllocationResult, error)
}

// StoragePort persists and looks up allocation records.
// Lookups return perr.ErrorCodeNotFound on miss; Insert surfaces
// perr.ErrorCodeDuplicateKey when the idempotency key already exists
type StoragePort interface {
	FindByKey(ctx context.Context, key string) (*AllocationRecord, error)
	FindByStudentYear(ctx context.Context, studentID, yearCode string) (*AllocationRecord, error)
	Insert(ctx context.Context, rec *AllocationRecord) error

	// IncrementMentorLoad bumps the mentor's current load inside the same
	// transaction as the insert
	IncrementMentorLoad(ctx context.Context, mentorID int64) error
}
