package domain

import "context"

// ReaderPort is the roster read surface the allocation coordinator consumes.
// ForUpdate reads take row locks and must run inside the caller's transaction
type ReaderPort interface {
	StudentForUpdate(ctx context.Context, id string) (*Student, error)
	MentorForUpdate(ctx context.Context, id int64) (*Mentor, error)

	// ActiveMentorsForUpdate locks and returns all active mentors ordered by id,
	// for candidate-set allocation
	ActiveMentorsForUpdate(ctx context.Context) ([]*Mentor, error)

	Manager(ctx context.Context, id int64) (*Manager, error)
	ManagerCenters(ctx context.Context, id int64) ([]int, error)
}

// CenterLookup answers "which centers may this manager's mentors serve"
// nil result means the manager is missing or inactive
type CenterLookup interface {
	AllowedCenters(ctx context.Context, managerID int64) (map[int]struct{}, error)
}
