// Package cache provides the TTL-cached manager center lookup feeding policy
package cache

import (
	"context"
	"sync"
	"time"

	perr "mentormatch/internal/platform/errors"
	"mentormatch/internal/services/roster/domain"
)

// Config holds the cache TTLs
// negative entries (missing or inactive manager) expire sooner than hits
type Config struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// Loader is the slice of the roster read port the cache needs
type Loader interface {
	Manager(ctx context.Context, id int64) (*domain.Manager, error)
	ManagerCenters(ctx context.Context, id int64) ([]int, error)
}

type entry struct {
	expires time.Time
	centers map[int]struct{} // nil for a negative entry
	found   bool
}

// ManagerCenters caches manager id -> allowed center set
// a single mutex guards both the map and the load; reads vastly outnumber writes
type ManagerCenters struct {
	mu      sync.Mutex
	loader  Loader
	cfg     Config
	now     func() time.Time
	entries map[int64]entry
}

// New constructs a ManagerCenters cache over a roster loader
func New(loader Loader, cfg Config) *ManagerCenters {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.NegativeTTL <= 0 || cfg.NegativeTTL > cfg.TTL {
		cfg.NegativeTTL = cfg.TTL / 5
	}
	return &ManagerCenters{
		loader:  loader,
		cfg:     cfg,
		now:     time.Now,
		entries: map[int64]entry{},
	}
}

// AllowedCenters implements domain.CenterLookup
// nil with no error means the manager is missing or inactive
// an empty non-nil set is a valid positive answer
func (c *ManagerCenters) AllowedCenters(ctx context.Context, managerID int64) (map[int]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[managerID]; ok && c.now().Before(e.expires) {
		if !e.found {
			return nil, nil
		}
		return e.centers, nil
	}

	mgr, err := c.loader.Manager(ctx, managerID)
	if err != nil && !perr.IsCode(err, perr.ErrorCodeNotFound) {
		// load failures are not cached
		return nil, err
	}
	if mgr == nil || !mgr.Active {
		c.entries[managerID] = entry{expires: c.now().Add(c.cfg.NegativeTTL)}
		return nil, nil
	}

	centers, err := c.loader.ManagerCenters(ctx, managerID)
	if err != nil {
		return nil, err
	}
	set := make(map[int]struct{}, len(centers))
	for _, cc := range centers {
		set[cc] = struct{}{}
	}
	c.entries[managerID] = entry{expires: c.now().Add(c.cfg.TTL), centers: set, found: true}
	return set, nil
}

// Clear invalidates the whole cache (tests and administrative refresh)
func (c *ManagerCenters) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[int64]entry{}
}

// SetNow overrides the time source for tests
func (c *ManagerCenters) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
