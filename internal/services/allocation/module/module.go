// Package module wires the allocation coordinator from core deps
package module

import (
	"context"
	"time"

	"mentormatch/internal/modkit"
	"mentormatch/internal/modkit/repokit"
	"mentormatch/internal/platform/config"
	"mentormatch/internal/services/allocation/domain"
	"mentormatch/internal/services/allocation/policy"
	"mentormatch/internal/services/allocation/rank"
	allocrepo "mentormatch/internal/services/allocation/repo"
	"mentormatch/internal/services/allocation/seq"
	"mentormatch/internal/services/allocation/service"
	outboxrepo "mentormatch/internal/services/outbox/repo"
	"mentormatch/internal/services/roster/cache"
	rosterdomain "mentormatch/internal/services/roster/domain"
	rosterrepo "mentormatch/internal/services/roster/repo"
)

// Options collects everything the coordinator wires together
type Options struct {
	Coordinator service.Config
	Fairness    rank.Config
	Cache       cache.Config
}

// Module bundles the allocation coordinator and its collaborators
type Module struct {
	svc     *service.Coordinator
	centers *cache.ManagerCenters
}

// New constructs the allocation module.
// The manager-center cache loads through the pool, outside any allocation
// transaction; everything else binds into the per-attempt transaction
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg.Prefix("ALLOC_"))

	rosterBinder := rosterrepo.NewPG()
	centers := cache.New(poolLoader{pg: deps.PG, binder: rosterBinder}, opts.Cache)

	svc := service.New(
		deps.Log,
		deps.PG,
		rosterBinder,
		allocrepo.NewPG(),
		outboxrepo.NewPG(),
		policy.NewEngine(centers),
		rank.New(opts.Fairness),
		seq.New(nil),
		opts.Coordinator,
	)
	return &Module{svc: svc, centers: centers}
}

// Name implements modkit.Module
func (m *Module) Name() string { return "allocation" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.Port() }

// Port returns the inbound allocator contract
func (m *Module) Port() domain.AllocatorPort { return m.svc }

// Centers exposes the manager-center cache (administrative refresh)
func (m *Module) Centers() *cache.ManagerCenters { return m.centers }

// FromConfig reads the allocation options from env
func FromConfig(cfg config.Conf) Options {
	strategy := cfg.MayEnum("FAIRNESS_STRATEGY", string(rank.StrategyNone),
		string(rank.StrategyNone), string(rank.StrategyJitter), string(rank.StrategyBucket))
	return Options{
		Coordinator: service.Config{
			MaxRetries:  cfg.MayInt("MAX_RETRIES", 3),
			BackoffBase: cfg.MayDuration("RETRY_BACKOFF_BASE", 100*time.Millisecond),
		},
		Fairness: rank.Config{
			Strategy:    rank.Strategy(strategy),
			BucketWidth: cfg.MayFloat64("FAIRNESS_BUCKET_WIDTH", 0.1),
			JitterScale: cfg.MayFloat64("FAIRNESS_JITTER_SCALE", 0.05),
		},
		Cache: cache.Config{
			TTL:         cfg.MayDuration("MANAGER_CACHE_TTL", 5*time.Minute),
			NegativeTTL: cfg.MayDuration("MANAGER_CACHE_NEGATIVE_TTL", time.Minute),
		},
	}
}

// poolLoader adapts the roster binder to the cache loader over the pool,
// outside any allocation transaction
type poolLoader struct {
	pg     repokit.TxRunner
	binder repokit.Binder[rosterdomain.ReaderPort]
}

func (l poolLoader) Manager(ctx context.Context, id int64) (*rosterdomain.Manager, error) {
	return l.binder.Bind(l.pg).Manager(ctx, id)
}

func (l poolLoader) ManagerCenters(ctx context.Context, id int64) ([]int, error) {
	return l.binder.Bind(l.pg).ManagerCenters(ctx, id)
}
