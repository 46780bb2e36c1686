// Package module wires the outbox service from core deps
package module

import (
	"time"

	"mentormatch/internal/modkit"
	"mentormatch/internal/platform/clock"
	"mentormatch/internal/platform/config"
	"mentormatch/internal/services/outbox/repo"
	"mentormatch/internal/services/outbox/service"
)

// Module bundles the outbox ledger
type Module struct {
	svc *service.Ledger
}

// New constructs the outbox module
func New(deps modkit.Deps, clk clock.Clock) *Module {
	cfg := FromConfig(deps.Cfg.Prefix("OUTBOX_"))
	return &Module{svc: service.New(deps.Log, clk, deps.PG, repo.NewPG(), cfg)}
}

// Name implements modkit.Module
func (m *Module) Name() string { return "outbox" }

// Ports implements modkit.Module
func (m *Module) Ports() any { return m.svc }

// Service returns the dispatcher-facing ledger
func (m *Module) Service() *service.Ledger { return m.svc }

// FromConfig reads the outbox options from env
func FromConfig(cfg config.Conf) service.Config {
	return service.Config{
		BackoffBase: cfg.MayDuration("BACKOFF_BASE", 500*time.Millisecond),
		BackoffCap:  cfg.MayDuration("BACKOFF_CAP", 10*time.Minute),
		SkewWarn:    cfg.MayDuration("SKEW_WARN", time.Second),
	}
}
