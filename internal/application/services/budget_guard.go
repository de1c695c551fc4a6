package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
	"github.com/zatekoja/visitscribe/pkg/config"
)

// counterTTL outlives the day a counter belongs to so late reads still see it.
const counterTTL = 48 * time.Hour

// BudgetGuard enforces the global and per-identity daily call ceilings.
//
// Admission is advisory: Admit reads the counters and Record increments them
// once a call is known to have succeeded. Two concurrent admits at the boundary
// may both pass, so a ceiling can be exceeded by a small margin under contention.
type BudgetGuard struct {
	store         providers.CounterStore
	globalLimit   int64
	identityLimit int64
	now           func() time.Time
	logger        zerolog.Logger
}

// BudgetGuardOption configures a BudgetGuard.
type BudgetGuardOption func(*BudgetGuard)

// WithBudgetClock sets the clock that decides the counter day.
func WithBudgetClock(now func() time.Time) BudgetGuardOption {
	return func(g *BudgetGuard) { g.now = now }
}

// WithBudgetLogger sets the guard logger.
func WithBudgetLogger(logger zerolog.Logger) BudgetGuardOption {
	return func(g *BudgetGuard) { g.logger = logger }
}

// NewBudgetGuard creates a guard over store. A limit of zero denies every request.
func NewBudgetGuard(store providers.CounterStore, cfg config.BudgetConfig, opts ...BudgetGuardOption) *BudgetGuard {
	g := &BudgetGuard{
		store:         store,
		globalLimit:   cfg.GlobalDailyLimit,
		identityLimit: cfg.PerUserDailyLimit,
		now:           time.Now,
		logger:        log.Logger.With().Str("component", "budget_guard").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *BudgetGuard) day() string {
	return g.now().UTC().Format("2006-01-02")
}

func globalKey(day string) string {
	return "budget:global:" + day
}

func identityKey(identity, day string) string {
	return "budget:id:" + identity + ":" + day
}

// Admit checks the global ceiling, then the identity ceiling. Counter store
// failures admit the request.
func (g *BudgetGuard) Admit(ctx context.Context, identity string) entities.BudgetDecision {
	remaining := g.Remaining(ctx, identity)

	decision := entities.BudgetDecision{Allowed: true, Remaining: remaining}
	switch {
	case remaining.Global <= 0:
		decision.Allowed = false
		decision.Reason = entities.DenyGlobalLimit
	case remaining.Identity <= 0:
		decision.Allowed = false
		decision.Reason = entities.DenyIdentityLimit
	}

	if !decision.Allowed {
		observability.RecordBudgetDenial(ctx, string(decision.Reason))
		g.logger.Info().
			Str("identity", identity).
			Str("reason", string(decision.Reason)).
			Msg("request denied by budget guard")
	}
	return decision
}

// Record counts one call against both ceilings when status is below 400.
// It returns the quota left after the call. A counter that cannot be
// incremented is reported from its last stored value.
func (g *BudgetGuard) Record(ctx context.Context, identity string, status int) entities.BudgetRemaining {
	if status >= 400 {
		return g.Remaining(ctx, identity)
	}

	day := g.day()
	globalUsed, err := g.store.IncrBy(ctx, globalKey(day), 1, counterTTL)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to record global budget usage")
		globalUsed = g.used(ctx, globalKey(day))
	}
	identityUsed, err := g.store.IncrBy(ctx, identityKey(identity, day), 1, counterTTL)
	if err != nil {
		g.logger.Error().Err(err).Str("identity", identity).Msg("failed to record identity budget usage")
		identityUsed = g.used(ctx, identityKey(identity, day))
	}

	return entities.BudgetRemaining{
		Global:   clampRemaining(g.globalLimit - globalUsed),
		Identity: clampRemaining(g.identityLimit - identityUsed),
	}
}

// Remaining reports the quota left today for identity.
func (g *BudgetGuard) Remaining(ctx context.Context, identity string) entities.BudgetRemaining {
	day := g.day()
	return entities.BudgetRemaining{
		Global:   clampRemaining(g.globalLimit - g.used(ctx, globalKey(day))),
		Identity: clampRemaining(g.identityLimit - g.used(ctx, identityKey(identity, day))),
	}
}

// used reads a counter, treating an unreadable one as zero.
func (g *BudgetGuard) used(ctx context.Context, key string) int64 {
	n, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Error().Err(err).Str("key", key).Msg("failed to read budget counter")
		return 0
	}
	return n
}

func clampRemaining(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
