package handlers_test

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/visitscribe/internal/adapters/cache"
	"github.com/zatekoja/visitscribe/internal/adapters/queue"
	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/pkg/config"
)

// streamGateway hands out a caller-controlled event channel.
type streamGateway struct {
	events  chan entities.StreamEvent
	openErr error
	opened  chan *entities.GatewayRequest
}

func newStreamGateway() *streamGateway {
	return &streamGateway{
		events: make(chan entities.StreamEvent),
		opened: make(chan *entities.GatewayRequest, 1),
	}
}

func (g *streamGateway) Complete(ctx context.Context, req *entities.GatewayRequest) (*entities.GatewayResponse, error) {
	return &entities.GatewayResponse{Text: "{}", StatusCode: 200}, nil
}

func (g *streamGateway) Stream(ctx context.Context, req *entities.GatewayRequest) (<-chan entities.StreamEvent, error) {
	if g.openErr != nil {
		return nil, g.openErr
	}
	g.opened <- req
	return g.events, nil
}

var testDay = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newGuard(global, perUser int64) *services.BudgetGuard {
	return services.NewBudgetGuard(cache.NewMemoryCounterStore(),
		config.BudgetConfig{GlobalDailyLimit: global, PerUserDailyLimit: perUser},
		services.WithBudgetClock(func() time.Time { return testDay }),
		services.WithBudgetLogger(zerolog.Nop()),
	)
}

func newQueue() *queue.MemoryJobQueue {
	return queue.NewMemoryJobQueue(8)
}

var defaults = services.RequestDefaults{Tier: entities.TierBasic, Effort: entities.EffortMedium}
