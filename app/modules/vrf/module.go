package vrf

import (
	"context"
	"fmt"
	"sync"

	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfhandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/infrastructure/handlers"
	vrfrouter "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/infrastructure/router"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
)

// Module represents the local randomness coordinator.
type Module struct {
	Coordinator *vrfservice.Coordinator
	Handlers    vrfhandlers.Handlers
	VRFRouter   *vrfrouter.VRFRouter

	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// NewVRFModule creates the coordinator and registers its command handlers.
func NewVRFModule(
	ctx context.Context,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	cfg vrfservice.Config,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer

	logger.InfoContext(ctx, "vrf.NewVRFModule initializing")

	coordinator := vrfservice.NewCoordinator(cfg, eventBus, logger, tracer)
	handlers := vrfhandlers.NewVRFHandlers(coordinator, logger, tracer)

	vrfRouter := vrfrouter.NewVRFRouter(logger, router, eventBus, eventBus, obs.Registry.RaffleMetrics, tracer)
	if err := vrfRouter.Configure(ctx, handlers); err != nil {
		return nil, fmt.Errorf("failed to configure vrf router: %w", err)
	}

	return &Module{
		Coordinator:   coordinator,
		Handlers:      handlers,
		VRFRouter:     vrfRouter,
		observability: obs,
	}, nil
}

// Mount exposes read-only coordinator state.
func (m *Module) Mount(r chi.Router) {
	r.Route("/api/vrf", func(r chi.Router) {
		r.Get("/subscriptions/{id}", m.Handlers.HandleHTTPGetSubscription)
		r.Get("/requests", m.Handlers.HandleHTTPListRequests)
	})
}

// Run blocks until ctx is cancelled or Close is called.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting vrf module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "VRF module goroutine stopped")
}

// Close shuts down the vrf module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping vrf module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.VRFRouter != nil {
		if err := m.VRFRouter.Close(); err != nil {
			logger.Error("Error closing VRFRouter from module", "error", err)
			return fmt.Errorf("error closing VRFRouter: %w", err)
		}
	}

	logger.Info("VRF module stopped")
	return nil
}
