package raffle

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	rafflehandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/handlers"
	raffledb "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/repositories"
	rafflerouter "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/router"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
)

// Options selects the collaborators of the raffle service.
type Options struct {
	Config   raffledomain.Config
	Consumer string
	Oracle   raffleservice.OracleClient
	Treasury raffleservice.Treasury
	// ConsumeBusFulfillments subscribes to fulfillments published by an
	// external oracle.
	ConsumeBusFulfillments bool
	Clock                  raffleservice.Clock
}

// Module represents the raffle module.
type Module struct {
	RaffleService *raffleservice.RaffleService
	Handlers      rafflehandlers.Handlers
	RaffleRouter  *rafflerouter.RaffleRouter

	cancelFunc    context.CancelFunc
	observability observability.Observability
}

// NewRaffleModule creates the raffle service, restores the persisted round
// and registers the bus handlers.
func NewRaffleModule(
	ctx context.Context,
	obs observability.Observability,
	eventBus eventbus.EventBus,
	router *message.Router,
	db *bun.DB,
	opts Options,
) (*Module, error) {
	logger := obs.Provider.Logger
	tracer := obs.Registry.Tracer
	metrics := obs.Registry.RaffleMetrics

	logger.InfoContext(ctx, "raffle.NewRaffleModule initializing")

	var repo raffledb.Repository
	if db != nil {
		repo = raffledb.NewRepository(db)
	}

	service, err := raffleservice.NewRaffleService(
		opts.Config,
		repo,
		opts.Oracle,
		opts.Treasury,
		eventBus,
		opts.Clock,
		logger,
		metrics,
		tracer,
		db,
	)
	if err != nil {
		return nil, err
	}
	if err := service.Restore(ctx); err != nil {
		return nil, err
	}

	handlers := rafflehandlers.NewRaffleHandlers(service, opts.Consumer, logger, tracer)

	raffleRouter := rafflerouter.NewRaffleRouter(logger, router, eventBus, eventBus, metrics, tracer)
	if err := raffleRouter.Configure(ctx, handlers, opts.ConsumeBusFulfillments); err != nil {
		return nil, fmt.Errorf("failed to configure raffle router: %w", err)
	}

	return &Module{
		RaffleService: service,
		Handlers:      handlers,
		RaffleRouter:  raffleRouter,
		observability: obs,
	}, nil
}

// Mount registers the HTTP API. Mutating operator endpoints sit behind
// operatorAuth.
func (m *Module) Mount(r chi.Router, operatorAuth func(http.Handler) http.Handler) {
	h := m.Handlers
	r.Route("/api/raffle", func(r chi.Router) {
		r.Get("/", h.HandleHTTPGetRaffle)
		r.Get("/players/{index}", h.HandleHTTPGetPlayer)
		r.Get("/upkeep", h.HandleHTTPCheckUpkeep)
		r.Get("/winners", h.HandleHTTPListWinners)
		r.Get("/winners/report", h.HandleHTTPWinnersReport)
		r.Post("/enter", h.HandleHTTPEnter)

		r.Group(func(r chi.Router) {
			r.Use(operatorAuth)
			r.Post("/upkeep", h.HandleHTTPPerformUpkeep)
			r.Post("/payout/retry", h.HandleHTTPRetryPayout)
		})
	})
}

// Run blocks until ctx is cancelled or Close is called.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	logger := m.observability.Provider.Logger
	logger.InfoContext(ctx, "Starting raffle module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	<-ctx.Done()
	logger.InfoContext(ctx, "Raffle module goroutine stopped")
}

// Close shuts down the raffle module.
func (m *Module) Close() error {
	logger := m.observability.Provider.Logger
	logger.Info("Stopping raffle module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	if m.RaffleRouter != nil {
		if err := m.RaffleRouter.Close(); err != nil {
			logger.Error("Error closing RaffleRouter from module", "error", err)
			return fmt.Errorf("error closing RaffleRouter: %w", err)
		}
	}

	logger.Info("Raffle module stopped")
	return nil
}
