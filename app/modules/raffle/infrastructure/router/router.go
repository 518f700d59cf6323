package rafflerouter

import (
	"context"
	"log/slog"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	rafflehandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/infrastructure/handlers"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// RaffleRouter handles Watermill handler registration for raffle events.
type RaffleRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

// NewRaffleRouter creates a new RaffleRouter.
func NewRaffleRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *RaffleRouter {
	return &RaffleRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure registers the raffle handlers. Fulfillments published on the bus
// are only consumed when the raffle talks to an external oracle; the local
// coordinator calls back into the service directly.
func (r *RaffleRouter) Configure(_ context.Context, handlers rafflehandlers.Handlers, consumeFulfillments bool) error {
	r.registerHandlers(handlers, consumeFulfillments)
	return nil
}

type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.Metrics
}

func (r *RaffleRouter) registerHandlers(handlers rafflehandlers.Handlers, consumeFulfillments bool) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	r.logger.Info("Registering raffle module handlers",
		slog.String("enter_subject", raffledomain.EnterRequestedV1),
		slog.String("upkeep_subject", raffledomain.UpkeepRequestedV1),
		slog.String("payout_retry_subject", raffledomain.PayoutRetryRequestedV1),
		slog.Bool("consume_fulfillments", consumeFulfillments),
	)

	registerHandler(deps, raffledomain.EnterRequestedV1, handlers.HandleEnterRequested)
	registerHandler(deps, raffledomain.UpkeepRequestedV1, handlers.HandleUpkeepRequested)
	registerHandler(deps, raffledomain.PayoutRetryRequestedV1, handlers.HandlePayoutRetryRequested)
	if consumeFulfillments {
		registerHandler(deps, vrfdomain.RandomWordsFulfilledV1, handlers.HandleRandomWordsFulfilled)
	}

	r.logger.Info("Raffle module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "raffle." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.metrics,
			handler,
		),
	)
}

// Close shuts down the router.
func (r *RaffleRouter) Close() error {
	return r.router.Close()
}
