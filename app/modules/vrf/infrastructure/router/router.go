package vrfrouter

import (
	"context"
	"log/slog"

	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	vrfhandlers "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/infrastructure/handlers"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// VRFRouter handles Watermill handler registration for coordinator commands.
type VRFRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	metrics    handlerwrapper.Metrics
	tracer     trace.Tracer
}

func NewVRFRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	metrics handlerwrapper.Metrics,
	tracer trace.Tracer,
) *VRFRouter {
	return &VRFRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		metrics:    metrics,
		tracer:     tracer,
	}
}

// Configure sets up the router with handlers.
func (r *VRFRouter) Configure(_ context.Context, handlers vrfhandlers.Handlers) error {
	r.logger.Info("Registering vrf module handlers",
		slog.String("fulfill_subject", vrfdomain.FulfillRequestedV1),
		slog.String("fund_subject", vrfdomain.SubscriptionFundRequestedV1),
	)

	registerHandler(r, vrfdomain.FulfillRequestedV1, handlers.HandleFulfillRequested)
	registerHandler(r, vrfdomain.SubscriptionFundRequestedV1, handlers.HandleSubscriptionFundRequested)
	return nil
}

func registerHandler[T any](
	r *VRFRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "vrf." + topic

	r.router.AddHandler(
		handlerName,
		topic,
		r.subscriber,
		"",
		r.publisher,
		handlerwrapper.WrapTransformingTyped(handlerName, r.logger, r.tracer, r.metrics, handler),
	)
}

// Close shuts down the router.
func (r *VRFRouter) Close() error {
	return r.router.Close()
}
