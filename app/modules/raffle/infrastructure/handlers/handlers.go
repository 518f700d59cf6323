package rafflehandlers

import (
	"log/slog"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	"go.opentelemetry.io/otel/trace"
)

// RaffleHandlers implements the Handlers interface.
type RaffleHandlers struct {
	service  raffleservice.Service
	consumer string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewRaffleHandlers creates a new RaffleHandlers instance. consumer is the
// name the raffle uses toward the randomness oracle; fulfillments addressed
// to other consumers are ignored.
func NewRaffleHandlers(
	service raffleservice.Service,
	consumer string,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &RaffleHandlers{
		service:  service,
		consumer: consumer,
		logger:   logger,
		tracer:   tracer,
	}
}
