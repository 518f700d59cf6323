package vrfhandlers

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator is the part of the local coordinator exposed over the bus and HTTP.
type Coordinator interface {
	FulfillRandomWordsWithOverride(ctx context.Context, requestID uint64, consumer string, words []*big.Int) (vrfdomain.Fulfillment, error)
	FundSubscription(ctx context.Context, subID uint64, amount *big.Int) (*big.Int, *big.Int, error)
	GetSubscription(ctx context.Context, subID uint64) (vrfdomain.Subscription, error)
	PendingRequests(ctx context.Context) []vrfdomain.Request
}

// Handlers defines the coordinator command and HTTP handlers.
type Handlers interface {
	HandleFulfillRequested(ctx context.Context, payload *vrfdomain.FulfillRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleSubscriptionFundRequested(ctx context.Context, payload *vrfdomain.SubscriptionFundRequestedPayloadV1) ([]handlerwrapper.Result, error)

	HandleHTTPGetSubscription(w http.ResponseWriter, r *http.Request)
	HandleHTTPListRequests(w http.ResponseWriter, r *http.Request)
}

// VRFHandlers implements the Handlers interface.
type VRFHandlers struct {
	coordinator Coordinator
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewVRFHandlers(coordinator Coordinator, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &VRFHandlers{
		coordinator: coordinator,
		logger:      logger,
		tracer:      tracer,
	}
}
