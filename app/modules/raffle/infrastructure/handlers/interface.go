package rafflehandlers

import (
	"context"
	"net/http"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
)

// Handlers defines the raffle event and HTTP handlers.
type Handlers interface {
	HandleEnterRequested(ctx context.Context, payload *raffledomain.EnterRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleUpkeepRequested(ctx context.Context, payload *raffledomain.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleRandomWordsFulfilled(ctx context.Context, payload *vrfdomain.RandomWordsFulfilledPayloadV1) ([]handlerwrapper.Result, error)
	HandlePayoutRetryRequested(ctx context.Context, payload *raffledomain.PayoutRetryRequestedPayloadV1) ([]handlerwrapper.Result, error)

	HandleHTTPGetRaffle(w http.ResponseWriter, r *http.Request)
	HandleHTTPGetPlayer(w http.ResponseWriter, r *http.Request)
	HandleHTTPCheckUpkeep(w http.ResponseWriter, r *http.Request)
	HandleHTTPEnter(w http.ResponseWriter, r *http.Request)
	HandleHTTPPerformUpkeep(w http.ResponseWriter, r *http.Request)
	HandleHTTPRetryPayout(w http.ResponseWriter, r *http.Request)
	HandleHTTPListWinners(w http.ResponseWriter, r *http.Request)
	HandleHTTPWinnersReport(w http.ResponseWriter, r *http.Request)
}
