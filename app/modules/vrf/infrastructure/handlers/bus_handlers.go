package vrfhandlers

import (
	"context"
	"errors"
	"strconv"

	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
)

// HandleFulfillRequested answers a pending request on operator demand. The
// coordinator announces successful fulfillments itself.
func (h *VRFHandlers) HandleFulfillRequested(ctx context.Context, payload *vrfdomain.FulfillRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "VRFHandlers.HandleFulfillRequested")
	defer span.End()

	failed := func(reason string) []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic: vrfdomain.FulfillFailedV1,
			Payload: &vrfdomain.FulfillFailedPayloadV1{
				RequestID: payload.RequestID,
				Consumer:  payload.Consumer,
				Reason:    reason,
			},
		}}
	}

	requestID, err := strconv.ParseUint(payload.RequestID, 10, 64)
	if err != nil {
		return failed("invalid request id"), nil
	}

	words, err := vrfservice.ParseWords(payload.Words)
	if err != nil {
		return failed(err.Error()), nil
	}

	res, err := h.coordinator.FulfillRandomWordsWithOverride(ctx, requestID, payload.Consumer, words)
	if err != nil {
		h.logger.WarnContext(ctx, "Fulfillment command rejected",
			attr.ExtractCorrelationID(ctx),
			attr.RequestID(payload.RequestID),
			attr.Error(err),
		)
		return failed(err.Error()), nil
	}
	if !res.Success {
		return failed(res.Err.Error()), nil
	}
	return nil, nil
}

// HandleSubscriptionFundRequested tops up a subscription.
func (h *VRFHandlers) HandleSubscriptionFundRequested(ctx context.Context, payload *vrfdomain.SubscriptionFundRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "VRFHandlers.HandleSubscriptionFundRequested")
	defer span.End()

	failed := func(err error) []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic: vrfdomain.SubscriptionFundFailedV1,
			Payload: &vrfdomain.SubscriptionFundFailedPayloadV1{
				SubscriptionID: payload.SubscriptionID,
				Reason:         err.Error(),
			},
		}}
	}

	amount, ok := parseAmount(payload.Amount)
	if !ok {
		return failed(vrfdomain.ErrInvalidAmount), nil
	}

	oldBalance, newBalance, err := h.coordinator.FundSubscription(ctx, payload.SubscriptionID, amount)
	if err != nil {
		if errors.Is(err, vrfdomain.ErrInvalidSubscription) || errors.Is(err, vrfdomain.ErrInvalidAmount) {
			return failed(err), nil
		}
		return nil, err
	}

	return []handlerwrapper.Result{{
		Topic: vrfdomain.SubscriptionFundedV1,
		Payload: &vrfdomain.SubscriptionFundedPayloadV1{
			SubscriptionID: payload.SubscriptionID,
			OldBalance:     oldBalance.String(),
			NewBalance:     newBalance.String(),
		},
	}}, nil
}
