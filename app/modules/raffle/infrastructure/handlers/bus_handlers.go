package rafflehandlers

import (
	"context"
	"errors"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/handlerwrapper"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
)

// HandleEnterRequested enters an account on behalf of a bus client. Accepted
// entries are announced by the service itself; only rejections are returned.
func (h *RaffleHandlers) HandleEnterRequested(ctx context.Context, payload *raffledomain.EnterRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleEnterRequested")
	defer span.End()

	failed := func(reason string) []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic: raffledomain.EnterFailedV1,
			Payload: &raffledomain.EnterFailedPayloadV1{
				Account: payload.Account,
				Value:   payload.Value,
				Reason:  reason,
			},
		}}
	}

	if !raffledomain.Account(payload.Account).Valid() {
		h.logger.WarnContext(ctx, "Rejecting entry with invalid account",
			attr.ExtractCorrelationID(ctx),
			attr.Int("account_length", len(payload.Account)),
		)
		return failed(raffledomain.ErrInvalidAccount.Error()), nil
	}

	value, err := raffledomain.ParseAmount(payload.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "Rejecting entry with invalid value",
			attr.ExtractCorrelationID(ctx),
			attr.Account(payload.Account),
			attr.Error(err),
		)
		return failed(err.Error()), nil
	}

	result, err := h.service.Enter(ctx, raffledomain.Account(payload.Account), value)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return failed((*result.Failure).Error()), nil
	}
	return nil, nil
}

// HandleUpkeepRequested triggers the round when it is eligible.
func (h *RaffleHandlers) HandleUpkeepRequested(ctx context.Context, payload *raffledomain.UpkeepRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleUpkeepRequested")
	defer span.End()

	result, err := h.service.PerformUpkeep(ctx)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		skipped := &raffledomain.UpkeepSkippedPayloadV1{Reason: (*result.Failure).Error()}
		var ue *raffledomain.UpkeepError
		if errors.As(*result.Failure, &ue) {
			skipped.Reason = string(ue.Reason)
			skipped.Players = ue.Players
			skipped.Pool = amount(ue.Pool)
			skipped.State = ue.State.String()
		}
		h.logger.InfoContext(ctx, "Upkeep skipped",
			attr.ExtractCorrelationID(ctx),
			attr.String("reason", skipped.Reason),
			attr.String("requested_by", payload.RequestedBy),
		)
		return []handlerwrapper.Result{{Topic: raffledomain.UpkeepSkippedV1, Payload: skipped}}, nil
	}
	return nil, nil
}

// HandleRandomWordsFulfilled feeds an external oracle answer into the raffle.
func (h *RaffleHandlers) HandleRandomWordsFulfilled(ctx context.Context, payload *vrfdomain.RandomWordsFulfilledPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandleRandomWordsFulfilled")
	defer span.End()

	if payload.Consumer != h.consumer {
		return nil, nil
	}

	rejected := func(reason string) []handlerwrapper.Result {
		return []handlerwrapper.Result{{
			Topic: raffledomain.FulfillmentRejectedV1,
			Payload: &raffledomain.FulfillmentRejectedPayloadV1{
				RequestID: payload.RequestID,
				Reason:    reason,
			},
		}}
	}

	words, err := vrfservice.ParseWords(payload.Words)
	if err != nil {
		return rejected(err.Error()), nil
	}

	result, err := h.service.FulfillRandomWords(ctx, raffledomain.RequestID(payload.RequestID), words)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return h.fulfillmentFailure(ctx, payload.RequestID, *result.Failure, rejected), nil
	}
	return nil, nil
}

// HandlePayoutRetryRequested replays the stored fulfillment of a stuck round.
func (h *RaffleHandlers) HandlePayoutRetryRequested(ctx context.Context, payload *raffledomain.PayoutRetryRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "RaffleHandlers.HandlePayoutRetryRequested")
	defer span.End()

	result, err := h.service.RetryPayout(ctx)
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		return h.fulfillmentFailure(ctx, "", *result.Failure, func(reason string) []handlerwrapper.Result {
			return []handlerwrapper.Result{{
				Topic:   raffledomain.PayoutRetryFailedV1,
				Payload: &raffledomain.PayoutRetryFailedPayloadV1{Reason: reason},
			}}
		}), nil
	}
	return nil, nil
}

func (h *RaffleHandlers) fulfillmentFailure(ctx context.Context, requestID string, failure error, otherwise func(string) []handlerwrapper.Result) []handlerwrapper.Result {
	var pe *raffledomain.PayoutError
	if errors.As(failure, &pe) {
		snap := h.service.Snapshot(ctx)
		return []handlerwrapper.Result{{
			Topic: raffledomain.PayoutFailedV1,
			Payload: &raffledomain.PayoutFailedPayloadV1{
				RoundNumber: snap.RoundNumber,
				RequestID:   string(pe.RequestID),
				Winner:      string(pe.Winner),
				Amount:      amount(pe.Amount),
				Reason:      pe.Err.Error(),
			},
		}}
	}

	h.logger.WarnContext(ctx, "Fulfillment not applied",
		attr.ExtractCorrelationID(ctx),
		attr.RequestID(requestID),
		attr.Error(failure),
	)
	return otherwise(failure.Error())
}
