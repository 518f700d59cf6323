package raffleadapters

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
)

// Coordinator is the part of the in-process coordinator the raffle uses.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, consumer string, req vrfdomain.RandomWordsRequest) (uint64, error)
	RegisterConsumer(name string, consumer vrfservice.Consumer)
	AdoptRequest(ctx context.Context, requestID uint64, consumer string, req vrfdomain.RandomWordsRequest) error
	ReserveRequestIDs(last uint64)
}

// VRFClient requests randomness from the in-process coordinator and feeds
// fulfillments back into the raffle service.
type VRFClient struct {
	coordinator Coordinator
	consumer    string
	service     raffleservice.Service
}

func NewVRFClient(coordinator Coordinator, consumer string) *VRFClient {
	return &VRFClient{coordinator: coordinator, consumer: consumer}
}

// Bind registers the raffle service as the receiver of fulfillments.
func (c *VRFClient) Bind(service raffleservice.Service) {
	c.service = service
	c.coordinator.RegisterConsumer(c.consumer, c)
}

func (c *VRFClient) RequestRandomWords(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error) {
	id, err := c.coordinator.RequestRandomWords(ctx, c.consumer, vrfdomain.RandomWordsRequest{
		KeyHash:              req.KeyHash,
		SubscriptionID:       req.SubscriptionID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
	})
	if err != nil {
		return "", err
	}
	return raffledomain.RequestID(strconv.FormatUint(id, 10)), nil
}

// Recover lines a fresh coordinator up with a restored raffle. Request ids
// continue past the newest recorded winner, and a round still waiting for
// randomness gets its request re-registered so it can be fulfilled.
func (c *VRFClient) Recover(ctx context.Context) error {
	if c.service == nil {
		return fmt.Errorf("raffle consumer %s is not bound", c.consumer)
	}

	winners, err := c.service.ListWinners(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load last winner: %w", err)
	}
	for _, w := range winners {
		if id, err := strconv.ParseUint(string(w.RequestID), 10, 64); err == nil {
			c.coordinator.ReserveRequestIDs(id)
		}
	}

	snap := c.service.Snapshot(ctx)
	if snap.State != raffledomain.StateCalculating || snap.PendingRequestID == "" {
		return nil
	}
	id, err := strconv.ParseUint(string(snap.PendingRequestID), 10, 64)
	if err != nil {
		return fmt.Errorf("round %d waits on request %q, which the local coordinator did not issue", snap.RoundNumber, snap.PendingRequestID)
	}
	cfg := c.service.Config()
	if err := c.coordinator.AdoptRequest(ctx, id, c.consumer, vrfdomain.RandomWordsRequest{
		KeyHash:              cfg.GasLane,
		SubscriptionID:       cfg.SubscriptionID,
		RequestConfirmations: cfg.RequestConfirmations,
		CallbackGasLimit:     cfg.CallbackGasLimit,
		NumWords:             cfg.NumWords,
	}); err != nil {
		return fmt.Errorf("failed to adopt request %d: %w", id, err)
	}
	return nil
}

// RawFulfillRandomWords implements vrfservice.Consumer.
func (c *VRFClient) RawFulfillRandomWords(ctx context.Context, requestID uint64, words []*big.Int) error {
	if c.service == nil {
		return fmt.Errorf("raffle consumer %s is not bound", c.consumer)
	}
	res, err := c.service.FulfillRandomWords(ctx, raffledomain.RequestID(strconv.FormatUint(requestID, 10)), words)
	if err != nil {
		return err
	}
	if res.IsFailure() {
		return *res.Failure
	}
	return nil
}

var (
	_ raffleservice.OracleClient = (*VRFClient)(nil)
	_ vrfservice.Consumer        = (*VRFClient)(nil)
)
