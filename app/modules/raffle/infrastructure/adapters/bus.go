package raffleadapters

import (
	"context"
	"fmt"
	"time"

	raffleservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/application"
	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfdomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/domain"
	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// BusOracleClient publishes randomness requests for an external oracle. The
// answer arrives later as a vrf.random_words.fulfilled.v1 event.
type BusOracleClient struct {
	publisher message.Publisher
	consumer  string
	newID     func() string
	now       func() time.Time
}

func NewBusOracleClient(publisher message.Publisher, consumer string) *BusOracleClient {
	return &BusOracleClient{
		publisher: publisher,
		consumer:  consumer,
		newID:     func() string { return uuid.NewString() },
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (c *BusOracleClient) RequestRandomWords(ctx context.Context, req raffledomain.OracleRequest) (raffledomain.RequestID, error) {
	id := c.newID()
	err := eventbus.PublishJSON(ctx, c.publisher, vrfdomain.RandomWordsRequestedV1, &vrfdomain.RandomWordsRequestedPayloadV1{
		RequestID:            id,
		Consumer:             c.consumer,
		KeyHash:              req.KeyHash,
		SubscriptionID:       req.SubscriptionID,
		RequestConfirmations: req.RequestConfirmations,
		CallbackGasLimit:     req.CallbackGasLimit,
		NumWords:             req.NumWords,
		RequestedAt:          c.now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish randomness request: %w", err)
	}
	return raffledomain.RequestID(id), nil
}

var _ raffleservice.OracleClient = (*BusOracleClient)(nil)
