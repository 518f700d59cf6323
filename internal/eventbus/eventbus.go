package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// TopicMetadataKey carries the destination topic of a message produced by a handler.
// Publishers fall back to it when Publish is called with an empty topic.
const TopicMetadataKey = "topic"

// EventBus is a watermill publisher and subscriber that can provision streams.
type EventBus interface {
	message.Publisher
	message.Subscriber

	// CreateStream makes sure a stream named streamName captures subjects.
	CreateStream(ctx context.Context, streamName string, subjects ...string) error
}

// Stream describes a JetStream stream owned by a module.
type Stream struct {
	Name     string
	Subjects []string
}

// EnsureStreams creates every stream on the bus.
func EnsureStreams(ctx context.Context, bus EventBus, streams ...Stream) error {
	for _, s := range streams {
		if err := bus.CreateStream(ctx, s.Name, s.Subjects...); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", s.Name, err)
		}
	}
	return nil
}

// NewJSONMessage encodes payload as JSON and stamps topic and correlation metadata.
func NewJSONMessage(ctx context.Context, topic string, payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(TopicMetadataKey, topic)

	correlationID := attr.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	middleware.SetCorrelationID(correlationID, msg)
	msg.SetContext(ctx)
	return msg, nil
}

// PublishJSON builds a JSON message and publishes it on topic.
func PublishJSON(ctx context.Context, pub message.Publisher, topic string, payload any) error {
	msg, err := NewJSONMessage(ctx, topic, payload)
	if err != nil {
		return err
	}
	return pub.Publish(topic, msg)
}

// groupByTopic resolves the destination of each message.
func groupByTopic(topic string, messages []*message.Message) (map[string][]*message.Message, error) {
	grouped := make(map[string][]*message.Message, 1)
	for _, msg := range messages {
		t := topic
		if t == "" {
			t = msg.Metadata.Get(TopicMetadataKey)
		}
		if t == "" {
			return nil, fmt.Errorf("message %s has no topic", msg.UUID)
		}
		grouped[t] = append(grouped[t], msg)
	}
	return grouped, nil
}
