package eventbus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// memoryEventBus is an in-process bus for tests and single-binary development.
type memoryEventBus struct {
	channel *gochannel.GoChannel
}

// NewMemoryEventBus returns an EventBus backed by watermill's gochannel pub/sub.
func NewMemoryEventBus(logger *slog.Logger) EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &memoryEventBus{
		channel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, watermill.NewSlogLogger(logger)),
	}
}

func (b *memoryEventBus) Publish(topic string, messages ...*message.Message) error {
	grouped, err := groupByTopic(topic, messages)
	if err != nil {
		return err
	}
	for t, msgs := range grouped {
		if err := b.channel.Publish(t, msgs...); err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.channel.Subscribe(ctx, topic)
}

func (b *memoryEventBus) CreateStream(context.Context, string, ...string) error {
	return nil
}

func (b *memoryEventBus) Close() error {
	return b.channel.Close()
}
