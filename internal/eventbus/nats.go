package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Black-And-White-Club/frolf-raffle/internal/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// natsEventBus publishes and subscribes through NATS JetStream.
type natsEventBus struct {
	publisher      *wmnats.Publisher
	subscriber     *wmnats.Subscriber
	js             jetstream.JetStream
	natsConn       *nc.Conn
	logger         *slog.Logger
	tracer         trace.Tracer
	createdStreams map[string]bool
	streamMutex    sync.Mutex
}

// NewEventBus connects to NATS and returns a JetStream backed EventBus.
// appType names the connection so NATS monitoring can tell binaries apart.
func NewEventBus(ctx context.Context, natsURL string, logger *slog.Logger, appType string, tracer trace.Tracer) (EventBus, error) {
	connName := nc.Name("frolf-raffle-" + appType)

	natsConn, err := nc.Connect(natsURL, connName, nc.RetryOnFailedConnect(true))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to NATS", attr.Error(err))
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		logger.ErrorContext(ctx, "Failed to initialize JetStream", attr.Error(err))
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	watermillLogger := watermill.NewSlogLogger(logger)
	marshaler := &wmnats.NATSMarshaler{}

	publisher, err := wmnats.NewPublisher(
		wmnats.PublisherConfig{
			URL:       natsURL,
			Marshaler: marshaler,
			NatsOptions: []nc.Option{
				connName,
				nc.RetryOnFailedConnect(true),
			},
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		logger.ErrorContext(ctx, "Failed to create Watermill publisher", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill publisher: %w", err)
	}

	subscriber, err := wmnats.NewSubscriber(
		wmnats.SubscriberConfig{
			URL:         natsURL,
			Unmarshaler: marshaler,
			NatsOptions: []nc.Option{
				connName,
				nc.RetryOnFailedConnect(true),
			},
		},
		watermillLogger,
	)
	if err != nil {
		natsConn.Close()
		_ = publisher.Close()
		logger.ErrorContext(ctx, "Failed to create Watermill subscriber", attr.Error(err))
		return nil, fmt.Errorf("failed to create Watermill subscriber: %w", err)
	}

	return &natsEventBus{
		publisher:      publisher,
		subscriber:     subscriber,
		js:             js,
		natsConn:       natsConn,
		logger:         logger,
		tracer:         tracer,
		createdStreams: make(map[string]bool),
	}, nil
}

func (eb *natsEventBus) Publish(topic string, messages ...*message.Message) error {
	grouped, err := groupByTopic(topic, messages)
	if err != nil {
		return err
	}

	for t, msgs := range grouped {
		ctx := context.Background()
		if len(msgs) > 0 && msgs[0].Context() != nil {
			ctx = msgs[0].Context()
		}
		_, span := eb.tracer.Start(ctx, "EventBus.Publish", trace.WithAttributes(
			attribute.String("topic", t),
			attribute.Int("messages", len(msgs)),
		))

		if err := eb.publisher.Publish(t, msgs...); err != nil {
			span.RecordError(err)
			span.End()
			eb.logger.Error("Failed to publish message", attr.String("topic", t), attr.Error(err))
			return fmt.Errorf("failed to publish to %s: %w", t, err)
		}
		span.End()

		eb.logger.Debug("Published messages", attr.String("topic", t), attr.Int("count", len(msgs)))
	}
	return nil
}

func (eb *natsEventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	eb.logger.InfoContext(ctx, "Subscribing to topic", attr.String("topic", topic))
	return eb.subscriber.Subscribe(ctx, topic)
}

// CreateStream creates streamName or extends its subjects.
func (eb *natsEventBus) CreateStream(ctx context.Context, streamName string, subjects ...string) error {
	eb.streamMutex.Lock()
	defer eb.streamMutex.Unlock()

	if eb.createdStreams[streamName] {
		return nil
	}

	stream, err := eb.js.Stream(ctx, streamName)
	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := eb.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		}); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		eb.logger.InfoContext(ctx, "Stream created", attr.String("stream_name", streamName))
	case err != nil:
		return fmt.Errorf("failed to check if stream exists: %w", err)
	default:
		info, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		missing := false
		for _, s := range subjects {
			if !slices.Contains(info.Config.Subjects, s) {
				info.Config.Subjects = append(info.Config.Subjects, s)
				missing = true
			}
		}
		if missing {
			if _, err := eb.js.UpdateStream(ctx, info.Config); err != nil {
				return fmt.Errorf("failed to update stream subjects: %w", err)
			}
			eb.logger.InfoContext(ctx, "Stream updated with new subjects", attr.String("stream_name", streamName))
		}
	}

	eb.createdStreams[streamName] = true
	return nil
}

// Close closes all NATS and Watermill resources.
func (eb *natsEventBus) Close() error {
	var errs []error
	if eb.publisher != nil {
		if err := eb.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if eb.subscriber != nil {
		if err := eb.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if eb.natsConn != nil {
		eb.natsConn.Close()
	}
	return errors.Join(errs...)
}
