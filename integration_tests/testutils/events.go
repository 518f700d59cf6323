//go:build integration

package testutils

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Black-And-White-Club/frolf-raffle/internal/eventbus"
)

// EventWaiter collects events published on one topic.
type EventWaiter[T any] struct {
	t     *testing.T
	topic string
	ch    chan T
}

// SubscribeEvents starts consuming topic before the test triggers anything.
func SubscribeEvents[T any](t *testing.T, bus eventbus.EventBus, topic string) *EventWaiter[T] {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	messages, err := bus.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("failed to subscribe to %s: %v", topic, err)
	}

	w := &EventWaiter[T]{t: t, topic: topic, ch: make(chan T, 64)}
	go func() {
		for msg := range messages {
			var payload T
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
			select {
			case w.ch <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return w
}

// Next waits for the next event or fails the test.
func (w *EventWaiter[T]) Next(timeout time.Duration) T {
	w.t.Helper()
	select {
	case payload := <-w.ch:
		return payload
	case <-time.After(timeout):
		w.t.Fatalf("timed out after %s waiting for %s", timeout, w.topic)
		var zero T
		return zero
	}
}
