package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/infrastructure/events"
	"dancebattle/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventBus fans room events out to every instance through a Redis channel. Local
// subscribers see events immediately; events from other instances arrive through Run.
type EventBus struct {
	*events.LocalBus

	client     redis.UniversalClient
	instanceID string
	channel    string
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.SugaredLogger
}

var _ ports.EventBus = (*EventBus)(nil)

func NewEventBus(
	client redis.UniversalClient,
	channel string,
	instanceID string,
	breaker *circuitbreaker.CircuitBreaker,
	logger *zap.SugaredLogger,
) *EventBus {
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("event bus circuit state changed", "from", from.String(), "to", to.String())
	})
	return &EventBus{
		LocalBus:   events.NewLocalBus(),
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		breaker:    breaker,
		logger:     logger,
	}
}

// Publish delivers locally, then broadcasts to the other instances. While Redis keeps
// failing the broadcast is skipped and circuitbreaker.ErrOpen is returned.
func (eb *EventBus) Publish(ctx context.Context, event *domain.RoomEvent) error {
	event.InstanceID = eb.instanceID
	eb.LocalBus.Deliver(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = eb.breaker.Execute(func() error {
		return eb.client.Publish(ctx, eb.channel, data).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"room_id", event.RoomID,
		"player_id", event.PlayerID,
	)
	return nil
}

// Run relays events published by other instances until ctx is done.
func (eb *EventBus) Run(ctx context.Context) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", eb.channel, err)
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			eb.handleMessage(msg.Payload)
		}
	}
}

func (eb *EventBus) handleMessage(payload string) {
	var event domain.RoomEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		eb.logger.Warnw("failed to unmarshal event", "error", err, "payload", payload)
		return
	}
	// already delivered locally by Publish
	if event.InstanceID == eb.instanceID {
		return
	}
	eb.LocalBus.Deliver(&event)
}
