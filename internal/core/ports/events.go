package ports

import (
	"context"

	"dancebattle/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event *domain.RoomEvent) error
}

type EventSubscriber interface {
	// Subscribe registers handler for every event and returns a function that removes it.
	Subscribe(handler func(*domain.RoomEvent)) (unsubscribe func())
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
