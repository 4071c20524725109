package events

import (
	"context"
	"sync"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
)

// LocalBus delivers room events to in-process subscribers. Handlers run synchronously on
// the publishing goroutine, in subscription order, and must not block.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(*domain.RoomEvent)
	order    []uint64
}

var _ ports.EventBus = (*LocalBus)(nil)

func NewLocalBus() *LocalBus {
	return &LocalBus{
		handlers: make(map[uint64]func(*domain.RoomEvent)),
	}
}

func (b *LocalBus) Publish(ctx context.Context, event *domain.RoomEvent) error {
	b.Deliver(event)
	return nil
}

// Deliver hands event to every current subscriber.
func (b *LocalBus) Deliver(event *domain.RoomEvent) {
	b.mu.RLock()
	handlers := make([]func(*domain.RoomEvent), 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func (b *LocalBus) Subscribe(handler func(*domain.RoomEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *LocalBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}
