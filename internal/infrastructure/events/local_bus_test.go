package events

import (
	"context"
	"sync"
	"testing"

	"dancebattle/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_DeliversInOrder(t *testing.T) {
	bus := NewLocalBus()
	var got []string

	bus.Subscribe(func(ev *domain.RoomEvent) { got = append(got, "a:"+string(ev.Type)) })
	bus.Subscribe(func(ev *domain.RoomEvent) { got = append(got, "b:"+string(ev.Type)) })

	ev, err := domain.NewRoomEvent(domain.EventRoomStarted, "ABC123", "", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), ev))

	assert.Equal(t, []string{"a:room.started", "b:room.started"}, got)
}

func TestLocalBus_Unsubscribe(t *testing.T) {
	bus := NewLocalBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(*domain.RoomEvent) { calls++ })

	ev, _ := domain.NewRoomEvent(domain.EventPlayerJoined, "ABC123", "p1", nil)
	bus.Deliver(ev)
	unsubscribe()
	unsubscribe()
	bus.Deliver(ev)

	assert.Equal(t, 1, calls)
}

func TestLocalBus_HandlerMayUnsubscribeDuringDelivery(t *testing.T) {
	bus := NewLocalBus()
	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(*domain.RoomEvent) {
		calls++
		unsubscribe()
	})

	ev, _ := domain.NewRoomEvent(domain.EventPlayerLeft, "ABC123", "p1", nil)
	bus.Deliver(ev)
	bus.Deliver(ev)
	assert.Equal(t, 1, calls)
}

func TestLocalBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewLocalBus()
	ev, _ := domain.NewRoomEvent(domain.EventSignal, "ABC123", "p1", domain.SignalPayload{Kind: domain.SignalOffer})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(func(*domain.RoomEvent) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			_ = bus.Publish(context.Background(), ev)
		}()
	}
	wg.Wait()
}
