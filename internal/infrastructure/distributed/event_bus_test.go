package distributed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/pkg/circuitbreaker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEventBus_HandleMessage(t *testing.T) {
	bus := NewEventBus(nil, "dancebattle:events", "instance-a",
		circuitbreaker.New(circuitbreaker.DefaultConfig()), zaptest.NewLogger(t).Sugar())

	var got []*domain.RoomEvent
	bus.Subscribe(func(ev *domain.RoomEvent) { got = append(got, ev) })

	remote, err := domain.NewRoomEvent(domain.EventRoomCompleted, "ABC123", "p2", domain.GameResult{WinnerID: "p1"})
	require.NoError(t, err)
	remote.InstanceID = "instance-b"
	data, err := json.Marshal(remote)
	require.NoError(t, err)

	own := *remote
	own.InstanceID = "instance-a"
	ownData, err := json.Marshal(&own)
	require.NoError(t, err)

	bus.handleMessage(string(data))
	bus.handleMessage(string(ownData))
	bus.handleMessage("{not json")

	require.Len(t, got, 1)
	assert.Equal(t, domain.EventRoomCompleted, got[0].Type)
	assert.Equal(t, domain.RoomID("ABC123"), got[0].RoomID)

	var result domain.GameResult
	require.NoError(t, got[0].DecodePayload(&result))
	assert.Equal(t, domain.PlayerID("p1"), result.WinnerID)
}

func TestEventBus_PublishStopsWhileRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, OpenTimeout: time.Minute})
	bus := NewEventBus(client, "dancebattle:events", "instance-a", breaker, zaptest.NewLogger(t).Sugar())

	delivered := 0
	bus.Subscribe(func(*domain.RoomEvent) { delivered++ })

	for i := 0; i < 2; i++ {
		ev, err := domain.NewRoomEvent(domain.EventRoomStarted, "ABC123", "", nil)
		require.NoError(t, err)
		err = bus.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}

	ev, err := domain.NewRoomEvent(domain.EventRoomStarted, "ABC123", "", nil)
	require.NoError(t, err)
	err = bus.Publish(context.Background(), ev)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	// local subscribers are served regardless of Redis
	assert.Equal(t, 3, delivered)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())
}
