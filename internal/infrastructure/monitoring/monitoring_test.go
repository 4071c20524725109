package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/infrastructure/repositories/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_RecordsLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.RoomCreated()
	p.RoomCreated()
	p.RoomDeleted()
	p.PlayerJoined()
	p.GameStarted()
	p.ScoreSubmitted()
	p.RoomCompleted(90 * time.Second)
	p.SignalPosted(domain.SignalOffer)
	p.SignalPosted(domain.SignalICECandidate)
	p.SignalPosted(domain.SignalICECandidate)
	p.PoseFrameRelayed()
	p.ConnectionOpened()
	p.ConnectionOpened()
	p.ConnectionClosed()
	p.ObserveHTTPRequest("POST", "/api/v1/rooms", 201, 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.roomsCreatedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.roomsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.roomsCompletedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.signalsTotal.WithLabelValues("ice_candidate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.wsConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.wsConnectionsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(p.gameDuration))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()
	h.AddRepositoryCheck(memory.NewMemoryRoomRepository(), time.Second)
	assert.True(t, h.IsReady(context.Background()))

	h.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }, time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["repository"])
	assert.Equal(t, "connection refused", status.Checks["redis"])
}
