package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/infrastructure/repositories/memory"
	"dancebattle/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) TryLock(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) Unlock(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type countingMetrics struct {
	deleted int
}

func (c *countingMetrics) RoomCreated()                   {}
func (c *countingMetrics) RoomDeleted()                   { c.deleted++ }
func (c *countingMetrics) PlayerJoined()                  {}
func (c *countingMetrics) GameStarted()                   {}
func (c *countingMetrics) ScoreSubmitted()                {}
func (c *countingMetrics) RoomCompleted(time.Duration)    {}
func (c *countingMetrics) SignalPosted(domain.SignalKind) {}
func (c *countingMetrics) PoseFrameRelayed()              {}
func (c *countingMetrics) ConnectionOpened()              {}
func (c *countingMetrics) ConnectionClosed()              {}

var testConfig = Config{
	Interval:   time.Minute,
	Retention:  10 * time.Minute,
	WaitingTTL: time.Hour,
	PlayingTTL: 4 * time.Hour,
}

func seed(t *testing.T, repo ports.RoomRepository, id domain.RoomID, created time.Time, status domain.RoomStatus, completed time.Time) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, domain.NewRoom(id, created)))
	if status == domain.RoomStatusWaiting {
		return
	}
	_, err := repo.Update(ctx, id, func(room *domain.Room) error {
		room.Status = status
		room.GameStarted = true
		room.StartedAt = created
		room.CompletedAt = completed
		return nil
	})
	require.NoError(t, err)
}

func TestJanitor_SweepDeletesExpiredRooms(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewMemoryRoomRepository()

	seed(t, repo, "OLDWAI", now.Add(-2*time.Hour), domain.RoomStatusWaiting, time.Time{})
	seed(t, repo, "NEWWAI", now.Add(-time.Minute), domain.RoomStatusWaiting, time.Time{})
	seed(t, repo, "OLDDON", now.Add(-time.Hour), domain.RoomStatusCompleted, now.Add(-11*time.Minute))
	seed(t, repo, "NEWDON", now.Add(-time.Hour), domain.RoomStatusCompleted, now.Add(-time.Minute))
	seed(t, repo, "PLAYIN", now.Add(-3*time.Hour), domain.RoomStatusPlaying, time.Time{})

	metrics := &countingMetrics{}
	j := NewJanitor(repo, nil, metrics, testConfig, logger.NewNop())
	j.now = func() time.Time { return now }

	deleted, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, metrics.deleted)

	rooms, err := repo.List(context.Background())
	require.NoError(t, err)
	var ids []domain.RoomID
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []domain.RoomID{"NEWWAI", "NEWDON", "PLAYIN"}, ids)
}

func TestJanitor_SweepDeletesAbandonedGames(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := memory.NewMemoryRoomRepository()

	seed(t, repo, "STALEP", now.Add(-5*time.Hour), domain.RoomStatusPlaying, time.Time{})
	seed(t, repo, "LIVEPL", now.Add(-time.Hour), domain.RoomStatusPlaying, time.Time{})

	j := NewJanitor(repo, nil, nil, testConfig, logger.NewNop())
	j.now = func() time.Time { return now }

	deleted, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.GetByID(context.Background(), "STALEP")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = repo.GetByID(context.Background(), "LIVEPL")
	assert.NoError(t, err)
}

func TestJanitor_SkipsWhenLockHeld(t *testing.T) {
	now := time.Now()
	repo := memory.NewMemoryRoomRepository()
	seed(t, repo, "OLDWAI", now.Add(-2*time.Hour), domain.RoomStatusWaiting, time.Time{})

	locker := &mockLocker{}
	locker.On("TryLock", mock.Anything).Return(false, nil).Once()

	j := NewJanitor(repo, locker, nil, testConfig, logger.NewNop())
	deleted, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	locker.AssertExpectations(t)
	locker.AssertNotCalled(t, "Unlock", mock.Anything)

	_, err = repo.GetByID(context.Background(), "OLDWAI")
	assert.NoError(t, err)
}

func TestJanitor_ReleasesLockAfterSweep(t *testing.T) {
	now := time.Now()
	repo := memory.NewMemoryRoomRepository()
	seed(t, repo, "OLDWAI", now.Add(-2*time.Hour), domain.RoomStatusWaiting, time.Time{})

	locker := &mockLocker{}
	locker.On("TryLock", mock.Anything).Return(true, nil).Once()
	locker.On("Unlock", mock.Anything).Return(nil).Once()

	j := NewJanitor(repo, locker, nil, testConfig, logger.NewNop())
	deleted, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	locker.AssertExpectations(t)
}

func TestJanitor_LockError(t *testing.T) {
	locker := &mockLocker{}
	locker.On("TryLock", mock.Anything).Return(false, errors.New("redis down")).Once()

	j := NewJanitor(memory.NewMemoryRoomRepository(), locker, nil, testConfig, logger.NewNop())
	_, err := j.Sweep(context.Background())
	assert.EqualError(t, err, "redis down")
}

func TestJanitor_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig
	cfg.Interval = 5 * time.Millisecond
	j := NewJanitor(memory.NewMemoryRoomRepository(), nil, nil, cfg, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
