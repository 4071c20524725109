package retention

import (
	"context"
	stderrors "errors"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/internal/core/services"
	"dancebattle/pkg/utils"

	"go.uber.org/zap"
)

// Locker makes a sweep exclusive across instances.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type Config struct {
	Interval   time.Duration
	Retention  time.Duration
	WaitingTTL time.Duration
	PlayingTTL time.Duration
}

// Janitor deletes completed rooms once their retention has passed, waiting rooms that
// never started, and games abandoned before both scores arrived.
type Janitor struct {
	repo    ports.RoomRepository
	locker  Locker
	metrics ports.MetricsRecorder
	cfg     Config
	now     func() time.Time
	logger  *zap.SugaredLogger
}

// NewJanitor creates a janitor. locker may be nil for single-instance deployments.
func NewJanitor(repo ports.RoomRepository, locker Locker, metrics ports.MetricsRecorder, cfg Config, logger *zap.SugaredLogger) *Janitor {
	if metrics == nil {
		metrics = services.NopMetrics{}
	}
	return &Janitor{
		repo:    repo,
		locker:  locker,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.Warnw("room sweep failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and returns the number of rooms deleted. It does nothing when
// another instance holds the lock.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.locker != nil {
		acquired, err := j.locker.TryLock(ctx)
		if err != nil {
			return 0, err
		}
		if !acquired {
			j.logger.Debug("room sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := j.locker.Unlock(context.Background()); err != nil {
				j.logger.Warnw("failed to release janitor lock", "error", err)
			}
		}()
	}

	rooms, err := j.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	now := j.now()
	deleted := 0
	for _, room := range rooms {
		if !j.expired(room, now) {
			continue
		}
		if err := j.repo.Delete(ctx, room.ID); err != nil {
			if stderrors.Is(err, domain.ErrRoomNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
		j.metrics.RoomDeleted()
		j.logger.Debugw("room expired", "room_id", room.ID, "status", room.Status)
	}

	if deleted > 0 {
		j.logger.Infow("room sweep finished", "deleted", deleted, "remaining", len(rooms)-deleted)
	}
	return deleted, nil
}

func (j *Janitor) expired(room *domain.Room, now time.Time) bool {
	switch room.Status {
	case domain.RoomStatusCompleted:
		return utils.OlderThan(room.CompletedAt, now, j.cfg.Retention)
	case domain.RoomStatusWaiting:
		return utils.OlderThan(room.CreatedAt, now, j.cfg.WaitingTTL)
	case domain.RoomStatusPlaying:
		return utils.OlderThan(room.StartedAt, now, j.cfg.PlayingTTL)
	default:
		return false
	}
}
