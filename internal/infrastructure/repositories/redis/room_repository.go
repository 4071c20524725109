package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
	"dancebattle/pkg/retry"
	"dancebattle/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "dancebattle:"
	roomKeyPrefix = keyPrefix + "room:"
	roomIndexKey  = keyPrefix + "rooms"
)

// RedisRoomRepository stores each room as one JSON document. Writes are optimistic
// WATCH/MULTI transactions retried on conflict, so concurrent writers on different
// instances never lose updates.
type RedisRoomRepository struct {
	client       redis.UniversalClient
	completedTTL time.Duration
	retryCfg     retry.Config
}

// NewRedisRoomRepository returns a repository; completed rooms expire after completedTTL
// (zero keeps them until deleted).
func NewRedisRoomRepository(client redis.UniversalClient, completedTTL time.Duration) ports.RoomRepository {
	return &RedisRoomRepository{
		client:       client,
		completedTTL: completedTTL,
		retryCfg: retry.Config{
			MaxAttempts:  20,
			InitialDelay: time.Millisecond,
			MaxDelay:     20 * time.Millisecond,
			Multiplier:   2,
			Jitter:       true,
			Retryable:    retry.On(redis.TxFailedErr),
		},
	}
}

func roomKey(id domain.RoomID) string {
	return roomKeyPrefix + string(id)
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ctx, span := tracing.TraceRepository(ctx, "redis", "room.create")
	defer span.End()

	stored := room.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	created, err := r.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room in Redis: %w", err)
	}
	if !created {
		return domain.ErrRoomCodeConflict
	}
	if err := r.client.SAdd(ctx, roomIndexKey, string(room.ID)).Err(); err != nil {
		return fmt.Errorf("failed to index room: %w", err)
	}
	room.Version = 1
	return nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, roomKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}
	return decodeRoom(data)
}

func (r *RedisRoomRepository) Update(ctx context.Context, id domain.RoomID, fn func(room *domain.Room) error) (*domain.Room, error) {
	ctx, span := tracing.TraceRepository(ctx, "redis", "room.update")
	defer span.End()

	key := roomKey(id)
	return retry.RetryWithResult(ctx, r.retryCfg, func() (*domain.Room, error) {
		var updated *domain.Room
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return domain.ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			room, err := decodeRoom(data)
			if err != nil {
				return err
			}

			if err := fn(room); err != nil {
				return err
			}
			room.ID = id
			room.Version++

			out, err := json.Marshal(room)
			if err != nil {
				return fmt.Errorf("failed to marshal room: %w", err)
			}
			var ttl time.Duration
			if room.Status == domain.RoomStatusCompleted {
				ttl = r.completedTTL
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			updated = room
			return nil
		}, key)
		return updated, err
	})
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, roomKey(id))
		pipe.SRem(ctx, roomIndexKey, string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// List returns every indexed room. Index entries whose document expired are pruned.
func (r *RedisRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	ids, err := r.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Room{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(domain.RoomID(id))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		room, err := decodeRoom([]byte(s))
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if len(stale) > 0 {
		_ = r.client.SRem(ctx, roomIndexKey, stale...).Err()
	}
	return rooms, nil
}

func decodeRoom(data []byte) (*domain.Room, error) {
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	if room.Scores == nil {
		room.Scores = make(map[domain.PlayerID]float64)
	}
	if room.Players == nil {
		room.Players = []domain.PlayerID{}
	}
	box := domain.NewSignalingBox()
	for k, v := range room.Signaling.Offers {
		box.Offers[k] = v
	}
	for k, v := range room.Signaling.Answers {
		box.Answers[k] = v
	}
	for k, v := range room.Signaling.ICECandidates {
		box.ICECandidates[k] = v
	}
	room.Signaling = box
	return &room, nil
}
