package memory

import (
	"context"
	"sort"
	"sync"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/ports"
)

// roomEntry serializes writers of one room. The repository map lock is only held to
// find or insert an entry, so rooms never contend with each other.
type roomEntry struct {
	mu      sync.Mutex
	room    *domain.Room
	deleted bool
}

type MemoryRoomRepository struct {
	rooms map[domain.RoomID]*roomEntry
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]*roomEntry),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return domain.ErrRoomCodeConflict
	}

	stored := room.Clone()
	stored.Version = 1
	room.Version = 1
	r.rooms[room.ID] = &roomEntry{room: stored}
	return nil
}

func (r *MemoryRoomRepository) entry(id domain.RoomID) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	return e, ok
}

func (r *MemoryRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

func (r *MemoryRoomRepository) Update(ctx context.Context, id domain.RoomID, fn func(room *domain.Room) error) (*domain.Room, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrRoomNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draft := e.room.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = e.room.ID
	draft.Version = e.room.Version + 1
	e.room = draft
	return draft.Clone(), nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	e, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	if !ok {
		return domain.ErrRoomNotFound
	}

	// an in-flight Update on this entry finishes first and is then discarded
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// List returns snapshots of all rooms ordered by creation time.
func (r *MemoryRoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	r.mu.RLock()
	entries := make([]*roomEntry, 0, len(r.rooms))
	for _, e := range r.rooms {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted {
			rooms = append(rooms, e.room.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}
