package ports

import (
	"context"

	"dancebattle/internal/core/domain"
)

// RoomRepository stores one document per room. Update is the only read-modify-write
// primitive: fn receives a private copy and nothing is committed when it returns an error.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Update(ctx context.Context, id domain.RoomID, fn func(room *domain.Room) error) (*domain.Room, error)
	Delete(ctx context.Context, id domain.RoomID) error
	List(ctx context.Context) ([]*domain.Room, error)
}
