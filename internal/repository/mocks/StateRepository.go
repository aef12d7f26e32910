package mocks

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"

	"github.com/stretchr/testify/mock"
)

// StateRepository is a mock type for the StateRepository type
type StateRepository struct {
	mock.Mock
}

func (_m *StateRepository) GetRoomSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	ret := _m.Called(ctx, roomID)
	var r0 *domain.RoomSnapshot
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.RoomSnapshot)
	}
	return r0, ret.Error(1)
}

func (_m *StateRepository) SetRoomSnapshot(ctx context.Context, snapshot *domain.RoomSnapshot, ttl time.Duration) error {
	ret := _m.Called(ctx, snapshot, ttl)
	return ret.Error(0)
}

func (_m *StateRepository) DeleteRoomSnapshot(ctx context.Context, roomID string) error {
	ret := _m.Called(ctx, roomID)
	return ret.Error(0)
}

func (_m *StateRepository) PublishSessionEvent(ctx context.Context, event repository.SessionEvent) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

func (_m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ret := _m.Called(ctx, key, limit, window)
	return ret.Bool(0), ret.Error(1)
}

func (_m *StateRepository) SubscribeSessionEvents(ctx context.Context, handler func(repository.SessionEvent)) error {
	ret := _m.Called(ctx, handler)
	return ret.Error(0)
}
