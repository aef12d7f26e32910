package mocks

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"

	"github.com/stretchr/testify/mock"
)

// RoomRepository is a mock type for the RoomRepository type
type RoomRepository struct {
	mock.Mock
}

func (_m *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	ret := _m.Called(ctx, id)
	var r0 *domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Room)
	}
	return r0, ret.Error(1)
}

func (_m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	ret := _m.Called(ctx, code)
	var r0 *domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Room)
	}
	return r0, ret.Error(1)
}

func (_m *RoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	ret := _m.Called(ctx, code)
	return ret.Bool(0), ret.Error(1)
}

func (_m *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	ret := _m.Called(ctx, room)
	return ret.Error(0)
}

func (_m *RoomRepository) Update(ctx context.Context, id string, changes repository.RoomChanges) error {
	ret := _m.Called(ctx, id, changes)
	return ret.Error(0)
}

func (_m *RoomRepository) DeleteIfExpired(ctx context.Context, id string, now time.Time) error {
	ret := _m.Called(ctx, id, now)
	return ret.Error(0)
}

func (_m *RoomRepository) Touch(ctx context.Context, id string, at time.Time) error {
	ret := _m.Called(ctx, id, at)
	return ret.Error(0)
}

func (_m *RoomRepository) Delete(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

func (_m *RoomRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error) {
	ret := _m.Called(ctx, now)
	var r0 []domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Room)
	}
	return r0, ret.Error(1)
}

func (_m *RoomRepository) ListOpen(ctx context.Context, limit int) ([]domain.Room, error) {
	ret := _m.Called(ctx, limit)
	var r0 []domain.Room
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Room)
	}
	return r0, ret.Error(1)
}
