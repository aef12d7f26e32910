package mocks

import (
	"context"

	"arcade-rooms/internal/domain"

	"github.com/stretchr/testify/mock"
)

// PlayerRepository is a mock type for the PlayerRepository type
type PlayerRepository struct {
	mock.Mock
}

func (_m *PlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	ret := _m.Called(ctx, player)
	return ret.Error(0)
}

func (_m *PlayerRepository) FindByID(ctx context.Context, id string) (*domain.Player, error) {
	ret := _m.Called(ctx, id)
	var r0 *domain.Player
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.Player)
	}
	return r0, ret.Error(1)
}

func (_m *PlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	ret := _m.Called(ctx, player)
	return ret.Error(0)
}

func (_m *PlayerRepository) ListByUsers(ctx context.Context, userIDs []string) ([]domain.Player, error) {
	ret := _m.Called(ctx, userIDs)
	var r0 []domain.Player
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Player)
	}
	return r0, ret.Error(1)
}

func (_m *PlayerRepository) ListActive(ctx context.Context) ([]domain.Player, error) {
	ret := _m.Called(ctx)
	var r0 []domain.Player
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.Player)
	}
	return r0, ret.Error(1)
}
