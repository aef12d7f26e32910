package mocks

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"

	"github.com/stretchr/testify/mock"
)

// UserRepository is a mock type for the UserRepository type
type UserRepository struct {
	mock.Mock
}

func (_m *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	ret := _m.Called(ctx, id)
	var r0 *domain.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.User)
	}
	return r0, ret.Error(1)
}

func (_m *UserRepository) FindByGuestKeyHash(ctx context.Context, hash string) (*domain.User, error) {
	ret := _m.Called(ctx, hash)
	var r0 *domain.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.User)
	}
	return r0, ret.Error(1)
}

func (_m *UserRepository) Create(ctx context.Context, user *domain.User) error {
	ret := _m.Called(ctx, user)
	return ret.Error(0)
}

func (_m *UserRepository) TouchLastSeen(ctx context.Context, id, displayName string, at time.Time) error {
	ret := _m.Called(ctx, id, displayName, at)
	return ret.Error(0)
}
