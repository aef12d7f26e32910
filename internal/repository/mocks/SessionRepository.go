package mocks

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"

	"github.com/stretchr/testify/mock"
)

// SessionRepository is a mock type for the SessionRepository type
type SessionRepository struct {
	mock.Mock
}

func (_m *SessionRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.GameSession, error) {
	ret := _m.Called(ctx, roomID)
	var r0 *domain.GameSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.GameSession)
	}
	return r0, ret.Error(1)
}

func (_m *SessionRepository) Create(ctx context.Context, session *domain.GameSession) error {
	ret := _m.Called(ctx, session)
	return ret.Error(0)
}

func (_m *SessionRepository) UpdateIfVersion(ctx context.Context, session *domain.GameSession, expectedVersion int64) error {
	ret := _m.Called(ctx, session, expectedVersion)
	return ret.Error(0)
}

func (_m *SessionRepository) Touch(ctx context.Context, roomID string, lastActivity, expiresAt time.Time) error {
	ret := _m.Called(ctx, roomID, lastActivity, expiresAt)
	return ret.Error(0)
}

func (_m *SessionRepository) UpdateActivePlayers(ctx context.Context, roomID string, playerIDs []string, at time.Time) error {
	ret := _m.Called(ctx, roomID, playerIDs, at)
	return ret.Error(0)
}

func (_m *SessionRepository) Delete(ctx context.Context, roomID string) error {
	ret := _m.Called(ctx, roomID)
	return ret.Error(0)
}

func (_m *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ret := _m.Called(ctx, now)
	var r0 int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}
	return r0, ret.Error(1)
}
