package mocks

import (
	"context"

	"arcade-rooms/internal/domain"

	"github.com/stretchr/testify/mock"
)

// ModerationRepository is a mock type for the ModerationRepository type
type ModerationRepository struct {
	mock.Mock
}

func (_m *ModerationRepository) IsBanned(ctx context.Context, roomID, userID string) (bool, error) {
	ret := _m.Called(ctx, roomID, userID)
	return ret.Bool(0), ret.Error(1)
}

func (_m *ModerationRepository) CreateBan(ctx context.Context, ban *domain.RoomBan) error {
	ret := _m.Called(ctx, ban)
	return ret.Error(0)
}

func (_m *ModerationRepository) DeleteBan(ctx context.Context, roomID, userID string) error {
	ret := _m.Called(ctx, roomID, userID)
	return ret.Error(0)
}

func (_m *ModerationRepository) ListBans(ctx context.Context, roomID string) ([]domain.RoomBan, error) {
	ret := _m.Called(ctx, roomID)
	var r0 []domain.RoomBan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.RoomBan)
	}
	return r0, ret.Error(1)
}

func (_m *ModerationRepository) UpsertInvitation(ctx context.Context, inv *domain.RoomInvitation) error {
	ret := _m.Called(ctx, inv)
	return ret.Error(0)
}

func (_m *ModerationRepository) FindInvitation(ctx context.Context, roomID, userID string) (*domain.RoomInvitation, error) {
	ret := _m.Called(ctx, roomID, userID)
	var r0 *domain.RoomInvitation
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.RoomInvitation)
	}
	return r0, ret.Error(1)
}

func (_m *ModerationRepository) UpdateInvitationStatus(ctx context.Context, roomID, userID string, status domain.InvitationStatus) error {
	ret := _m.Called(ctx, roomID, userID, status)
	return ret.Error(0)
}
