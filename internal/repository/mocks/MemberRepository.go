package mocks

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MemberRepository is a mock type for the MemberRepository type
type MemberRepository struct {
	mock.Mock
}

// RunInTx 记录调用；预期返回 nil 时在同一个 mock 上执行 fn。
func (_m *MemberRepository) RunInTx(ctx context.Context, fn func(tx repository.MemberRepository) error) error {
	ret := _m.Called(ctx, fn)
	if err := ret.Error(0); err != nil {
		return err
	}
	return fn(_m)
}

func (_m *MemberRepository) Find(ctx context.Context, roomID, userID string) (*domain.RoomMember, error) {
	ret := _m.Called(ctx, roomID, userID)
	var r0 *domain.RoomMember
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*domain.RoomMember)
	}
	return r0, ret.Error(1)
}

func (_m *MemberRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	ret := _m.Called(ctx, roomID)
	var r0 []domain.RoomMember
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.RoomMember)
	}
	return r0, ret.Error(1)
}

func (_m *MemberRepository) ListByUser(ctx context.Context, userID string) ([]domain.RoomMember, error) {
	ret := _m.Called(ctx, userID)
	var r0 []domain.RoomMember
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.RoomMember)
	}
	return r0, ret.Error(1)
}

func (_m *MemberRepository) Create(ctx context.Context, member *domain.RoomMember) error {
	ret := _m.Called(ctx, member)
	return ret.Error(0)
}

func (_m *MemberRepository) UpdatePresence(ctx context.Context, roomID, userID string, online bool, at time.Time) error {
	ret := _m.Called(ctx, roomID, userID, online, at)
	return ret.Error(0)
}

func (_m *MemberRepository) Delete(ctx context.Context, roomID, userID string) error {
	ret := _m.Called(ctx, roomID, userID)
	return ret.Error(0)
}

func (_m *MemberRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	ret := _m.Called(ctx, roomID)
	var r0 int64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(int64)
	}
	return r0, ret.Error(1)
}

func (_m *MemberRepository) RecordHistory(ctx context.Context, roomID, userID, displayName string, action domain.MemberAction, at time.Time) error {
	ret := _m.Called(ctx, roomID, userID, displayName, action, at)
	return ret.Error(0)
}

func (_m *MemberRepository) ListHistory(ctx context.Context, roomID string) ([]domain.MemberHistory, error) {
	ret := _m.Called(ctx, roomID)
	var r0 []domain.MemberHistory
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]domain.MemberHistory)
	}
	return r0, ret.Error(1)
}
