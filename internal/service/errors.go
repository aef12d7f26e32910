package service

import (
	"errors"

	"arcade-rooms/internal/repository"
)

var (
	// not-found：调用方应重新建立上下文 (重新加入、重新创建)
	ErrUserNotFound    = errors.New("user not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrNoActiveSession = errors.New("no active session")

	// 乐观提交失败，调用方可重新读取后重试
	ErrVersionConflict = errors.New("version conflict detected")

	// 权限
	ErrNotRoomHost    = errors.New("only the room host can do this")
	ErrNotRoomMember  = errors.New("user is not a member of this room")
	ErrUserBanned     = errors.New("user is banned from this room")
	ErrRoomLocked     = errors.New("room is locked")
	ErrPlayerNotOwned = errors.New("player is not owned by this user")

	ErrInvalidGameConfig       = errors.New("invalid game configuration")
	ErrInvalidStatusTransition = errors.New("invalid room status transition")
	ErrRosterFrozen            = errors.New("active players can only change during setup")
	ErrInvalidInput            = errors.New("invalid input")
	ErrMembershipConflict      = errors.New("membership changed concurrently, please retry")
	ErrCodeGenerationFailed    = errors.New("failed to generate a unique room code")
	ErrInternalServer          = errors.New("internal server error")
)

// mapRepoError 将仓库层的错误映射到服务层定义的错误。
// notFound 是当前上下文中"不存在"对应的服务层错误。
func mapRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrVersionConflict
	default:
		return ErrInternalServer
	}
}
