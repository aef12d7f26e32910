package repository

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
)

// SessionRepository 游戏会话的持久化。会话以 room_id 为主键。
type SessionRepository interface {
	// FindByRoomID 不存在时返回 ErrSessionNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.GameSession, error)

	// Create 插入新会话，该房间已有会话时返回 ErrDuplicateEntry。
	Create(ctx context.Context, session *domain.GameSession) error

	// UpdateIfVersion 仅当存储的版本等于 expectedVersion 时写入 session 的状态和时间戳，
	// 并把版本置为 expectedVersion+1 (成功后同步到 session.Version)。
	// 没有行被更新 (版本已变或会话已删除) 时返回 ErrVersionConflict。
	UpdateIfVersion(ctx context.Context, session *domain.GameSession, expectedVersion int64) error

	// Touch 刷新 last_activity_at 与 expires_at，不改变版本。
	// 会话不存在或在 lastActivity 时刻已过期时返回 ErrSessionNotFound。
	Touch(ctx context.Context, roomID string, lastActivity, expiresAt time.Time) error

	// UpdateActivePlayers 替换活跃玩家列表，不改变版本。
	UpdateActivePlayers(ctx context.Context, roomID string, playerIDs []string, at time.Time) error

	// Delete 删除会话，不存在时不报错。
	Delete(ctx context.Context, roomID string) error

	// DeleteExpired 删除 expires_at < now 的会话，返回删除条数。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
