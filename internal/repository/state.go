package repository

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
)

// 会话事件类型
const (
	EventSessionUpdate  = "session_update"
	EventSessionDeleted = "session_deleted"
	EventMemberLeft     = "member_left"
)

// SessionEvent 会话提交后发布到房间频道的消息
type SessionEvent struct {
	Type     string              `json:"type"` // "session_update" | "session_deleted" | "member_left"
	RoomID   string              `json:"roomId"`
	Session  *domain.GameSession `json:"session,omitempty"`
	UserID   string              `json:"userId,omitempty"` // 触发事件的用户
	MoveType string              `json:"moveType,omitempty"`
}

// StateRepository 定义了与房间实时状态相关的操作，由 Redis 实现。
type StateRepository interface {
	// === Room Snapshot Caching ===

	// GetRoomSnapshot 从缓存中获取房间快照，未命中时返回 ErrNotFound。
	GetRoomSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error)

	// SetRoomSnapshot 写入房间快照缓存，ttl 为 0 表示不过期。
	SetRoomSnapshot(ctx context.Context, snapshot *domain.RoomSnapshot, ttl time.Duration) error

	// DeleteRoomSnapshot 使缓存失效。
	DeleteRoomSnapshot(ctx context.Context, roomID string) error

	// === PubSub ===

	// PublishSessionEvent 将事件发布到房间频道。
	PublishSessionEvent(ctx context.Context, event SessionEvent) error

	// SubscribeSessionEvents 订阅所有房间的会话事件，阻塞直到 ctx 取消或订阅出错。
	SubscribeSessionEvents(ctx context.Context, handler func(SessionEvent)) error

	// === Rate Limiting ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。超限返回 true。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
