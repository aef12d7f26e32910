package repository

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
)

// MemberRepository 定义了房间成员关系及其历史记录的存储操作。
type MemberRepository interface {
	// RunInTx 在一个事务中执行 fn，fn 收到的仓库实例绑定到该事务。
	RunInTx(ctx context.Context, fn func(tx MemberRepository) error) error

	// Find 查找 (roomID, userID) 对应的成员关系，不存在时返回 ErrMemberNotFound。
	Find(ctx context.Context, roomID, userID string) (*domain.RoomMember, error)

	// ListByRoom 返回房间的全部成员 (按加入时间排序)。
	ListByRoom(ctx context.Context, roomID string) ([]domain.RoomMember, error)

	// ListByUser 返回用户当前持有的成员关系 (按不变量最多一条)。
	ListByUser(ctx context.Context, userID string) ([]domain.RoomMember, error)

	// Create 插入成员关系，违反唯一约束时返回 ErrDuplicateEntry。
	Create(ctx context.Context, member *domain.RoomMember) error

	// UpdatePresence 更新在线标记与 lastSeen。
	UpdatePresence(ctx context.Context, roomID, userID string, online bool, at time.Time) error

	// Delete 删除单个成员关系，不存在时返回 ErrMemberNotFound。
	Delete(ctx context.Context, roomID, userID string) error

	// DeleteByRoom 删除房间的全部成员关系，返回删除条数。
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)

	// RecordHistory 追加或更新 (roomID, userID) 的历史记录。
	RecordHistory(ctx context.Context, roomID, userID, displayName string, action domain.MemberAction, at time.Time) error

	// ListHistory 返回房间的历史成员记录。
	ListHistory(ctx context.Context, roomID string) ([]domain.MemberHistory, error)
}
