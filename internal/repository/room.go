package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"arcade-rooms/internal/domain"
)

// RoomChanges 房间的部分更新。nil 字段保持不变，LastActivity 总是写入。
type RoomChanges struct {
	Name         *string
	GameName     *string
	GameConfig   datatypes.JSON
	IsLocked     *bool
	Status       *domain.RoomStatus
	LastActivity time.Time
}

// RoomRepository 定义了房间数据的存储和检索操作。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间，不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// FindByCode 根据加入码查找房间 (调用方负责大小写规范化)。
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// IsCodeExists 检查加入码是否已被占用。
	IsCodeExists(ctx context.Context, code string) (bool, error)

	// Create 插入新房间，加入码冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// Update 只写入 changes 中给出的列，房间不存在时返回 ErrRoomNotFound (不会重新插入)。
	Update(ctx context.Context, id string, changes RoomChanges) error

	// Touch 刷新 last_activity。
	Touch(ctx context.Context, id string, at time.Time) error

	// Delete 删除房间，并在同一事务中级联删除成员、会话、邀请和封禁记录。
	Delete(ctx context.Context, id string) error

	// DeleteIfExpired 在事务中锁定房间并重新判断过期，仍然过期才做与 Delete 相同的级联删除。
	// 房间在扫描后又有活动时返回 ErrStillActive。
	DeleteIfExpired(ctx context.Context, id string, now time.Time) error

	// FindExpired 扫描所有房间，返回 lastActivity + ttl < now 的房间。
	FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error)

	// ListOpen 返回未锁定、处于 lobby 状态的房间 (按最近活跃排序)。
	ListOpen(ctx context.Context, limit int) ([]domain.Room, error)
}
