package repository

import (
	"context"
	"time"

	"arcade-rooms/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByID 不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByGuestKeyHash 根据访客标识哈希查找用户。
	FindByGuestKeyHash(ctx context.Context, hash string) (*domain.User, error)

	// Create 插入用户，哈希冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, user *domain.User) error

	// TouchLastSeen 更新最后出现时间和显示名称 (为空则不改)。
	TouchLastSeen(ctx context.Context, id, displayName string, at time.Time) error
}
