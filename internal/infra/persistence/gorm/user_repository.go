package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByID 实现根据 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by id %s: %w", id, err)
	}
	return &user, nil
}

// FindByGuestKeyHash 实现根据访客标识哈希查找用户
func (r *GormUserRepository) FindByGuestKeyHash(ctx context.Context, hash string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("guest_key_hash = ?", hash).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by guest key: %w", err)
	}
	return &user, nil
}

// Create 实现创建新用户
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create user %s: %w", user.ID, err)
	}
	return nil
}

// TouchLastSeen 更新最后出现时间，displayName 非空时一并更新
func (r *GormUserRepository) TouchLastSeen(ctx context.Context, id, displayName string, at time.Time) error {
	updates := map[string]interface{}{"last_seen_at": at}
	if displayName != "" {
		updates["display_name"] = displayName
	}
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("gorm: touch user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}
