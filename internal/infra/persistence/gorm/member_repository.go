package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// GormMemberRepository 是 MemberRepository 接口的 GORM 实现
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository 创建 GormMemberRepository 实例
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMemberRepository")
	}
	return &GormMemberRepository{db: db}
}

// RunInTx fn 中的所有调用都在同一个事务内执行
func (r *GormMemberRepository) RunInTx(ctx context.Context, fn func(tx repository.MemberRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormMemberRepository{db: tx})
	})
}

func (r *GormMemberRepository) Find(ctx context.Context, roomID, userID string) (*domain.RoomMember, error) {
	var m domain.RoomMember
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member %s in room %s: %w", userID, roomID, err)
	}
	return &m, nil
}

func (r *GormMemberRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	var members []domain.RoomMember
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("joined_at, user_id").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("gorm: list members of room %s: %w", roomID, err)
	}
	return members, nil
}

func (r *GormMemberRepository) ListByUser(ctx context.Context, userID string) ([]domain.RoomMember, error) {
	var members []domain.RoomMember
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("gorm: list memberships of user %s: %w", userID, err)
	}
	return members, nil
}

func (r *GormMemberRepository) Create(ctx context.Context, member *domain.RoomMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create member %s in room %s: %w", member.UserID, member.RoomID, err)
	}
	return nil
}

func (r *GormMemberRepository) UpdatePresence(ctx context.Context, roomID, userID string, online bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{"is_online": online, "last_seen": at})
	if res.Error != nil {
		return fmt.Errorf("gorm: update presence of %s in room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrMemberNotFound
	}
	return nil
}

func (r *GormMemberRepository) Delete(ctx context.Context, roomID, userID string) error {
	res := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&domain.RoomMember{})
	if res.Error != nil {
		return fmt.Errorf("gorm: delete member %s from room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrMemberNotFound
	}
	return nil
}

func (r *GormMemberRepository) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.RoomMember{})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm: delete members of room %s: %w", roomID, res.Error)
	}
	return res.RowsAffected, nil
}

// RecordHistory 首次插入时记录 first_joined_at，之后只更新最后时间和动作
func (r *GormMemberRepository) RecordHistory(ctx context.Context, roomID, userID, displayName string, action domain.MemberAction, at time.Time) error {
	h := domain.MemberHistory{
		RoomID:        roomID,
		UserID:        userID,
		DisplayName:   displayName,
		FirstJoinedAt: at,
		LastSeenAt:    at,
		LastAction:    action,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "last_seen_at", "last_action"}),
	}).Create(&h).Error
	if err != nil {
		return fmt.Errorf("gorm: record %s history for %s in room %s: %w", action, userID, roomID, err)
	}
	return nil
}

func (r *GormMemberRepository) ListHistory(ctx context.Context, roomID string) ([]domain.MemberHistory, error) {
	var history []domain.MemberHistory
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("first_joined_at").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("gorm: list history of room %s: %w", roomID, err)
	}
	return history, nil
}
