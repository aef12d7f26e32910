package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// GormModerationRepository 封禁与邀请
type GormModerationRepository struct {
	db *gorm.DB
}

// NewGormModerationRepository 创建实例
func NewGormModerationRepository(db *gorm.DB) *GormModerationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormModerationRepository")
	}
	return &GormModerationRepository{db: db}
}

func (r *GormModerationRepository) IsBanned(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.RoomBan{}).Where("room_id = ? AND user_id = ?", roomID, userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check ban of %s in room %s: %w", userID, roomID, err)
	}
	return count > 0, nil
}

func (r *GormModerationRepository) CreateBan(ctx context.Context, ban *domain.RoomBan) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"banned_by", "reason"}),
	}).Create(ban).Error
	if err != nil {
		return fmt.Errorf("gorm: ban %s in room %s: %w", ban.UserID, ban.RoomID, err)
	}
	return nil
}

func (r *GormModerationRepository) DeleteBan(ctx context.Context, roomID, userID string) error {
	res := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&domain.RoomBan{})
	if res.Error != nil {
		return fmt.Errorf("gorm: unban %s in room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *GormModerationRepository) ListBans(ctx context.Context, roomID string) ([]domain.RoomBan, error) {
	var bans []domain.RoomBan
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at").Find(&bans).Error; err != nil {
		return nil, fmt.Errorf("gorm: list bans of room %s: %w", roomID, err)
	}
	return bans, nil
}

func (r *GormModerationRepository) UpsertInvitation(ctx context.Context, inv *domain.RoomInvitation) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"invited_by", "status", "updated_at"}),
	}).Create(inv).Error
	if err != nil {
		return fmt.Errorf("gorm: invite %s to room %s: %w", inv.UserID, inv.RoomID, err)
	}
	return nil
}

func (r *GormModerationRepository) FindInvitation(ctx context.Context, roomID, userID string) (*domain.RoomInvitation, error) {
	var inv domain.RoomInvitation
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("gorm: find invitation of %s to room %s: %w", userID, roomID, err)
	}
	return &inv, nil
}

func (r *GormModerationRepository) UpdateInvitationStatus(ctx context.Context, roomID, userID string, status domain.InvitationStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.RoomInvitation{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("gorm: update invitation of %s to room %s: %w", userID, roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
