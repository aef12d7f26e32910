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

// 扫描过期房间时每批读取的条数
const expiryScanBatchSize = 200

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %s: %w", id, err)
	}
	return &room, nil
}

// FindByCode 实现根据加入码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// IsCodeExists 实现检查加入码是否存在
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// Create 插入新房间
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (id: %s, code: %s): %w", room.ID, room.Code, err)
	}
	return nil
}

// Update 按列更新。UPDATE 没有命中任何行时不会像 Save 那样回退成 INSERT。
func (r *GormRoomRepository) Update(ctx context.Context, id string, changes repository.RoomChanges) error {
	cols := map[string]interface{}{"last_activity": changes.LastActivity}
	if changes.Name != nil {
		cols["name"] = *changes.Name
	}
	if changes.GameName != nil {
		cols["game_name"] = *changes.GameName
	}
	if changes.GameConfig != nil {
		cols["game_config"] = changes.GameConfig
	}
	if changes.IsLocked != nil {
		cols["is_locked"] = *changes.IsLocked
	}
	if changes.Status != nil {
		cols["status"] = *changes.Status
	}
	res := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("gorm: update room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// Touch 刷新 last_activity
func (r *GormRoomRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Update("last_activity", at)
	if res.Error != nil {
		return fmt.Errorf("gorm: touch room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// Delete 在一个事务中删除房间及其成员、会话、邀请、封禁记录。历史记录保留，标记为 room_deleted。
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteRoomCascade(tx, id)
	})
}

// DeleteIfExpired 先锁住房间行再判断过期，与并发的 Touch 串行 (sqlite 忽略行锁，写事务本身已串行)
func (r *GormRoomRepository) DeleteIfExpired(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&room).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRoomNotFound
			}
			return fmt.Errorf("gorm: lock room %s: %w", id, err)
		}
		if !room.IsExpired(now) {
			return repository.ErrStillActive
		}
		return deleteRoomCascade(tx, id)
	})
}

func deleteRoomCascade(tx *gorm.DB, id string) error {
	members := tx.Model(&domain.RoomMember{}).Select("user_id").Where("room_id = ?", id)
	if err := tx.Model(&domain.MemberHistory{}).
		Where("room_id = ? AND user_id IN (?)", id, members).
		Updates(map[string]interface{}{"last_action": domain.MemberActionRoomGone, "last_seen_at": time.Now()}).Error; err != nil {
		return fmt.Errorf("gorm: mark history for room %s: %w", id, err)
	}
	cascade := []interface{}{
		&domain.RoomMember{},
		&domain.GameSession{},
		&domain.RoomInvitation{},
		&domain.RoomBan{},
	}
	for _, model := range cascade {
		if err := tx.Where("room_id = ?", id).Delete(model).Error; err != nil {
			return fmt.Errorf("gorm: cascade delete %T for room %s: %w", model, id, err)
		}
	}
	res := tx.Where("id = ?", id).Delete(&domain.Room{})
	if res.Error != nil {
		return fmt.Errorf("gorm: delete room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// FindExpired 分批扫描全部房间，按存储的时间戳计算过期
func (r *GormRoomRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.Room, error) {
	var (
		expired []domain.Room
		batch   []domain.Room
	)
	res := r.db.WithContext(ctx).Model(&domain.Room{}).Order("id").
		FindInBatches(&batch, expiryScanBatchSize, func(tx *gorm.DB, _ int) error {
			for _, room := range batch {
				if room.IsExpired(now) {
					expired = append(expired, room)
				}
			}
			return nil
		})
	if res.Error != nil {
		return nil, fmt.Errorf("gorm: scan expired rooms: %w", res.Error)
	}
	return expired, nil
}

// ListOpen 未锁定的 lobby 房间
func (r *GormRoomRepository) ListOpen(ctx context.Context, limit int) ([]domain.Room, error) {
	if limit <= 0 {
		limit = 50
	}
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("is_locked = ? AND status = ?", false, domain.RoomStatusLobby).
		Order("last_activity desc").
		Limit(limit).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list open rooms: %w", err)
	}
	return rooms, nil
}
