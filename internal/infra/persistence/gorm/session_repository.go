package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// GormSessionRepository 是 SessionRepository 接口的 GORM 实现
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository 创建 GormSessionRepository 实例
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSessionRepository")
	}
	return &GormSessionRepository{db: db}
}

// FindByRoomID 按房间查找会话
func (r *GormSessionRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.GameSession, error) {
	var s domain.GameSession
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find session of room %s: %w", roomID, err)
	}
	return &s, nil
}

// Create 插入会话。主键冲突说明并发创建，交给上层按幂等处理。
func (r *GormSessionRepository) Create(ctx context.Context, session *domain.GameSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create session for room %s: %w", session.RoomID, err)
	}
	return nil
}

// UpdateIfVersion 条件更新：UPDATE ... WHERE room_id = ? AND version = ?
func (r *GormSessionRepository) UpdateIfVersion(ctx context.Context, session *domain.GameSession, expectedVersion int64) error {
	next := expectedVersion + 1
	res := r.db.WithContext(ctx).Model(&domain.GameSession{}).
		Where("room_id = ? AND version = ?", session.RoomID, expectedVersion).
		Updates(map[string]interface{}{
			"game_state":       session.GameState,
			"version":          next,
			"last_activity_at": session.LastActivityAt,
			"expires_at":       session.ExpiresAt,
			"is_active":        session.IsActive,
		})
	if res.Error != nil {
		return fmt.Errorf("gorm: update session of room %s at version %d: %w", session.RoomID, expectedVersion, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrVersionConflict
	}
	session.Version = next
	return nil
}

// Touch 只刷新活跃时间和过期时间；expires_at 已早于 lastActivity 的会话不会被续期
func (r *GormSessionRepository) Touch(ctx context.Context, roomID string, lastActivity, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.GameSession{}).
		Where("room_id = ? AND expires_at >= ?", roomID, lastActivity).
		Updates(map[string]interface{}{"last_activity_at": lastActivity, "expires_at": expiresAt})
	if res.Error != nil {
		return fmt.Errorf("gorm: touch session of room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (r *GormSessionRepository) UpdateActivePlayers(ctx context.Context, roomID string, playerIDs []string, at time.Time) error {
	if playerIDs == nil {
		playerIDs = []string{}
	}
	res := r.db.WithContext(ctx).Model(&domain.GameSession{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"active_players":   datatypes.JSONSlice[string](playerIDs),
			"last_activity_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("gorm: update active players of room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (r *GormSessionRepository) Delete(ctx context.Context, roomID string) error {
	if err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&domain.GameSession{}).Error; err != nil {
		return fmt.Errorf("gorm: delete session of room %s: %w", roomID, err)
	}
	return nil
}

func (r *GormSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&domain.GameSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm: delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
