package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// GormPlayerRepository 玩家目录
type GormPlayerRepository struct {
	db *gorm.DB
}

// NewGormPlayerRepository 创建实例
func NewGormPlayerRepository(db *gorm.DB) *GormPlayerRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPlayerRepository")
	}
	return &GormPlayerRepository{db: db}
}

func (r *GormPlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	if err := r.db.WithContext(ctx).Create(player).Error; err != nil {
		if isDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create player %s: %w", player.ID, err)
	}
	return nil
}

func (r *GormPlayerRepository) FindByID(ctx context.Context, id string) (*domain.Player, error) {
	var p domain.Player
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("gorm: find player %s: %w", id, err)
	}
	return &p, nil
}

func (r *GormPlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	if err := r.db.WithContext(ctx).Save(player).Error; err != nil {
		return fmt.Errorf("gorm: save player %s: %w", player.ID, err)
	}
	return nil
}

func (r *GormPlayerRepository) ListByUsers(ctx context.Context, userIDs []string) ([]domain.Player, error) {
	if len(userIDs) == 0 {
		return []domain.Player{}, nil
	}
	var players []domain.Player
	err := r.db.WithContext(ctx).
		Where("user_id IN ? AND is_active = ?", userIDs, true).
		Order("created_at, id").
		Find(&players).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list players of %d users: %w", len(userIDs), err)
	}
	return players, nil
}

func (r *GormPlayerRepository) ListActive(ctx context.Context) ([]domain.Player, error) {
	var players []domain.Player
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("created_at, id").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("gorm: list active players: %w", err)
	}
	return players, nil
}
