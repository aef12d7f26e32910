package repository

import (
	"context"

	"arcade-rooms/internal/domain"
)

// PlayerRepository 全局玩家目录
type PlayerRepository interface {
	Create(ctx context.Context, player *domain.Player) error
	// FindByID 不存在时返回 ErrPlayerNotFound。
	FindByID(ctx context.Context, id string) (*domain.Player, error)
	Save(ctx context.Context, player *domain.Player) error
	// ListByUsers 返回这些用户拥有的活跃玩家；userIDs 为空时返回空列表。
	ListByUsers(ctx context.Context, userIDs []string) ([]domain.Player, error)
	// ListActive 返回整个目录中的活跃玩家。
	ListActive(ctx context.Context) ([]domain.Player, error)
}
