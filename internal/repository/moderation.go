package repository

import (
	"context"

	"arcade-rooms/internal/domain"
)

// ModerationRepository 封禁与邀请记录。
type ModerationRepository interface {
	IsBanned(ctx context.Context, roomID, userID string) (bool, error)
	CreateBan(ctx context.Context, ban *domain.RoomBan) error
	DeleteBan(ctx context.Context, roomID, userID string) error
	ListBans(ctx context.Context, roomID string) ([]domain.RoomBan, error)

	// UpsertInvitation 创建邀请，已存在时重置为 pending。
	UpsertInvitation(ctx context.Context, inv *domain.RoomInvitation) error
	// FindInvitation 不存在时返回 ErrNotFound。
	FindInvitation(ctx context.Context, roomID, userID string) (*domain.RoomInvitation, error)
	UpdateInvitationStatus(ctx context.Context, roomID, userID string, status domain.InvitationStatus) error
}
