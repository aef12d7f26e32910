package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

const maxPlayerNameLength = 32

// PlayerService 管理用户拥有的游戏玩家
type PlayerService struct {
	playerRepo repository.PlayerRepository
	memberRepo repository.MemberRepository
	stateRepo  repository.StateRepository
}

// NewPlayerService 创建 PlayerService 实例
func NewPlayerService(playerRepo repository.PlayerRepository, memberRepo repository.MemberRepository, stateRepo repository.StateRepository) *PlayerService {
	if playerRepo == nil {
		panic("PlayerRepository cannot be nil for PlayerService")
	}
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for PlayerService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for PlayerService")
	}
	return &PlayerService{playerRepo: playerRepo, memberRepo: memberRepo, stateRepo: stateRepo}
}

// CreatePlayer 为用户创建一个新玩家
func (s *PlayerService) CreatePlayer(ctx context.Context, userID, name, emoji, color string) (*domain.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxPlayerNameLength {
		return nil, fmt.Errorf("%w: player name must be 1-%d characters", ErrInvalidInput, maxPlayerNameLength)
	}
	player := &domain.Player{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		Emoji:    strings.TrimSpace(emoji),
		Color:    strings.TrimSpace(color),
		IsActive: true,
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to create player")
		return nil, ErrInternalServer
	}
	s.invalidateUserRooms(ctx, userID)
	return player, nil
}

// ListPlayers 用户拥有的活跃玩家
func (s *PlayerService) ListPlayers(ctx context.Context, userID string) ([]domain.Player, error) {
	players, err := s.playerRepo.ListByUsers(ctx, []string{userID})
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list players")
		return nil, ErrInternalServer
	}
	return players, nil
}

// DeactivatePlayer 停用玩家，之后不再出现在任何归属表中
func (s *PlayerService) DeactivatePlayer(ctx context.Context, userID, playerID string) error {
	player, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("player_id", playerID).WithError(err).Error("Failed to load player")
		}
		return mapRepoError(err, ErrPlayerNotFound)
	}
	if player.UserID != userID {
		return ErrPlayerNotOwned
	}
	if !player.IsActive {
		return nil
	}
	player.IsActive = false
	if err := s.playerRepo.Save(ctx, player); err != nil {
		logrus.WithField("player_id", playerID).WithError(err).Error("Failed to deactivate player")
		return ErrInternalServer
	}
	s.invalidateUserRooms(ctx, userID)
	return nil
}

// 玩家变化会影响用户所在房间的快照
func (s *PlayerService) invalidateUserRooms(ctx context.Context, userID string) {
	members, err := s.memberRepo.ListByUser(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Failed to list rooms for snapshot invalidation")
		return
	}
	for _, m := range members {
		if err := s.stateRepo.DeleteRoomSnapshot(ctx, m.RoomID); err != nil {
			logrus.WithField("room_id", m.RoomID).WithError(err).Warn("Failed to invalidate room snapshot")
		}
	}
}
