package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/ownership"
	"arcade-rooms/internal/repository"
)

// DefaultSnapshotTTL 房间快照缓存的默认过期时间
const DefaultSnapshotTTL = 10 * time.Minute

// OwnershipService 从成员和玩家目录构建 玩家 -> 用户 的归属关系。
// 授权使用 Roster/BuildForRoom (权威数据)；RoomSnapshot 可能来自缓存，供客户端做同样的检查。
type OwnershipService struct {
	memberRepo  repository.MemberRepository
	playerRepo  repository.PlayerRepository
	stateRepo   repository.StateRepository
	snapshotTTL time.Duration
}

// NewOwnershipService 创建 OwnershipService 实例
func NewOwnershipService(memberRepo repository.MemberRepository, playerRepo repository.PlayerRepository, stateRepo repository.StateRepository, snapshotTTL time.Duration) *OwnershipService {
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for OwnershipService")
	}
	if playerRepo == nil {
		panic("PlayerRepository cannot be nil for OwnershipService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for OwnershipService")
	}
	if snapshotTTL <= 0 {
		snapshotTTL = DefaultSnapshotTTL
	}
	return &OwnershipService{
		memberRepo:  memberRepo,
		playerRepo:  playerRepo,
		stateRepo:   stateRepo,
		snapshotTTL: snapshotTTL,
	}
}

// Roster 读取房间当前成员及其活跃玩家
func (s *OwnershipService) Roster(ctx context.Context, roomID string) ([]domain.MemberPlayers, error) {
	logCtx := logrus.WithField("room_id", roomID)

	members, err := s.memberRepo.ListByRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list members for roster")
		return nil, ErrInternalServer
	}
	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	players, err := s.playerRepo.ListByUsers(ctx, userIDs)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list players for roster")
		return nil, ErrInternalServer
	}

	byUser := make(map[string][]domain.Player, len(members))
	for _, p := range players {
		byUser[p.UserID] = append(byUser[p.UserID], p)
	}
	roster := make([]domain.MemberPlayers, 0, len(members))
	for _, m := range members {
		owned := byUser[m.UserID]
		if owned == nil {
			owned = []domain.Player{}
		}
		roster = append(roster, domain.MemberPlayers{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			IsCreator:   m.IsCreator,
			IsOnline:    m.IsOnline,
			Players:     owned,
		})
	}
	return roster, nil
}

// BuildForRoom 房间范围的归属表
func (s *OwnershipService) BuildForRoom(ctx context.Context, roomID string) (ownership.Map, error) {
	roster, err := s.Roster(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return ownership.FromRoster(roster), nil
}

// BuildGlobal 整个玩家目录的归属表
func (s *OwnershipService) BuildGlobal(ctx context.Context) (ownership.Map, error) {
	players, err := s.playerRepo.ListActive(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to list player directory")
		return nil, ErrInternalServer
	}
	return ownership.FromDirectory(players), nil
}

// RoomSnapshot 优先读缓存，未命中时重建并写回
func (s *OwnershipService) RoomSnapshot(ctx context.Context, roomID string) (*domain.RoomSnapshot, error) {
	logCtx := logrus.WithField("room_id", roomID)

	cached, err := s.stateRepo.GetRoomSnapshot(ctx, roomID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Warn("Room snapshot cache unavailable, rebuilding")
	}

	roster, err := s.Roster(ctx, roomID)
	if err != nil {
		return nil, err
	}
	snapshot := &domain.RoomSnapshot{RoomID: roomID, Members: roster, TakenAt: time.Now().UTC()}
	if err := s.stateRepo.SetRoomSnapshot(ctx, snapshot, s.snapshotTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to cache room snapshot")
	}
	return snapshot, nil
}
