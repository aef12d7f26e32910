package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/repository"
)

// JoinResult 加入房间的结果。AutoLeave 非 nil 时调用方需要通知被离开的房间。
type JoinResult struct {
	Member    *domain.RoomMember      `json:"member"`
	AutoLeave *domain.AutoLeaveResult `json:"autoLeaveResult,omitempty"`
}

// MembershipService 维护"每个用户同一时刻最多属于一个房间"的成员关系，以及封禁、邀请、历史记录。
type MembershipService struct {
	roomRepo       repository.RoomRepository
	memberRepo     repository.MemberRepository
	moderationRepo repository.ModerationRepository
	stateRepo      repository.StateRepository
}

// NewMembershipService 创建 MembershipService 实例
func NewMembershipService(
	roomRepo repository.RoomRepository,
	memberRepo repository.MemberRepository,
	moderationRepo repository.ModerationRepository,
	stateRepo repository.StateRepository,
) *MembershipService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for MembershipService")
	}
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for MembershipService")
	}
	if moderationRepo == nil {
		panic("ModerationRepository cannot be nil for MembershipService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for MembershipService")
	}
	return &MembershipService{
		roomRepo:       roomRepo,
		memberRepo:     memberRepo,
		moderationRepo: moderationRepo,
		stateRepo:      stateRepo,
	}
}

// AddRoomMember 将用户加入房间。
// 已经是该房间成员时只刷新在线状态；否则在一个事务里先退出其他所有房间，再插入新成员。
func (s *MembershipService) AddRoomMember(ctx context.Context, roomID, userID, displayName string, isCreator bool) (*JoinResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID})

	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	displayName = strings.TrimSpace(displayName)

	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	// 1. 幂等：已经在这个房间
	existing, err := s.memberRepo.Find(ctx, roomID, userID)
	if err == nil {
		if err := s.memberRepo.UpdatePresence(ctx, roomID, userID, true, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to refresh presence on rejoin")
			return nil, ErrInternalServer
		}
		existing.IsOnline = true
		existing.LastSeen = now
		return &JoinResult{Member: existing}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Error("Failed to look up membership")
		return nil, ErrInternalServer
	}

	// 2. 封禁与锁定检查
	isHost := room.CreatorID == userID
	banned, err := s.moderationRepo.IsBanned(ctx, roomID, userID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check ban")
		return nil, ErrInternalServer
	}
	if banned {
		return nil, ErrUserBanned
	}
	invited := false
	if room.IsLocked && !isHost {
		inv, err := s.moderationRepo.FindInvitation(ctx, roomID, userID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to look up invitation")
			return nil, ErrInternalServer
		}
		if inv == nil || inv.Status != domain.InvitationPending {
			return nil, ErrRoomLocked
		}
		invited = true
	}

	member := &domain.RoomMember{
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		IsCreator:   isCreator || isHost,
		IsOnline:    true,
		JoinedAt:    now,
		LastSeen:    now,
	}
	autoLeave := &domain.AutoLeaveResult{PreviousRoomMembers: map[string][]domain.RoomMember{}}

	// 3. 自动退出旧房间 + 插入新成员，同一事务
	err = s.memberRepo.RunInTx(ctx, func(tx repository.MemberRepository) error {
		current, err := tx.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, m := range current {
			if m.RoomID == roomID {
				continue
			}
			roster, err := tx.ListByRoom(ctx, m.RoomID)
			if err != nil {
				return err
			}
			if err := tx.Delete(ctx, m.RoomID, userID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					continue // 已被并发移除
				}
				return err
			}
			if err := tx.RecordHistory(ctx, m.RoomID, userID, m.DisplayName, domain.MemberActionAutoLeft, now); err != nil {
				return err
			}
			autoLeave.LeftRooms = append(autoLeave.LeftRooms, m.RoomID)
			autoLeave.PreviousRoomMembers[m.RoomID] = roster
		}

		if err := tx.Create(ctx, member); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return ErrMembershipConflict
			}
			return err
		}
		return tx.RecordHistory(ctx, roomID, userID, displayName, domain.MemberActionJoined, now)
	})
	if err != nil {
		if errors.Is(err, ErrMembershipConflict) {
			logCtx.Warn("Concurrent join detected by unique constraint")
			return nil, ErrMembershipConflict
		}
		logCtx.WithError(err).Error("Failed to join room")
		return nil, ErrInternalServer
	}

	// 4. 以下都是尽力而为
	if invited {
		if err := s.moderationRepo.UpdateInvitationStatus(ctx, roomID, userID, domain.InvitationAccepted); err != nil {
			logCtx.WithError(err).Warn("Failed to mark invitation accepted")
		}
	}
	s.touchRoom(ctx, roomID, now)
	s.invalidateSnapshot(ctx, roomID)
	for _, left := range autoLeave.LeftRooms {
		s.invalidateSnapshot(ctx, left)
		s.publishMemberLeft(ctx, left, userID)
	}

	result := &JoinResult{Member: member}
	if !autoLeave.Empty() {
		result.AutoLeave = autoLeave
		logCtx.WithField("left_rooms", autoLeave.LeftRooms).Info("User auto-left previous rooms")
	}
	logCtx.Info("User joined room")
	return result, nil
}

// RemoveMember 用户主动离开房间，记录 left
func (s *MembershipService) RemoveMember(ctx context.Context, roomID, userID string) error {
	return s.removeWithAction(ctx, roomID, userID, domain.MemberActionLeft)
}

// RemoveAllMembers 清空房间的成员，返回删除数量
func (s *MembershipService) RemoveAllMembers(ctx context.Context, roomID string) (int64, error) {
	n, err := s.memberRepo.DeleteByRoom(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to remove room members")
		return 0, ErrInternalServer
	}
	s.invalidateSnapshot(ctx, roomID)
	return n, nil
}

// GetUserRooms 返回用户当前所在的房间 ID (按不变式最多一个)
func (s *MembershipService) GetUserRooms(ctx context.Context, userID string) ([]string, error) {
	members, err := s.memberRepo.ListByUser(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list user rooms")
		return nil, ErrInternalServer
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.RoomID)
	}
	return ids, nil
}

// GetRoomMembers 当前成员列表
func (s *MembershipService) GetRoomMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	if _, err := s.loadRoom(ctx, roomID); err != nil {
		return nil, err
	}
	members, err := s.memberRepo.ListByRoom(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to list room members")
		return nil, ErrInternalServer
	}
	return members, nil
}

// SetOnline 更新在线状态 (websocket 连接/断开时调用)
func (s *MembershipService) SetOnline(ctx context.Context, roomID, userID string, online bool) error {
	if err := s.memberRepo.UpdatePresence(ctx, roomID, userID, online, time.Now().UTC()); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).WithError(err).Error("Failed to update presence")
		}
		return mapRepoError(err, ErrMemberNotFound)
	}
	s.invalidateSnapshot(ctx, roomID)
	return nil
}

// KickMember 房主把成员移出房间
func (s *MembershipService) KickMember(ctx context.Context, roomID, hostID, targetID string) error {
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return err
	}
	if targetID == hostID {
		return fmt.Errorf("%w: host cannot kick themselves", ErrInvalidInput)
	}
	return s.removeWithAction(ctx, roomID, targetID, domain.MemberActionKicked)
}

// BanMember 封禁用户，如果该用户在房间里则一并移出
func (s *MembershipService) BanMember(ctx context.Context, roomID, hostID, targetID, reason string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "host_id": hostID, "target_id": targetID})
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return err
	}
	if targetID == hostID {
		return fmt.Errorf("%w: host cannot ban themselves", ErrInvalidInput)
	}

	ban := &domain.RoomBan{RoomID: roomID, UserID: targetID, BannedBy: hostID, Reason: strings.TrimSpace(reason)}
	if err := s.moderationRepo.CreateBan(ctx, ban); err != nil {
		logCtx.WithError(err).Error("Failed to create ban")
		return ErrInternalServer
	}

	err := s.removeWithAction(ctx, roomID, targetID, domain.MemberActionBanned)
	if errors.Is(err, ErrMemberNotFound) {
		// 不在房间里，仍然记录历史
		if err := s.memberRepo.RecordHistory(ctx, roomID, targetID, "", domain.MemberActionBanned, time.Now().UTC()); err != nil {
			logCtx.WithError(err).Warn("Failed to record ban history")
		}
		err = nil
	}
	if err == nil {
		logCtx.Info("User banned")
	}
	return err
}

// UnbanMember 解除封禁
func (s *MembershipService) UnbanMember(ctx context.Context, roomID, hostID, targetID string) error {
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return err
	}
	if err := s.moderationRepo.DeleteBan(ctx, roomID, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: user is not banned", ErrInvalidInput)
		}
		logrus.WithFields(logrus.Fields{"room_id": roomID, "target_id": targetID}).WithError(err).Error("Failed to delete ban")
		return ErrInternalServer
	}
	return nil
}

// ListBans 房主查看封禁列表
func (s *MembershipService) ListBans(ctx context.Context, roomID, hostID string) ([]domain.RoomBan, error) {
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return nil, err
	}
	bans, err := s.moderationRepo.ListBans(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to list bans")
		return nil, ErrInternalServer
	}
	return bans, nil
}

// InviteUser 邀请用户加入 (锁定房间只接受受邀用户)
func (s *MembershipService) InviteUser(ctx context.Context, roomID, hostID, targetID string) (*domain.RoomInvitation, error) {
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return nil, err
	}
	if targetID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	banned, err := s.moderationRepo.IsBanned(ctx, roomID, targetID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to check ban")
		return nil, ErrInternalServer
	}
	if banned {
		return nil, ErrUserBanned
	}
	inv := &domain.RoomInvitation{
		RoomID:    roomID,
		UserID:    targetID,
		InvitedBy: hostID,
		Status:    domain.InvitationPending,
	}
	if err := s.moderationRepo.UpsertInvitation(ctx, inv); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "target_id": targetID}).WithError(err).Error("Failed to save invitation")
		return nil, ErrInternalServer
	}
	return inv, nil
}

// GetHistory 房主查看成员历史
func (s *MembershipService) GetHistory(ctx context.Context, roomID, hostID string) ([]domain.MemberHistory, error) {
	if _, err := s.requireHost(ctx, roomID, hostID); err != nil {
		return nil, err
	}
	history, err := s.memberRepo.ListHistory(ctx, roomID)
	if err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to list member history")
		return nil, ErrInternalServer
	}
	return history, nil
}

func (s *MembershipService) removeWithAction(ctx context.Context, roomID, userID string, action domain.MemberAction) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "action": action})

	member, err := s.memberRepo.Find(ctx, roomID, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to look up member")
		}
		return mapRepoError(err, ErrMemberNotFound)
	}
	if err := s.memberRepo.Delete(ctx, roomID, userID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to delete member")
		}
		return mapRepoError(err, ErrMemberNotFound)
	}

	now := time.Now().UTC()
	if err := s.memberRepo.RecordHistory(ctx, roomID, userID, member.DisplayName, action, now); err != nil {
		logCtx.WithError(err).Warn("Failed to record member history")
	}
	s.touchRoom(ctx, roomID, now)
	s.invalidateSnapshot(ctx, roomID)
	s.publishMemberLeft(ctx, roomID, userID)
	logCtx.Info("Member removed")
	return nil
}

func (s *MembershipService) loadRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load room")
		}
		return nil, mapRepoError(err, ErrRoomNotFound)
	}
	return room, nil
}

func (s *MembershipService) requireHost(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != userID {
		return nil, ErrNotRoomHost
	}
	return room, nil
}

func (s *MembershipService) touchRoom(ctx context.Context, roomID string, at time.Time) {
	if err := s.roomRepo.Touch(ctx, roomID, at); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to touch room")
	}
}

func (s *MembershipService) invalidateSnapshot(ctx context.Context, roomID string) {
	if err := s.stateRepo.DeleteRoomSnapshot(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to invalidate room snapshot")
	}
}

func (s *MembershipService) publishMemberLeft(ctx context.Context, roomID, userID string) {
	event := repository.SessionEvent{Type: repository.EventMemberLeft, RoomID: roomID, UserID: userID}
	if err := s.stateRepo.PublishSessionEvent(ctx, event); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to publish member_left")
	}
}
