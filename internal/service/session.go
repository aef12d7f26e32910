package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/repository"
)

// DefaultSessionTTL 会话的滚动过期时间
const DefaultSessionTTL = 30 * time.Minute

// MoveResult 提交动作的结果，原样返回给提交的客户端。
type MoveResult struct {
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	Session         *domain.GameSession `json:"session,omitempty"`
	VersionConflict bool                `json:"versionConflict,omitempty"`
}

// CreateSessionInput 创建会话的参数，GameName/Config 为空时使用房间的设置
type CreateSessionInput struct {
	RoomID        string
	UserID        string
	GameName      string
	Config        json.RawMessage
	ActivePlayers []string
}

// SessionService 管理每个房间唯一的、带版本号的游戏会话。
// 所有并发冲突都在存储层通过版本号条件更新解决，这里不持有任何锁，也不自动重试。
type SessionService struct {
	sessionRepo  repository.SessionRepository
	roomRepo     repository.RoomRepository
	memberRepo   repository.MemberRepository
	stateRepo    repository.StateRepository
	ownershipSvc *OwnershipService
	games        *game.Registry
	ttl          time.Duration
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(
	sessionRepo repository.SessionRepository,
	roomRepo repository.RoomRepository,
	memberRepo repository.MemberRepository,
	stateRepo repository.StateRepository,
	ownershipSvc *OwnershipService,
	games *game.Registry,
	ttl time.Duration,
) *SessionService {
	if sessionRepo == nil {
		panic("SessionRepository cannot be nil for SessionService")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for SessionService")
	}
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for SessionService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for SessionService")
	}
	if ownershipSvc == nil {
		panic("OwnershipService cannot be nil for SessionService")
	}
	if games == nil {
		panic("game registry cannot be nil for SessionService")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		sessionRepo:  sessionRepo,
		roomRepo:     roomRepo,
		memberRepo:   memberRepo,
		stateRepo:    stateRepo,
		ownershipSvc: ownershipSvc,
		games:        games,
		ttl:          ttl,
	}
}

// CreateSession 对同一个房间是幂等的：已有会话时原样返回。调用者必须是房间成员。
func (s *SessionService) CreateSession(ctx context.Context, in CreateSessionInput) (*domain.GameSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": in.RoomID, "user_id": in.UserID})

	room, err := s.roomRepo.FindByID(ctx, in.RoomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to load room for new session")
		}
		return nil, mapRepoError(err, ErrRoomNotFound)
	}
	if err := s.requireMember(ctx, in.RoomID, in.UserID); err != nil {
		return nil, err
	}

	existing, err := s.GetSession(ctx, in.RoomID)
	if err == nil {
		logCtx.Debug("Session already exists, returning it")
		return existing, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	gameName := in.GameName
	if gameName == "" {
		gameName = room.GameName
	}
	config := in.Config
	if len(config) == 0 {
		config = json.RawMessage(room.GameConfig)
	}
	v, err := s.games.Get(gameName)
	if err != nil {
		return nil, err
	}
	state, err := v.InitialState(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGameConfig, err)
	}

	players := in.ActivePlayers
	if players == nil {
		players = []string{}
	}
	now := time.Now().UTC()
	session := &domain.GameSession{
		RoomID:         in.RoomID,
		UserID:         in.UserID,
		GameName:       v.Manifest().Name,
		GameState:      datatypes.JSON(state),
		ActivePlayers:  datatypes.JSONSlice[string](players),
		Version:        domain.InitialSessionVersion,
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
		IsActive:       true,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发创建输掉了竞争：返回赢家的会话
			winner, findErr := s.sessionRepo.FindByRoomID(ctx, in.RoomID)
			if findErr != nil {
				logCtx.WithError(findErr).Error("Failed to re-fetch session after duplicate insert")
				return nil, mapRepoError(findErr, ErrSessionNotFound)
			}
			logCtx.Info("Lost session creation race, returning existing session")
			return winner, nil
		}
		logCtx.WithError(err).Error("Failed to create session")
		return nil, ErrInternalServer
	}

	s.touchRoom(ctx, in.RoomID, now)
	logCtx.WithField("game", session.GameName).Info("Session created")
	return session, nil
}

// GetSession 读取时顺带清理：过期或房间已不存在的会话会被删除并按不存在处理。
func (s *SessionService) GetSession(ctx context.Context, roomID string) (*domain.GameSession, error) {
	logCtx := logrus.WithField("room_id", roomID)

	session, err := s.sessionRepo.FindByRoomID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to load session")
		}
		return nil, mapRepoError(err, ErrSessionNotFound)
	}

	if session.IsExpired(time.Now().UTC()) {
		logCtx.Info("Session expired, removing")
		s.dropSession(ctx, roomID)
		return nil, ErrSessionNotFound
	}

	if _, err := s.roomRepo.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Info("Session room no longer exists, removing orphan")
			s.dropSession(ctx, roomID)
			return nil, ErrSessionNotFound
		}
		logCtx.WithError(err).Error("Failed to verify session room")
		return nil, ErrInternalServer
	}
	return session, nil
}

// GetSessionForMember 与 GetSession 相同，但调用者必须是房间成员
func (s *SessionService) GetSessionForMember(ctx context.Context, roomID, userID string) (*domain.GameSession, error) {
	if err := s.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.GetSession(ctx, roomID)
}

// GetSessionForUser 通过成员关系找到用户所在房间的会话
func (s *SessionService) GetSessionForUser(ctx context.Context, userID string) (*domain.GameSession, error) {
	members, err := s.memberRepo.ListByUser(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list user memberships")
		return nil, ErrInternalServer
	}
	for _, m := range members {
		session, err := s.GetSession(ctx, m.RoomID)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		return session, err
	}
	return nil, ErrSessionNotFound
}

// ApplyMove 校验并提交一个动作。
// 规则违例和版本冲突通过 MoveResult 返回；error 只用于不存在、权限和内部错误。
func (s *SessionService) ApplyMove(ctx context.Context, callerUserID, roomID string, move domain.Move) (*MoveResult, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": callerUserID, "move": move.Type})

	// 1-2. 会话必须存在且处于活跃状态，调用者必须是成员
	session, err := s.GetSession(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrNoActiveSession
	}
	if err := s.requireMember(ctx, roomID, callerUserID); err != nil {
		return nil, err
	}
	if move.BaseVersion != nil && *move.BaseVersion != session.Version {
		return &MoveResult{
			Error:           fmt.Sprintf("session is at version %d, move was based on %d", session.Version, *move.BaseVersion),
			Session:         session,
			VersionConflict: true,
		}, nil
	}

	// 3. 解析 Validator
	v, err := s.games.Get(session.GameName)
	if err != nil {
		logCtx.WithError(err).Error("Session references an unregistered game")
		return nil, err
	}

	// 4. 房间范围的归属表
	owners, err := s.ownershipSvc.BuildForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	move.UserID = callerUserID
	if move.Timestamp.IsZero() {
		move.Timestamp = time.Now().UTC()
	}

	// 5. 校验
	res, err := v.ValidateMove(json.RawMessage(session.GameState), move, &game.MoveContext{
		CallerUserID: callerUserID,
		Ownership:    owners,
	})
	if err != nil {
		logCtx.WithError(err).Error("Validator failed on stored state")
		return nil, ErrInternalServer
	}

	// 6. 规则违例：原样返回 Validator 的说明
	if !res.Valid {
		logCtx.WithField("reason", res.Error).Debug("Move rejected")
		return &MoveResult{Error: res.Error, Session: session}, nil
	}

	// 7. 条件提交
	now := time.Now().UTC()
	next := *session
	next.GameState = datatypes.JSON(res.NewState)
	next.LastActivityAt = now
	next.ExpiresAt = now.Add(s.ttl)
	if err := s.sessionRepo.UpdateIfVersion(ctx, &next, session.Version); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			logCtx.WithField("read_version", session.Version).Info("Version conflict on commit")
			return &MoveResult{
				Error:           ErrVersionConflict.Error(),
				VersionConflict: true,
			}, nil
		}
		logCtx.WithError(err).Error("Failed to commit move")
		return nil, ErrInternalServer
	}

	logCtx.WithField("version", next.Version).Debug("Move committed")
	s.afterCommit(ctx, v, &next, move)
	return &MoveResult{Success: true, Session: &next}, nil
}

// TouchSessionActivity 心跳：刷新 lastActivityAt 和 expiresAt，不改变版本。
// 已过期的会话不会被续期，而是立即删除并按不存在处理。
func (s *SessionService) TouchSessionActivity(ctx context.Context, roomID, callerUserID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": callerUserID})

	if err := s.requireMember(ctx, roomID, callerUserID); err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.sessionRepo.Touch(ctx, roomID, now, now.Add(s.ttl)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 读取时会删除已过期的会话
			if _, getErr := s.GetSession(ctx, roomID); getErr == nil {
				logCtx.Debug("Session was recreated concurrently")
			}
			return ErrSessionNotFound
		}
		logCtx.WithError(err).Error("Failed to touch session")
		return ErrInternalServer
	}
	s.touchRoom(ctx, roomID, now)
	return nil
}

// DeleteSession 删除会话，不存在时也视为成功
func (s *SessionService) DeleteSession(ctx context.Context, roomID string) error {
	if err := s.sessionRepo.Delete(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Error("Failed to delete session")
		return ErrInternalServer
	}
	s.publish(ctx, repository.SessionEvent{Type: repository.EventSessionDeleted, RoomID: roomID})
	return nil
}

// UpdateActivePlayers 只允许在 setup 阶段修改；阶段由游戏状态中的 gamePhase 决定。
func (s *SessionService) UpdateActivePlayers(ctx context.Context, roomID, callerUserID string, playerIDs []string) (*domain.GameSession, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": callerUserID})

	session, err := s.GetSession(ctx, roomID)
	if err != nil {
		return nil, err
	}
	phase, err := game.PhaseOf(json.RawMessage(session.GameState))
	if err != nil {
		logCtx.WithError(err).Error("Failed to read session phase")
		return nil, ErrInternalServer
	}
	if phase != game.PhaseSetup {
		return nil, ErrRosterFrozen
	}

	if err := s.requireMember(ctx, roomID, callerUserID); err != nil {
		return nil, err
	}
	owners, err := s.ownershipSvc.BuildForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(playerIDs))
	ids := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			continue
		}
		if _, ok := owners.OwnerOf(id); !ok {
			return nil, fmt.Errorf("%w: player %s is not in this room", ErrInvalidInput, id)
		}
		seen[id] = true
		ids = append(ids, id)
	}

	now := time.Now().UTC()
	if err := s.sessionRepo.UpdateActivePlayers(ctx, roomID, ids, now); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to update active players")
		}
		return nil, mapRepoError(err, ErrSessionNotFound)
	}
	session.ActivePlayers = datatypes.JSONSlice[string](ids)
	session.LastActivityAt = now
	s.publish(ctx, repository.SessionEvent{Type: repository.EventSessionUpdate, RoomID: roomID, Session: session, UserID: callerUserID})
	return session, nil
}

// CleanupExpiredSessions 删除所有已过期的会话
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessionRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		logrus.WithError(err).Error("Failed to delete expired sessions")
		return 0, ErrInternalServer
	}
	if n > 0 {
		logrus.WithField("deleted", n).Info("Expired sessions cleaned up")
	}
	return n, nil
}

// afterCommit 提交成功后的附带操作，失败只记录日志
func (s *SessionService) afterCommit(ctx context.Context, v game.Validator, session *domain.GameSession, move domain.Move) {
	s.syncRoomStatus(ctx, v, session)
	s.publish(ctx, repository.SessionEvent{
		Type:     repository.EventSessionUpdate,
		RoomID:   session.RoomID,
		Session:  session,
		UserID:   move.UserID,
		MoveType: move.Type,
	})
}

// syncRoomStatus 让房间状态跟随游戏阶段：setup -> lobby，playing -> playing，结束 -> finished
func (s *SessionService) syncRoomStatus(ctx context.Context, v game.Validator, session *domain.GameSession) {
	logCtx := logrus.WithField("room_id", session.RoomID)

	want := domain.RoomStatusLobby
	if v.IsGameComplete(json.RawMessage(session.GameState)) {
		want = domain.RoomStatusFinished
	} else if phase, err := game.PhaseOf(json.RawMessage(session.GameState)); err == nil && phase == game.PhasePlaying {
		want = domain.RoomStatusPlaying
	}

	room, err := s.roomRepo.FindByID(ctx, session.RoomID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to load room after commit")
		return
	}
	changes := repository.RoomChanges{LastActivity: session.LastActivityAt}
	if room.Status != want && room.Status.CanTransitionTo(want) {
		logCtx.WithFields(logrus.Fields{"from": room.Status, "to": want}).Info("Room status follows game phase")
		changes.Status = &want
	}
	if err := s.roomRepo.Update(ctx, session.RoomID, changes); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Info("Room deleted while committing a move")
			return
		}
		logCtx.WithError(err).Warn("Failed to update room after commit")
	}
}

func (s *SessionService) dropSession(ctx context.Context, roomID string) {
	if err := s.sessionRepo.Delete(ctx, roomID); err != nil {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to remove stale session")
	}
}

func (s *SessionService) touchRoom(ctx context.Context, roomID string, at time.Time) {
	if err := s.roomRepo.Touch(ctx, roomID, at); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to touch room")
	}
}

func (s *SessionService) publish(ctx context.Context, event repository.SessionEvent) {
	if err := s.stateRepo.PublishSessionEvent(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": event.RoomID, "event": event.Type}).WithError(err).Warn("Failed to publish session event")
	}
}

// requireMember 读取权威的成员记录
func (s *SessionService) requireMember(ctx context.Context, roomID, userID string) error {
	if _, err := s.memberRepo.Find(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotRoomMember
		}
		logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).WithError(err).Error("Failed to check membership")
		return ErrInternalServer
	}
	return nil
}
