package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/repository"
)

const (
	// 去掉了 I、O、0、1 等容易混淆的字符，正好 32 个
	roomCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength      = 6
	maxRoomCodeAttempts = 10
)

// RoomService 负责房间管理相关的业务逻辑。
type RoomService struct {
	roomRepo          repository.RoomRepository
	stateRepo         repository.StateRepository
	games             *game.Registry
	defaultTTLMinutes int
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(roomRepo repository.RoomRepository, stateRepo repository.StateRepository, games *game.Registry, defaultTTLMinutes int) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomService")
	}
	if games == nil {
		panic("game registry cannot be nil for RoomService")
	}
	if defaultTTLMinutes <= 0 {
		defaultTTLMinutes = domain.DefaultRoomTTLMinutes
	}
	return &RoomService{
		roomRepo:          roomRepo,
		stateRepo:         stateRepo,
		games:             games,
		defaultTTLMinutes: defaultTTLMinutes,
	}
}

// CreateRoomInput 创建房间的参数
type CreateRoomInput struct {
	Name       string
	CreatorID  string
	GameName   string
	GameConfig json.RawMessage
	TTLMinutes int
}

// RoomUpdate 房间的可修改字段，nil 表示不修改
type RoomUpdate struct {
	Name       *string
	GameName   *string
	GameConfig json.RawMessage
	IsLocked   *bool
	Status     *domain.RoomStatus
}

// CreateRoom 创建一个新房间。
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": in.CreatorID, "game": in.GameName})

	if in.CreatorID == "" {
		return nil, fmt.Errorf("%w: creator is required", ErrInvalidInput)
	}
	manifest, err := s.checkGameConfig(in.GameName, in.GameConfig)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = manifest.DisplayName
	}
	ttl := in.TTLMinutes
	if ttl <= 0 {
		ttl = s.defaultTTLMinutes
	}

	now := time.Now().UTC()
	room := &domain.Room{
		ID:           uuid.NewString(),
		Name:         name,
		CreatorID:    in.CreatorID,
		GameName:     manifest.Name,
		GameConfig:   normalizeConfig(in.GameConfig),
		Status:       domain.RoomStatusLobby,
		TTLMinutes:   ttl,
		LastActivity: now,
	}

	// 生成加入码：先查重，插入时的唯一约束冲突同样消耗一次尝试
	for attempt := 1; attempt <= maxRoomCodeAttempts; attempt++ {
		code, err := generateRoomCode()
		if err != nil {
			logCtx.WithError(err).Error("Failed to read random bytes for room code")
			return nil, ErrInternalServer
		}
		exists, err := s.roomRepo.IsCodeExists(ctx, code)
		if err != nil {
			logCtx.WithError(err).Error("Failed to check room code existence")
			return nil, ErrInternalServer
		}
		if exists {
			logCtx.WithField("attempt", attempt).Debug("Room code collision, retrying")
			continue
		}

		room.Code = code
		err = s.roomRepo.Create(ctx, room)
		if err == nil {
			logCtx.WithFields(logrus.Fields{"room_id": room.ID, "code": code}).Info("Room created successfully")
			return room, nil
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithField("attempt", attempt).Warn("Room code taken during insert, retrying")
			continue
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("attempts", maxRoomCodeAttempts).Error("Exhausted room code attempts")
	return nil, ErrCodeGenerationFailed
}

// GetRoomByID 获取房间，不存在时返回 ErrRoomNotFound。
func (s *RoomService) GetRoomByID(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Error("Failed to load room")
		}
		return nil, mapRepoError(err, ErrRoomNotFound)
	}
	return room, nil
}

// GetRoomByCode 加入码不区分大小写
func (s *RoomService) GetRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != roomCodeLength {
		return nil, ErrRoomNotFound
	}
	room, err := s.roomRepo.FindByCode(ctx, normalized)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("code", normalized).WithError(err).Error("Failed to load room by code")
		}
		return nil, mapRepoError(err, ErrRoomNotFound)
	}
	return room, nil
}

// ListRooms 可浏览的公开房间
func (s *RoomService) ListRooms(ctx context.Context, limit int) ([]domain.Room, error) {
	rooms, err := s.roomRepo.ListOpen(ctx, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list open rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// TouchRoom 刷新房间的 lastActivity
func (s *RoomService) TouchRoom(ctx context.Context, roomID string) error {
	if err := s.roomRepo.Touch(ctx, roomID, time.Now().UTC()); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Error("Failed to touch room")
		}
		return mapRepoError(err, ErrRoomNotFound)
	}
	return nil
}

// UpdateRoom 只有房主可以修改房间
func (s *RoomService) UpdateRoom(ctx context.Context, roomID, callerID string, upd RoomUpdate) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "caller_id": callerID})

	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID != callerID {
		return nil, ErrNotRoomHost
	}

	changes := repository.RoomChanges{LastActivity: time.Now().UTC()}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: room name cannot be empty", ErrInvalidInput)
		}
		room.Name = name
		changes.Name = &room.Name
	}
	if upd.GameName != nil || upd.GameConfig != nil {
		gameName := room.GameName
		if upd.GameName != nil {
			gameName = *upd.GameName
		}
		config := json.RawMessage(room.GameConfig)
		if upd.GameConfig != nil {
			config = upd.GameConfig
		}
		manifest, err := s.checkGameConfig(gameName, config)
		if err != nil {
			return nil, err
		}
		room.GameName = manifest.Name
		room.GameConfig = normalizeConfig(config)
		changes.GameName = &room.GameName
		changes.GameConfig = room.GameConfig
	}
	if upd.IsLocked != nil {
		room.IsLocked = *upd.IsLocked
		changes.IsLocked = &room.IsLocked
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
		}
		if !room.Status.CanTransitionTo(*upd.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, room.Status, *upd.Status)
		}
		room.Status = *upd.Status
		changes.Status = &room.Status
	}
	room.LastActivity = changes.LastActivity

	// 只写改动的列；房间已被删除时按不存在处理
	if err := s.roomRepo.Update(ctx, roomID, changes); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logCtx.WithError(err).Error("Failed to update room")
		}
		return nil, mapRepoError(err, ErrRoomNotFound)
	}
	logCtx.Info("Room updated")
	return room, nil
}

// DeleteRoom 房主删除房间，成员和会话一起删除
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, callerID string) error {
	room, err := s.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != callerID {
		return ErrNotRoomHost
	}
	return s.deleteRoom(ctx, roomID)
}

func (s *RoomService) deleteRoom(ctx context.Context, roomID string) error {
	if err := s.roomRepo.Delete(ctx, roomID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logrus.WithField("room_id", roomID).WithError(err).Error("Failed to delete room")
		}
		return mapRepoError(err, ErrRoomNotFound)
	}
	s.afterDelete(ctx, roomID)
	return nil
}

// afterDelete 缓存和通知都是尽力而为
func (s *RoomService) afterDelete(ctx context.Context, roomID string) {
	logCtx := logrus.WithField("room_id", roomID)
	if err := s.stateRepo.DeleteRoomSnapshot(ctx, roomID); err != nil {
		logCtx.WithError(err).Warn("Failed to drop room snapshot cache")
	}
	event := repository.SessionEvent{Type: repository.EventSessionDeleted, RoomID: roomID}
	if err := s.stateRepo.PublishSessionEvent(ctx, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish room deletion")
	}
	logCtx.Info("Room deleted")
}

// CleanupExpiredRooms 删除所有 lastActivity + ttl < now 的房间，返回删除数量。
// 过期时间由存储的时间戳计算，漏掉的一次运行会在下一次补上。
func (s *RoomService) CleanupExpiredRooms(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.roomRepo.FindExpired(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("Failed to scan expired rooms")
		return 0, ErrInternalServer
	}

	deleted := 0
	for _, room := range expired {
		logCtx := logrus.WithField("room_id", room.ID)
		// 扫描之后房间可能又有了活动，删除时会重新判断
		err := s.roomRepo.DeleteIfExpired(ctx, room.ID, now)
		switch {
		case err == nil:
			s.afterDelete(ctx, room.ID)
			deleted++
		case errors.Is(err, repository.ErrStillActive):
			logCtx.Debug("Room became active again, skipping")
		case errors.Is(err, repository.ErrNotFound):
			// 已被并发删除
		default:
			logCtx.WithError(err).Error("Failed to delete expired room")
		}
	}
	if deleted > 0 {
		logrus.WithFields(logrus.Fields{"deleted": deleted, "scanned": len(expired)}).Info("Expired rooms cleaned up")
	}
	return deleted, nil
}

// checkGameConfig 游戏必须已注册，配置必须能生成初始状态
func (s *RoomService) checkGameConfig(gameName string, config json.RawMessage) (game.Manifest, error) {
	if strings.TrimSpace(gameName) == "" {
		return game.Manifest{}, fmt.Errorf("%w: game name is required", ErrInvalidInput)
	}
	v, err := s.games.Get(gameName)
	if err != nil {
		return game.Manifest{}, err
	}
	if _, err := v.InitialState(config); err != nil {
		return game.Manifest{}, fmt.Errorf("%w: %v", ErrInvalidGameConfig, err)
	}
	return v.Manifest(), nil
}

func normalizeConfig(config json.RawMessage) datatypes.JSON {
	if len(config) == 0 {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(config)
}

// generateRoomCode 字母表长度为 32，按字节取低 5 位没有偏差
func generateRoomCode() (string, error) {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf), nil
}
