package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	rooms   *service.RoomService
	members *service.MembershipService
	owners  *service.OwnershipService
	games   *game.Registry
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(rooms *service.RoomService, members *service.MembershipService, owners *service.OwnershipService, games *game.Registry) *RoomHandler {
	return &RoomHandler{rooms: rooms, members: members, owners: owners, games: games}
}

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Name        string          `json:"name" binding:"max=128"`
	GameName    string          `json:"gameName" binding:"required"`
	GameConfig  json.RawMessage `json:"gameConfig"`
	TTLMinutes  int             `json:"ttlMinutes" binding:"min=0,max=1440"`
	DisplayName string          `json:"displayName" binding:"max=64"`
}

// CreateRoomResponse 创建者自动加入房间，可能因此离开之前的房间
type CreateRoomResponse struct {
	Room      *domain.Room            `json:"room"`
	AutoLeave *domain.AutoLeaveResult `json:"autoLeaveResult,omitempty"`
}

// UpdateRoomRequest 所有字段可选
type UpdateRoomRequest struct {
	Name       *string            `json:"name"`
	GameName   *string            `json:"gameName"`
	GameConfig json.RawMessage    `json:"gameConfig"`
	IsLocked   *bool              `json:"isLocked"`
	Status     *domain.RoomStatus `json:"status"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "game": req.GameName})

	room, err := h.rooms.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		Name:       req.Name,
		CreatorID:  userID,
		GameName:   req.GameName,
		GameConfig: req.GameConfig,
		TTLMinutes: req.TTLMinutes,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	joined, err := h.members.AddRoomMember(c.Request.Context(), room.ID, userID, displayNameOr(c, req.DisplayName), true)
	if err != nil {
		logCtx.WithError(err).Error("Handler.CreateRoom: creator could not join the new room")
		HandleServiceError(c, err)
		return
	}

	logCtx.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code}).Info("Handler.CreateRoom: Room created successfully")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{Room: room, AutoLeave: joined.AutoLeave})
}

// ListRooms 可加入的公开房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	rooms, err := h.rooms.ListRooms(c.Request.Context(), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// ListGames 已注册的游戏
func (h *RoomHandler) ListGames(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"games": h.games.Manifests()})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoomByID(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

func (h *RoomHandler) GetRoomByCode(c *gin.Context) {
	room, err := h.rooms.GetRoomByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// UpdateRoom 仅房主
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req UpdateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.rooms.UpdateRoom(c.Request.Context(), c.Param("roomId"), userID, service.RoomUpdate{
		Name:       req.Name,
		GameName:   req.GameName,
		GameConfig: req.GameConfig,
		IsLocked:   req.IsLocked,
		Status:     req.Status,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// DeleteRoom 仅房主
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.rooms.DeleteRoom(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Snapshot 成员 -> 玩家 快照，客户端据此构建同样的归属表
func (h *RoomHandler) Snapshot(c *gin.Context) {
	roomID := c.Param("roomId")
	if _, err := h.rooms.GetRoomByID(c.Request.Context(), roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	snapshot, err := h.owners.RoomSnapshot(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, snapshot)
}
