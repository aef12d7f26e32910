package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/service"
)

// SessionHandler 游戏会话
type SessionHandler struct {
	sessions *service.SessionService
	rooms    *service.RoomService
}

func NewSessionHandler(sessions *service.SessionService, rooms *service.RoomService) *SessionHandler {
	return &SessionHandler{sessions: sessions, rooms: rooms}
}

// CreateSessionRequest 字段为空时使用房间的游戏设置
type CreateSessionRequest struct {
	GameName      string          `json:"gameName"`
	Config        json.RawMessage `json:"config"`
	ActivePlayers []string        `json:"activePlayers"`
}

// ActivePlayersRequest 替换活跃玩家列表
type ActivePlayersRequest struct {
	PlayerIDs []string `json:"playerIds" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.CreateSession(c.Request.Context(), service.CreateSessionInput{
		RoomID:        c.Param("roomId"),
		UserID:        userID,
		GameName:      req.GameName,
		Config:        req.Config,
		ActivePlayers: req.ActivePlayers,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, session)
}

// Get 仅房间成员
func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	session, err := h.sessions.GetSessionForMember(c.Request.Context(), c.Param("roomId"), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, session)
}

// Delete 仅房主
func (h *SessionHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("roomId")
	room, err := h.rooms.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if room.CreatorID != userID {
		HandleServiceError(c, service.ErrNotRoomHost)
		return
	}
	if err := h.sessions.DeleteSession(c.Request.Context(), roomID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ApplyMove 结果原样返回：成功 200，规则拒绝 422，版本冲突 409
func (h *SessionHandler) ApplyMove(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var move domain.Move
	if !bindJSON(c, &move) {
		return
	}
	if move.Type == "" {
		ErrorResponse(c, http.StatusBadRequest, "move type is required")
		return
	}
	res, err := h.sessions.ApplyMove(c.Request.Context(), userID, c.Param("roomId"), move)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	status := http.StatusOK
	switch {
	case res.VersionConflict:
		status = http.StatusConflict
	case !res.Success:
		status = http.StatusUnprocessableEntity
	}
	logrus.WithFields(logrus.Fields{"room_id": c.Param("roomId"), "move": move.Type, "status": status}).Debug("Handler.ApplyMove")
	SuccessResponse(c, status, res)
}

func (h *SessionHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.sessions.TouchSessionActivity(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) UpdateActivePlayers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req ActivePlayersRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.sessions.UpdateActivePlayers(c.Request.Context(), c.Param("roomId"), userID, req.PlayerIDs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, session)
}

// MySession 用户所在房间的会话 ("继续游戏")
func (h *SessionHandler) MySession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	session, err := h.sessions.GetSessionForUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, session)
}
