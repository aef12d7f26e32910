package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	httphandler "arcade-rooms/internal/handler/http"
	"arcade-rooms/internal/hub"
	"arcade-rooms/internal/middleware"
	"arcade-rooms/internal/service"
)

// MemberLister 连接前确认用户是房间成员
type MemberLister interface {
	GetRoomMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error)
}

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	members  MemberLister
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。allowedOrigin 为空或 "*" 时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, members MemberLister, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if members == nil {
		panic("MemberLister cannot be nil for WebSocketHandler")
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}
	return &WebSocketHandler{upgrader: upgrader, hub: h, members: members}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/rooms/{roomId}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	roomID := c.Param("roomId")
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	// 只有成员可以连接
	members, err := h.members.GetRoomMembers(c.Request.Context(), roomID)
	if err != nil {
		httphandler.HandleServiceError(c, err)
		return
	}
	isMember := false
	for _, m := range members {
		if m.UserID == userID {
			isMember = true
			break
		}
	}
	if !isMember {
		httphandler.HandleServiceError(c, service.ErrNotRoomMember)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写了 HTTP 错误响应
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID, userID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", RoomID: roomID, UserID: userID, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client connected")
}
