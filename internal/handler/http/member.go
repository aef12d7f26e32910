package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arcade-rooms/internal/service"
)

// MemberHandler 成员与管理操作
type MemberHandler struct {
	members *service.MembershipService
}

func NewMemberHandler(members *service.MembershipService) *MemberHandler {
	return &MemberHandler{members: members}
}

// JoinRoomRequest 加入房间请求
type JoinRoomRequest struct {
	DisplayName string `json:"displayName" binding:"max=64"`
}

// TargetUserRequest 针对某个用户的管理操作
type TargetUserRequest struct {
	UserID string `json:"userId" binding:"required"`
	Reason string `json:"reason" binding:"max=255"`
}

func (h *MemberHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req JoinRoomRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	res, err := h.members.AddRoomMember(c.Request.Context(), c.Param("roomId"), userID, displayNameOr(c, req.DisplayName), false)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, res)
}

func (h *MemberHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.members.RemoveMember(c.Request.Context(), c.Param("roomId"), userID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.members.GetRoomMembers(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"members": members})
}

func (h *MemberHandler) Kick(c *gin.Context) {
	h.moderate(c, func(hostID string, req TargetUserRequest) error {
		return h.members.KickMember(c.Request.Context(), c.Param("roomId"), hostID, req.UserID)
	})
}

func (h *MemberHandler) Ban(c *gin.Context) {
	h.moderate(c, func(hostID string, req TargetUserRequest) error {
		return h.members.BanMember(c.Request.Context(), c.Param("roomId"), hostID, req.UserID, req.Reason)
	})
}

func (h *MemberHandler) Unban(c *gin.Context) {
	h.moderate(c, func(hostID string, req TargetUserRequest) error {
		return h.members.UnbanMember(c.Request.Context(), c.Param("roomId"), hostID, req.UserID)
	})
}

func (h *MemberHandler) Invite(c *gin.Context) {
	hostID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TargetUserRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.members.InviteUser(c.Request.Context(), c.Param("roomId"), hostID, req.UserID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, inv)
}

func (h *MemberHandler) History(c *gin.Context) {
	hostID, ok := currentUserID(c)
	if !ok {
		return
	}
	history, err := h.members.GetHistory(c.Request.Context(), c.Param("roomId"), hostID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"history": history})
}

func (h *MemberHandler) Bans(c *gin.Context) {
	hostID, ok := currentUserID(c)
	if !ok {
		return
	}
	bans, err := h.members.ListBans(c.Request.Context(), c.Param("roomId"), hostID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"bans": bans})
}

// MyRooms 客户端用来检查是否有可恢复的房间
func (h *MemberHandler) MyRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rooms, err := h.members.GetUserRooms(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"roomIds": rooms})
}

func (h *MemberHandler) moderate(c *gin.Context, fn func(hostID string, req TargetUserRequest) error) {
	hostID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req TargetUserRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := fn(hostID, req); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
