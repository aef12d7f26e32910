package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/service"
)

// IdentityHandler 访客身份
type IdentityHandler struct {
	identity *service.IdentityService
}

func NewIdentityHandler(identity *service.IdentityService) *IdentityHandler {
	return &IdentityHandler{identity: identity}
}

// GuestRequest 访客登录请求
type GuestRequest struct {
	GuestID     string `json:"guestId" binding:"required,max=128"`
	DisplayName string `json:"displayName" binding:"max=64"`
}

// GuestResponse 返回内部用户和访问令牌
type GuestResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Guest 解析访客标识并签发令牌
func (h *IdentityHandler) Guest(c *gin.Context) {
	var req GuestRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.identity.ResolveGuest(c.Request.Context(), req.GuestID, req.DisplayName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	token, err := h.identity.IssueToken(user)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("user_id", user.ID).Debug("Handler.Guest: token issued")
	SuccessResponse(c, http.StatusOK, GuestResponse{Token: token, User: user})
}

// Me 当前用户
func (h *IdentityHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.identity.GetUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}
