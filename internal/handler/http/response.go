package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/middleware"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentUserID 读取 Auth 中间件写入的用户 ID，缺失时直接写 401
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserIDKey)
	if userID == "" {
		logrus.WithField("path", c.FullPath()).Warn("User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}

// displayNameOr 请求里没有显示名时使用 token 中的名字
func displayNameOr(c *gin.Context, requested string) string {
	if requested != "" {
		return requested
	}
	return c.GetString(middleware.ContextDisplayNameKey)
}

// bindJSON 绑定失败时写 400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
