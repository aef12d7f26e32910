package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/game"
	"arcade-rooms/internal/service"
)

// HandleServiceError 把服务层错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrVersionConflict),
		errors.Is(err, service.ErrMembershipConflict):
		ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotRoomHost),
		errors.Is(err, service.ErrNotRoomMember),
		errors.Is(err, service.ErrUserBanned),
		errors.Is(err, service.ErrRoomLocked),
		errors.Is(err, service.ErrPlayerNotOwned):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidGameConfig),
		errors.Is(err, service.ErrInvalidStatusTransition),
		errors.Is(err, service.ErrRosterFrozen),
		errors.Is(err, game.ErrUnknownGame):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCodeGenerationFailed):
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
