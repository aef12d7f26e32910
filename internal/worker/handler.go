package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/tasks"
)

// RoomCleaner 删除过期房间
type RoomCleaner interface {
	CleanupExpiredRooms(ctx context.Context) (int, error)
}

// SessionCleaner 删除过期会话
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// CleanupHandler 处理周期性的清理任务
type CleanupHandler struct {
	rooms    RoomCleaner
	sessions SessionCleaner
}

// NewCleanupHandler 创建 Handler 实例
func NewCleanupHandler(rooms RoomCleaner, sessions SessionCleaner) *CleanupHandler {
	if rooms == nil {
		panic("RoomCleaner cannot be nil for CleanupHandler")
	}
	if sessions == nil {
		panic("SessionCleaner cannot be nil for CleanupHandler")
	}
	return &CleanupHandler{rooms: rooms, sessions: sessions}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *CleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.RoomCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logCtx.WithError(err).Error("Failed to unmarshal task payload")
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	logCtx = logCtx.WithField("trigger", payload.Trigger)

	// 先删房间：房间删除会级联删除会话，剩下的才是房间仍在但会话已过期的
	rooms, roomErr := h.rooms.CleanupExpiredRooms(ctx)
	sessions, sessionErr := h.sessions.CleanupExpiredSessions(ctx)
	if roomErr != nil {
		logCtx.WithError(roomErr).Error("Expired room cleanup failed")
		return fmt.Errorf("cleanup rooms: %w", roomErr)
	}
	if sessionErr != nil {
		logCtx.WithError(sessionErr).Error("Expired session cleanup failed")
		return fmt.Errorf("cleanup sessions: %w", sessionErr)
	}

	logCtx.WithFields(logrus.Fields{"rooms_deleted": rooms, "sessions_deleted": sessions}).Info("Cleanup task completed")
	return nil
}
