package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeRoomCleanup = "room:cleanup" // 清理过期房间和会话
)

// RoomCleanupPayload 清理任务的参数
type RoomCleanupPayload struct {
	// Trigger 触发来源，仅用于日志 ("scheduler" | "manual")
	Trigger string `json:"trigger"`
}

// NewRoomCleanupTask 创建一个清理任务
func NewRoomCleanupTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(RoomCleanupPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRoomCleanup, payload), nil
}
