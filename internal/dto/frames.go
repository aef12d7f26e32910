package dto

import "arcade-rooms/internal/domain"

// 客户端 -> 服务端 的帧类型
const (
	FrameMove      = "move"
	FrameHeartbeat = "heartbeat"
)

// 服务端 -> 客户端 的帧类型
const (
	FrameSessionState   = "session_state"
	FrameSessionUpdate  = "session_update"
	FrameSessionDeleted = "session_deleted"
	FrameMemberLeft     = "member_left"
	FrameMoveResult     = "move_result"
	FrameError          = "error"
)

// ClientFrame 表示从客户端 WebSocket 消息中接收的数据结构
type ClientFrame struct {
	Type string       `json:"type"`
	Move *domain.Move `json:"move,omitempty"`
}

// SessionFrame 会话状态变化，广播给房间内的连接
type SessionFrame struct {
	Type     string              `json:"type"`
	RoomID   string              `json:"roomId"`
	Session  *domain.GameSession `json:"session,omitempty"`
	UserID   string              `json:"userId,omitempty"`
	MoveType string              `json:"moveType,omitempty"`
}

// MoveResultFrame 只发给提交动作的连接
type MoveResultFrame struct {
	Type            string              `json:"type"`
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	Session         *domain.GameSession `json:"session,omitempty"`
	VersionConflict bool                `json:"versionConflict,omitempty"`
}

// ErrorDTO 表示发送给客户端的错误消息数据结构
type ErrorDTO struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
