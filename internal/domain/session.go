package domain

import (
	"time"

	"gorm.io/datatypes"
)

// InitialSessionVersion 新会话的版本号
const InitialSessionVersion int64 = 1

// GameSession 每个房间唯一的、带版本号的游戏状态记录。
// RoomID 就是主键：一个房间最多只有一个会话。
type GameSession struct {
	RoomID         string                      `gorm:"primaryKey;size:36" json:"roomId"`
	UserID         string                      `gorm:"size:36;index;not null" json:"userId"` // 创建会话的用户
	GameName       string                      `gorm:"size:64;not null" json:"gameName"`
	GameState      datatypes.JSON              `gorm:"not null" json:"gameState"` // 只有对应游戏的 Validator 能解释
	ActivePlayers  datatypes.JSONSlice[string] `json:"activePlayers"`
	Version        int64                       `gorm:"not null" json:"version"`
	StartedAt      time.Time                   `gorm:"not null" json:"startedAt"`
	LastActivityAt time.Time                   `gorm:"not null" json:"lastActivityAt"`
	ExpiresAt      time.Time                   `gorm:"index;not null" json:"expiresAt"`
	IsActive       bool                        `gorm:"not null" json:"isActive"`
}

// IsExpired expiresAt < now
func (s *GameSession) IsExpired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
