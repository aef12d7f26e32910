package domain

import (
	"time"

	"gorm.io/datatypes"
)

// RoomStatus 房间生命周期状态
type RoomStatus string

const (
	RoomStatusLobby    RoomStatus = "lobby"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

// DefaultRoomTTLMinutes 未指定 TTL 时使用的默认值
const DefaultRoomTTLMinutes = 60

// Room 表示一个可加入的多人游戏房间。
type Room struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`                  // 不透明 ID (uuid)
	Code         string         `gorm:"uniqueIndex;size:6;not null" json:"code"`       // 6 位加入码，全局唯一
	Name         string         `gorm:"size:128;not null" json:"name"`                 // 显示名称
	CreatorID    string         `gorm:"size:36;index;not null" json:"creatorId"`       // 创建者 (房主) 用户 ID
	GameName     string         `gorm:"size:64;not null" json:"gameName"`              // 选择的游戏
	GameConfig   datatypes.JSON `json:"gameConfig,omitempty"`                          // 游戏配置 (由对应 Validator 解释)
	IsLocked     bool           `gorm:"not null;default:false" json:"isLocked"`        // 锁定后仅受邀用户可加入
	Status       RoomStatus     `gorm:"size:16;not null;index" json:"status"`          // lobby | playing | finished
	TTLMinutes   int            `gorm:"not null" json:"ttlMinutes"`                    // 不活跃多少分钟后被清理
	LastActivity time.Time      `gorm:"index;not null" json:"lastActivity"`            // 每次房间内操作都会刷新
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

// ExpiresAt 返回 lastActivity + ttl。
func (r *Room) ExpiresAt() time.Time {
	ttl := r.TTLMinutes
	if ttl <= 0 {
		ttl = DefaultRoomTTLMinutes
	}
	return r.LastActivity.Add(time.Duration(ttl) * time.Minute)
}

// IsExpired 判断房间在 now 时刻是否已过期 (expiresAt < now)。
func (r *Room) IsExpired(now time.Time) bool {
	return r.ExpiresAt().Before(now)
}

// CanTransitionTo 房间状态机: lobby -> playing -> finished，playing/finished 可以回到 lobby。
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case RoomStatusLobby:
		return next == RoomStatusPlaying
	case RoomStatusPlaying:
		return next == RoomStatusFinished || next == RoomStatusLobby
	case RoomStatusFinished:
		return next == RoomStatusLobby
	}
	return false
}

// Valid 判断是否是已知状态
func (s RoomStatus) Valid() bool {
	return s == RoomStatusLobby || s == RoomStatusPlaying || s == RoomStatusFinished
}
