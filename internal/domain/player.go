package domain

import "time"

// Player 是游戏内的"玩家"，由某个用户拥有。一个用户可以拥有多个玩家。
type Player struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"userId"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Emoji     string    `gorm:"size:16" json:"emoji,omitempty"`
	Color     string    `gorm:"size:16" json:"color,omitempty"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// MemberPlayers 房间成员及其玩家
type MemberPlayers struct {
	UserID      string   `json:"userId"`
	DisplayName string   `json:"displayName"`
	IsCreator   bool     `json:"isCreator"`
	IsOnline    bool     `json:"isOnline"`
	Players     []Player `json:"players"`
}

// RoomSnapshot 房间成员 -> 玩家的快照，缓存在 Redis 中，也会下发给客户端。
type RoomSnapshot struct {
	RoomID  string          `json:"roomId"`
	Members []MemberPlayers `json:"members"`
	TakenAt time.Time       `json:"takenAt"`
}

// MemberIDs 返回快照中的所有用户 ID
func (s *RoomSnapshot) MemberIDs() []string {
	ids := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
