package domain

import "time"

// MemberAction 成员历史记录中的最后动作
type MemberAction string

const (
	MemberActionJoined   MemberAction = "joined"
	MemberActionLeft     MemberAction = "left"
	MemberActionAutoLeft MemberAction = "auto_left"
	MemberActionKicked   MemberAction = "kicked"
	MemberActionBanned   MemberAction = "banned"
	MemberActionRoomGone MemberAction = "room_deleted"
)

// RoomMember 表示用户在某个房间中的当前成员关系。
// user_id 上的唯一索引保证一个用户同一时刻最多只属于一个房间。
type RoomMember struct {
	RoomID      string    `gorm:"primaryKey;size:36" json:"roomId"`
	UserID      string    `gorm:"primaryKey;size:36;uniqueIndex:idx_room_members_user" json:"userId"`
	DisplayName string    `gorm:"size:64;not null" json:"displayName"`
	IsCreator   bool      `gorm:"not null;default:false" json:"isCreator"`
	IsOnline    bool      `gorm:"not null;default:false" json:"isOnline"`
	JoinedAt    time.Time `gorm:"not null" json:"joinedAt"`
	LastSeen    time.Time `gorm:"not null" json:"lastSeen"`
}

// MemberHistory 成员历史记录，只追加/更新，永不删除。
type MemberHistory struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	RoomID        string       `gorm:"size:36;not null;uniqueIndex:idx_member_history_room_user" json:"roomId"`
	UserID        string       `gorm:"size:36;not null;uniqueIndex:idx_member_history_room_user;index" json:"userId"`
	DisplayName   string       `gorm:"size:64" json:"displayName"`
	FirstJoinedAt time.Time    `gorm:"not null" json:"firstJoinedAt"`
	LastSeenAt    time.Time    `gorm:"not null" json:"lastSeenAt"`
	LastAction    MemberAction `gorm:"size:16;not null" json:"lastAction"`
}

// RoomBan 房间封禁记录
type RoomBan struct {
	RoomID    string    `gorm:"primaryKey;size:36" json:"roomId"`
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	BannedBy  string    `gorm:"size:36;not null" json:"bannedBy"`
	Reason    string    `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// InvitationStatus 邀请状态
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// RoomInvitation 锁定房间的邀请记录
type RoomInvitation struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	RoomID    string           `gorm:"size:36;not null;uniqueIndex:idx_invitation_room_user" json:"roomId"`
	UserID    string           `gorm:"size:36;not null;uniqueIndex:idx_invitation_room_user" json:"userId"`
	InvitedBy string           `gorm:"size:36;not null" json:"invitedBy"`
	Status    InvitationStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// AutoLeaveResult 加入新房间时被自动移出的旧房间信息，调用方据此通知被离开的房间。
type AutoLeaveResult struct {
	LeftRooms []string `json:"leftRooms"`
	// PreviousRoomMembers 以房间 ID 为键，保存移除前该房间的成员列表
	PreviousRoomMembers map[string][]RoomMember `json:"previousRoomMembers"`
}

// Empty 没有离开任何房间
func (r *AutoLeaveResult) Empty() bool {
	return r == nil || len(r.LeftRooms) == 0
}
