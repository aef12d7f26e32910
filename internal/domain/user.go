package domain

import "time"

// User 表示内部持久化的用户。外部的访客标识只以哈希形式保存，不作为外键。
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	GuestKeyHash string    `gorm:"type:varchar(64);uniqueIndex:idx_guest_key_hash;not null" json:"-"`
	DisplayName  string    `gorm:"size:64" json:"displayName"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
}
