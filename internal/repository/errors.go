package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrVersionConflict 条件更新没有影响任何行：版本已被其他写入者推进
	ErrVersionConflict = errors.New("repository: version conflict")
	// ErrStillActive 条件删除时记录已不满足过期条件
	ErrStillActive = errors.New("repository: record is still active")
)

// 特定资源的错误 (基于通用错误)
var (
	ErrUserNotFound    = ErrNotFound
	ErrRoomNotFound    = ErrNotFound
	ErrMemberNotFound  = ErrNotFound
	ErrPlayerNotFound  = ErrNotFound
	ErrSessionNotFound = ErrNotFound
)
