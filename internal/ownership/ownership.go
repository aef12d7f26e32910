// Package ownership 维护 playerId -> userId 的归属映射。
//
// 映射从不单独持久化，每次都从权威的成员/玩家记录重建。服务端 (读取数据库)
// 和客户端 (读取缓存的房间快照) 使用同一套构建与查询函数，保证两边的授权判断一致。
package ownership

import (
	"sort"

	"arcade-rooms/internal/domain"
)

// Map playerId -> userId
type Map map[string]string

// FromRoster 根据房间的 成员 -> 玩家 列表构建映射，不活跃的玩家被忽略。
func FromRoster(roster []domain.MemberPlayers) Map {
	m := make(Map)
	for _, member := range roster {
		for _, p := range member.Players {
			if !p.IsActive {
				continue
			}
			m[p.ID] = member.UserID
		}
	}
	return m
}

// FromSnapshot 从缓存的房间快照重建映射。
func FromSnapshot(snapshot *domain.RoomSnapshot) Map {
	if snapshot == nil {
		return Map{}
	}
	return FromRoster(snapshot.Members)
}

// FromDirectory 根据全局玩家目录构建映射。
// 传入 memberUserIDs 时只保留这些用户拥有的玩家 (房间范围)。
func FromDirectory(players []domain.Player, memberUserIDs ...string) Map {
	var allowed map[string]struct{}
	if len(memberUserIDs) > 0 {
		allowed = make(map[string]struct{}, len(memberUserIDs))
		for _, id := range memberUserIDs {
			allowed[id] = struct{}{}
		}
	}
	m := make(Map, len(players))
	for _, p := range players {
		if !p.IsActive {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[p.UserID]; !ok {
				continue
			}
		}
		m[p.ID] = p.UserID
	}
	return m
}

// IsOwnedBy 判断 playerID 是否属于 userID。
func (m Map) IsOwnedBy(playerID, userID string) bool {
	owner, ok := m[playerID]
	return ok && owner == userID
}

// OwnerOf 返回玩家的拥有者。
func (m Map) OwnerOf(playerID string) (string, bool) {
	owner, ok := m[playerID]
	return owner, ok
}

// OwnsAny 用户是否至少拥有其中一个玩家
func (m Map) OwnsAny(userID string, playerIDs []string) bool {
	for _, id := range playerIDs {
		if m.IsOwnedBy(id, userID) {
			return true
		}
	}
	return false
}

// HasPlayers 用户在映射中是否拥有任何玩家
func (m Map) HasPlayers(userID string) bool {
	for _, owner := range m {
		if owner == userID {
			return true
		}
	}
	return false
}

// FilterByOwner 按原顺序返回属于 userID 的玩家。
func (m Map) FilterByOwner(playerIDs []string, userID string) []string {
	out := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		if m.IsOwnedBy(id, userID) {
			out = append(out, id)
		}
	}
	return out
}

// GroupByOwner 将玩家按拥有者分组；未知玩家被跳过。
func (m Map) GroupByOwner(playerIDs []string) map[string][]string {
	groups := make(map[string][]string)
	for _, id := range playerIDs {
		owner, ok := m[id]
		if !ok {
			continue
		}
		groups[owner] = append(groups[owner], id)
	}
	return groups
}

// PlayerIDs 返回排序后的全部玩家 ID
func (m Map) PlayerIDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
