package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TeamPlayerID 代表"整个队伍"而不是某个具体玩家发起的动作 (合作类游戏)。
const TeamPlayerID = "TEAM"

// Move 客户端提交的一次状态变更请求，不单独持久化。
type Move struct {
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId"`
	UserID    string          `json:"userId"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	// BaseVersion 客户端读到的会话版本，可选。与当前版本不一致时直接按版本冲突处理。
	BaseVersion *int64 `json:"baseVersion,omitempty"`
}

// IsTeamMove 是否是以队伍名义提交的动作
func (m *Move) IsTeamMove() bool {
	return m.PlayerID == TeamPlayerID
}

// DecodeData 将 Data 解析到 v，Data 为空时保持 v 不变。
func (m *Move) DecodeData(v interface{}) error {
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s move data: %w", m.Type, err)
	}
	return nil
}
