// Package game 定义每个游戏规则模块都要实现的 Validator 接口，以及按名称解析 Validator 的 Registry。
//
// 会话状态在 Session 层是不透明的 JSON；只有被选中的 Validator 会把它解码成具体的状态类型。
package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/ownership"
)

// 游戏状态约定使用的阶段值
const (
	PhaseSetup   = "setup"
	PhasePlaying = "playing"
	PhaseResults = "results"
)

// MoveContext 校验动作时提供的授权数据。
// 接口本身不做授权判断，每个 Validator 自行检查 move.PlayerID 是否归调用者所有。
type MoveContext struct {
	CallerUserID string
	Ownership    ownership.Map
}

// Result 校验结果。Valid 为 false 时 Error 是面向用户的说明，原样返回给客户端。
type Result struct {
	Valid    bool            `json:"valid"`
	Error    string          `json:"error,omitempty"`
	NewState json.RawMessage `json:"newState,omitempty"`
}

// Manifest 游戏的静态描述，注册时校验。
type Manifest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	MinPlayers  int    `json:"minPlayers"`
	MaxPlayers  int    `json:"maxPlayers"`
	Cooperative bool   `json:"cooperative"`
}

// Validator 每个游戏规则模块实现的统一接口。
// 预期内的规则违例通过 Result 返回；只有真正异常的情况 (例如状态无法解码) 才返回 error。
type Validator interface {
	Manifest() Manifest
	ValidateMove(state json.RawMessage, move domain.Move, mctx *MoveContext) (Result, error)
	IsGameComplete(state json.RawMessage) bool
	InitialState(config json.RawMessage) (json.RawMessage, error)
}

// RuleError 规则违例，消息直接展示给用户。
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// Reject 构造一个规则违例
func Reject(format string, args ...interface{}) error {
	return &RuleError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidConfig 游戏配置不合法
var ErrInvalidConfig = errors.New("game: invalid config")

type phaseEnvelope struct {
	GamePhase string `json:"gamePhase"`
}

// PhaseOf 读取状态中约定的 gamePhase 字段，Session 层只依赖这一个字段。
func PhaseOf(state json.RawMessage) (string, error) {
	if len(state) == 0 {
		return "", errors.New("game: empty state")
	}
	var env phaseEnvelope
	if err := json.Unmarshal(state, &env); err != nil {
		return "", fmt.Errorf("game: decode phase: %w", err)
	}
	return env.GamePhase, nil
}
