package game

import (
	"encoding/json"
	"errors"
	"fmt"

	"arcade-rooms/internal/domain"
)

// Rules 针对具体状态类型 S 编写的游戏规则。
// Apply 必须返回完整的新状态；规则违例用 Reject 构造的 *RuleError 表示。
type Rules[S any] interface {
	Manifest() Manifest
	Initial(config json.RawMessage) (S, error)
	Apply(state S, move domain.Move, mctx *MoveContext) (S, error)
	Complete(state S) bool
}

// Typed 将 Rules[S] 适配为操作原始 JSON 的 Validator。
type Typed[S any] struct {
	rules Rules[S]
}

// NewTyped 创建适配器
func NewTyped[S any](rules Rules[S]) *Typed[S] {
	if rules == nil {
		panic("rules cannot be nil for Typed validator")
	}
	return &Typed[S]{rules: rules}
}

func (t *Typed[S]) Manifest() Manifest { return t.rules.Manifest() }

// ValidateMove 解码状态 -> 执行规则 -> 编码新状态
func (t *Typed[S]) ValidateMove(state json.RawMessage, move domain.Move, mctx *MoveContext) (Result, error) {
	name := t.rules.Manifest().Name
	var s S
	if err := json.Unmarshal(state, &s); err != nil {
		return Result{}, fmt.Errorf("%s: decode state: %w", name, err)
	}
	if mctx == nil {
		mctx = &MoveContext{}
	}
	next, err := t.rules.Apply(s, move, mctx)
	if err != nil {
		var re *RuleError
		if errors.As(err, &re) {
			return Result{Valid: false, Error: re.Message}, nil
		}
		return Result{}, fmt.Errorf("%s: apply %s: %w", name, move.Type, err)
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return Result{}, fmt.Errorf("%s: encode state: %w", name, err)
	}
	return Result{Valid: true, NewState: raw}, nil
}

// IsGameComplete 状态无法解码时视为未完成
func (t *Typed[S]) IsGameComplete(state json.RawMessage) bool {
	var s S
	if err := json.Unmarshal(state, &s); err != nil {
		return false
	}
	return t.rules.Complete(s)
}

// InitialState 根据配置生成初始状态
func (t *Typed[S]) InitialState(config json.RawMessage) (json.RawMessage, error) {
	s, err := t.rules.Initial(config)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%s: encode initial state: %w", t.rules.Manifest().Name, err)
	}
	return raw, nil
}
