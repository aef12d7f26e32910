package matching_test

import (
	"encoding/json"
	"testing"
	"time"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/game/matching"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	aliceCtx = &game.MoveContext{CallerUserID: "alice", Ownership: map[string]string{"pa": "alice", "pb": "bob"}}
	bobCtx   = &game.MoveContext{CallerUserID: "bob", Ownership: map[string]string{"pa": "alice", "pb": "bob"}}
	// carol 是房间成员但没有玩家
	carolCtx = &game.MoveContext{CallerUserID: "carol", Ownership: map[string]string{"pa": "alice", "pb": "bob"}}
)

func encode(t *testing.T, s matching.State) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return raw
}

func decode(t *testing.T, raw json.RawMessage) matching.State {
	t.Helper()
	var s matching.State
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func move(typ, player string, data interface{}) domain.Move {
	m := domain.Move{Type: typ, PlayerID: player, Timestamp: time.Unix(1700000000, 0)}
	if data != nil {
		m.Data, _ = json.Marshal(data)
	}
	return m
}

// playingState 两人对局，牌面顺序固定: [0,1,0,1]
func playingState(pairs int) matching.State {
	cards := make([]matching.Card, 0, pairs*2)
	for r := 0; r < pairs; r++ {
		cards = append(cards, matching.Card{Rank: r, Symbol: "x"})
	}
	for r := 0; r < pairs; r++ {
		cards = append(cards, matching.Card{Rank: r, Symbol: "x"})
	}
	return matching.State{
		GamePhase: game.PhasePlaying,
		Config:    matching.Config{Pairs: pairs},
		Board: matching.Board{
			Players:       []string{"pa", "pb"},
			CurrentPlayer: "pa",
			Cards:         cards,
			Flipped:       []int{},
			TotalPairs:    pairs,
			Scores:        map[string]int{"pa": 0, "pb": 0},
		},
	}
}

func apply(t *testing.T, v game.Validator, state json.RawMessage, m domain.Move, mctx *game.MoveContext) game.Result {
	t.Helper()
	res, err := v.ValidateMove(state, m, mctx)
	require.NoError(t, err)
	return res
}

func TestInitialState_Defaults(t *testing.T) {
	v := matching.New()
	raw, err := v.InitialState(nil)
	require.NoError(t, err)

	s := decode(t, raw)
	assert.Equal(t, game.PhaseSetup, s.GamePhase)
	assert.Equal(t, matching.DefaultPairs, s.Config.Pairs)

	_, err = v.InitialState(json.RawMessage(`{"pairs":40}`))
	assert.ErrorIs(t, err, game.ErrInvalidConfig)
}

func TestStartGame(t *testing.T) {
	v := matching.New()
	setup, _ := v.InitialState(json.RawMessage(`{"pairs":3}`))

	res := apply(t, v, setup, move(matching.MoveStartGame, "", map[string]interface{}{"players": []string{"pa", "pz"}}), aliceCtx)
	assert.False(t, res.Valid)
	assert.Equal(t, "player pz is not in this room", res.Error)

	carol := &game.MoveContext{CallerUserID: "carol", Ownership: aliceCtx.Ownership}
	res = apply(t, v, setup, move(matching.MoveStartGame, "", map[string]interface{}{"players": []string{"pa", "pb"}}), carol)
	assert.False(t, res.Valid)

	res = apply(t, v, setup, move(matching.MoveStartGame, "", map[string]interface{}{"players": []string{"pa", "pb"}, "seed": 42}), aliceCtx)
	require.True(t, res.Valid, res.Error)
	s := decode(t, res.NewState)
	assert.Equal(t, game.PhasePlaying, s.GamePhase)
	assert.Equal(t, "pa", s.CurrentPlayer)
	assert.Len(t, s.Cards, 6)
	assert.Equal(t, 3, s.TotalPairs)
	assert.Equal(t, matching.Deal(3, 42), s.Cards, "同一个 seed 应得到相同的牌序")
}

func TestFlipCard_MatchAndFinish(t *testing.T) {
	v := matching.New()
	state := encode(t, playingState(2))

	// pa 翻开 0 和 2 (rank 0)
	res := apply(t, v, state, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	require.True(t, res.Valid, res.Error)
	res = apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 2}), aliceCtx)
	require.True(t, res.Valid, res.Error)

	s := decode(t, res.NewState)
	assert.Equal(t, 1, s.MatchedPairs)
	assert.Equal(t, 1, s.Scores["pa"])
	assert.Equal(t, "pa", s.CurrentPlayer, "配对成功后同一玩家继续")
	assert.Equal(t, game.PhasePlaying, s.GamePhase)
	assert.False(t, v.IsGameComplete(res.NewState))

	// 已配对的牌不能再翻
	rejected := apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	assert.False(t, rejected.Valid)
	assert.Equal(t, "card already matched", rejected.Error)

	// 最后一对
	res = apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 1}), aliceCtx)
	require.True(t, res.Valid)
	res = apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 3}), aliceCtx)
	require.True(t, res.Valid)

	s = decode(t, res.NewState)
	assert.Equal(t, 2, s.MatchedPairs)
	assert.Equal(t, game.PhaseResults, s.GamePhase)
	assert.Equal(t, []string{"pa"}, s.Winners)
	assert.True(t, v.IsGameComplete(res.NewState))
}

func TestFlipCard_NotYourTurn(t *testing.T) {
	v := matching.New()
	state := encode(t, playingState(2))

	res := apply(t, v, state, move(matching.MoveFlipCard, "pb", map[string]int{"cardIndex": 0}), bobCtx)

	assert.False(t, res.Valid)
	assert.Equal(t, "not your turn", res.Error)
	assert.Nil(t, res.NewState)
}

func TestFlipCard_MustControlPlayer(t *testing.T) {
	v := matching.New()
	state := encode(t, playingState(2))

	res := apply(t, v, state, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), bobCtx)

	assert.False(t, res.Valid)
	assert.Equal(t, "you do not control player pa", res.Error)
}

func TestMismatch_ClearPassesTurn(t *testing.T) {
	v := matching.New()
	state := encode(t, playingState(2))

	res := apply(t, v, state, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	res = apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 1}), aliceCtx)
	require.True(t, res.Valid)
	s := decode(t, res.NewState)
	assert.True(t, s.Mismatch)
	assert.Equal(t, 1, s.Moves)

	blocked := apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 2}), aliceCtx)
	assert.Equal(t, "clear the mismatched cards first", blocked.Error)

	res = apply(t, v, res.NewState, move(matching.MoveClearMismatch, "pa", nil), aliceCtx)
	require.True(t, res.Valid, res.Error)
	s = decode(t, res.NewState)
	assert.False(t, s.Mismatch)
	assert.Empty(t, s.Flipped)
	assert.Equal(t, "pb", s.CurrentPlayer)
}

func TestFlipCard_SameCardTwice(t *testing.T) {
	v := matching.New()
	res := apply(t, v, encode(t, playingState(2)), move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	res = apply(t, v, res.NewState, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	assert.Equal(t, "card already flipped", res.Error)

	res = apply(t, v, encode(t, playingState(2)), move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 9}), aliceCtx)
	assert.Equal(t, "card 9 does not exist", res.Error)
}

func TestPauseAndResume(t *testing.T) {
	v := matching.New()
	playing := playingState(2)
	playing.Cards[0].Matched = true
	playing.Cards[2].Matched = true
	playing.MatchedPairs = 1

	res := apply(t, v, encode(t, playing), move(matching.MoveGoToSetup, "pa", nil), aliceCtx)
	require.True(t, res.Valid, res.Error)
	paused := decode(t, res.NewState)
	assert.Equal(t, game.PhaseSetup, paused.GamePhase)
	require.NotNil(t, paused.Paused)
	assert.Equal(t, 1, paused.Paused.Board.MatchedPairs)

	resumed := apply(t, v, res.NewState, move(matching.MoveResumeGame, "pa", nil), aliceCtx)
	require.True(t, resumed.Valid, resumed.Error)
	s := decode(t, resumed.NewState)
	assert.Equal(t, game.PhasePlaying, s.GamePhase)
	assert.Equal(t, 1, s.MatchedPairs)
	assert.Nil(t, s.Paused)
}

func TestResume_FailsAfterConfigChange(t *testing.T) {
	v := matching.New()
	res := apply(t, v, encode(t, playingState(2)), move(matching.MoveGoToSetup, "pa", nil), aliceCtx)
	require.True(t, res.Valid)

	// 第一次修改：快照保留，但恢复失败
	changed := apply(t, v, res.NewState, move(matching.MoveSetConfig, "", map[string]int{"pairs": 4}), aliceCtx)
	require.True(t, changed.Valid, changed.Error)
	require.NotNil(t, decode(t, changed.NewState).Paused)

	failed := apply(t, v, changed.NewState, move(matching.MoveResumeGame, "", nil), aliceCtx)
	assert.False(t, failed.Valid)
	assert.Contains(t, failed.Error, "configuration changed")

	// 改回原配置可以恢复
	reverted := apply(t, v, changed.NewState, move(matching.MoveSetConfig, "", map[string]int{"pairs": 2}), aliceCtx)
	require.NotNil(t, decode(t, reverted.NewState).Paused)
	assert.True(t, apply(t, v, reverted.NewState, move(matching.MoveResumeGame, "", nil), aliceCtx).Valid)

	// 已偏离后的下一次修改丢弃快照
	discarded := apply(t, v, changed.NewState, move(matching.MoveSetConfig, "", map[string]int{"pairs": 5}), aliceCtx)
	require.True(t, discarded.Valid)
	assert.Nil(t, decode(t, discarded.NewState).Paused)
	noSnapshot := apply(t, v, discarded.NewState, move(matching.MoveResumeGame, "", nil), aliceCtx)
	assert.Equal(t, "there is no paused game to resume", noSnapshot.Error)
}

func TestSetConfig_OnlyInSetup(t *testing.T) {
	v := matching.New()
	res := apply(t, v, encode(t, playingState(2)), move(matching.MoveSetConfig, "", map[string]int{"pairs": 4}), aliceCtx)
	assert.Equal(t, "configuration can only be changed during setup", res.Error)

	setup, _ := v.InitialState(nil)
	res = apply(t, v, setup, move(matching.MoveSetConfig, "", map[string]int{"pairs": 1}), aliceCtx)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Error, "pairs must be between")
}

func TestValidateMove_DoesNotMutateInput(t *testing.T) {
	v := matching.New()
	state := encode(t, playingState(2))
	before := append(json.RawMessage(nil), state...)

	res := apply(t, v, state, move(matching.MoveFlipCard, "pa", map[string]int{"cardIndex": 0}), aliceCtx)
	require.True(t, res.Valid)

	assert.Equal(t, before, state)
	assert.NotEqual(t, string(state), string(res.NewState))
}

func TestUnknownMove(t *testing.T) {
	v := matching.New()
	res := apply(t, v, encode(t, playingState(2)), move("DANCE", "pa", nil), aliceCtx)
	assert.Equal(t, `unknown move type "DANCE"`, res.Error)
}

func TestControlMoves_RequirePlayerOwnership(t *testing.T) {
	v := matching.New()
	setup, err := v.InitialState(nil)
	require.NoError(t, err)
	paused := apply(t, v, encode(t, playingState(2)), move(matching.MoveGoToSetup, "pa", nil), aliceCtx)
	require.True(t, paused.Valid, paused.Error)

	testCases := []struct {
		name    string
		state   json.RawMessage
		move    domain.Move
		wantErr string
	}{
		{name: "对局中重置", state: encode(t, playingState(2)), move: move(matching.MoveResetGame, "", nil), wantErr: "only players in the game can do this"},
		{name: "结果阶段重置", state: encode(t, matching.State{GamePhase: game.PhaseResults, Board: matching.Board{Players: []string{"pa"}}}), move: move(matching.MoveResetGame, "", nil), wantErr: "only players in the game can do this"},
		{name: "恢复暂停的对局", state: paused.NewState, move: move(matching.MoveResumeGame, "", nil), wantErr: "only players in the game can do this"},
		{name: "有暂停对局时修改配置", state: paused.NewState, move: move(matching.MoveSetConfig, "", map[string]int{"pairs": 5}), wantErr: "only players in the game can do this"},
		{name: "setup 阶段修改配置", state: setup, move: move(matching.MoveSetConfig, "", map[string]int{"pairs": 5}), wantErr: "you must control a player in this room"},
		{name: "setup 阶段重置", state: setup, move: move(matching.MoveResetGame, "", nil), wantErr: "you must control a player in this room"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := apply(t, v, tc.state, tc.move, carolCtx)
			assert.False(t, res.Valid, "没有玩家的成员不能改变游戏")
			assert.Equal(t, tc.wantErr, res.Error)
		})
	}
}

func TestResetGame_ByParticipant(t *testing.T) {
	v := matching.New()
	paused := apply(t, v, encode(t, playingState(2)), move(matching.MoveGoToSetup, "pa", nil), aliceCtx)
	require.True(t, paused.Valid, paused.Error)

	res := apply(t, v, paused.NewState, move(matching.MoveResetGame, "", nil), bobCtx)

	require.True(t, res.Valid, res.Error)
	s := decode(t, res.NewState)
	assert.Equal(t, game.PhaseSetup, s.GamePhase)
	assert.Nil(t, s.Paused, "重置应丢弃暂停的对局")
}
