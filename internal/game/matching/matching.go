// Package matching 实现翻牌配对游戏: setup -> playing -> results。
//
// 从 playing 回到 setup 时会保存进行中的对局快照；只有配置没有变化时才能恢复。
package matching

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
)

// Name 注册名
const Name = "matching"

// 动作类型
const (
	MoveSetConfig     = "SET_CONFIG"
	MoveStartGame     = "START_GAME"
	MoveFlipCard      = "FLIP_CARD"
	MoveClearMismatch = "CLEAR_MISMATCH"
	MoveGoToSetup     = "GO_TO_SETUP"
	MoveResumeGame    = "RESUME_GAME"
	MoveResetGame     = "RESET_GAME"
)

const (
	MinPairs     = 2
	MaxPairs     = 12
	DefaultPairs = 6
	MaxPlayers   = 4
)

var symbols = []string{"🍎", "🍌", "🍒", "🍇", "🍉", "🍋", "🍑", "🍍", "🥝", "🥥", "🍓", "🫐"}

// Config 游戏配置
type Config struct {
	Pairs int `json:"pairs"`
}

// Card 一张牌，Rank 相同的两张牌构成一对。
type Card struct {
	Rank      int    `json:"rank"`
	Symbol    string `json:"symbol"`
	Matched   bool   `json:"matched"`
	MatchedBy string `json:"matchedBy,omitempty"`
}

// Board 一局进行中的对局数据
type Board struct {
	Players       []string       `json:"players"`
	CurrentPlayer string         `json:"currentPlayer"`
	Cards         []Card         `json:"cards"`
	Flipped       []int          `json:"flippedCards"`
	MatchedPairs  int            `json:"matchedPairs"`
	TotalPairs    int            `json:"totalPairs"`
	Scores        map[string]int `json:"scores"`
	Moves         int            `json:"moves"`
	Mismatch      bool           `json:"showMismatch"`
}

// PausedGame 返回 setup 时保存的对局
type PausedGame struct {
	Config   Config    `json:"config"`
	Board    Board     `json:"board"`
	PausedAt time.Time `json:"pausedAt"`
}

// State 完整的游戏状态
type State struct {
	GamePhase string `json:"gamePhase"`
	Config    Config `json:"config"`
	Board
	Winners []string    `json:"winners,omitempty"`
	Paused  *PausedGame `json:"pausedGame,omitempty"`
}

// Rules 实现 game.Rules[State]
type Rules struct{}

// New 返回可以注册到 game.Registry 的 Validator
func New() game.Validator {
	return game.NewTyped[State](Rules{})
}

func (Rules) Manifest() game.Manifest {
	return game.Manifest{
		Name:        Name,
		DisplayName: "Memory Pairs",
		MinPlayers:  1,
		MaxPlayers:  MaxPlayers,
	}
}

func (Rules) Initial(raw json.RawMessage) (State, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return State{}, err
	}
	return setupState(cfg, nil), nil
}

func (Rules) Complete(s State) bool {
	return s.GamePhase == game.PhaseResults
}

func (Rules) Apply(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	switch move.Type {
	case MoveSetConfig:
		return setConfig(s, move, mctx)
	case MoveStartGame:
		return startGame(s, move, mctx)
	case MoveFlipCard:
		return flipCard(s, move, mctx)
	case MoveClearMismatch:
		return clearMismatch(s, move, mctx)
	case MoveGoToSetup:
		return goToSetup(s, move, mctx)
	case MoveResumeGame:
		return resumeGame(s, mctx)
	case MoveResetGame:
		return resetGame(s, mctx)
	default:
		return s, game.Reject("unknown move type %q", move.Type)
	}
}

// ParseConfig 解析配置，空配置使用默认值。
func ParseConfig(raw json.RawMessage) (Config, error) {
	cfg := Config{Pairs: DefaultPairs}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %v", game.ErrInvalidConfig, err)
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", game.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Pairs < MinPairs || c.Pairs > MaxPairs {
		return fmt.Errorf("pairs must be between %d and %d", MinPairs, MaxPairs)
	}
	return nil
}

func setupState(cfg Config, paused *PausedGame) State {
	return State{
		GamePhase: game.PhaseSetup,
		Config:    cfg,
		Board:     Board{Players: []string{}, Cards: []Card{}, Flipped: []int{}, Scores: map[string]int{}},
		Paused:    paused,
	}
}

// requireParticipant 对局中 (包括暂停的对局) 只有控制其中某个玩家的用户可以操作；
// 没有对局时调用者必须在房间里拥有玩家。
func (s State) requireParticipant(mctx *game.MoveContext) error {
	players := s.Players
	if len(players) == 0 && s.Paused != nil {
		players = s.Paused.Board.Players
	}
	if len(players) > 0 {
		if !mctx.Ownership.OwnsAny(mctx.CallerUserID, players) {
			return game.Reject("only players in the game can do this")
		}
		return nil
	}
	if !mctx.Ownership.HasPlayers(mctx.CallerUserID) {
		return game.Reject("you must control a player in this room")
	}
	return nil
}

func setConfig(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhaseSetup {
		return s, game.Reject("configuration can only be changed during setup")
	}
	if err := s.requireParticipant(mctx); err != nil {
		return s, err
	}
	cfg := s.Config
	if err := move.DecodeData(&cfg); err != nil {
		return s, game.Reject("invalid configuration")
	}
	if err := cfg.validate(); err != nil {
		return s, game.Reject("%s", err.Error())
	}
	prev := s.Config
	paused := s.Paused
	// 快照在配置已经偏离之后的下一次修改时丢弃，改回原配置则保留
	if paused != nil && prev != paused.Config && cfg != paused.Config {
		paused = nil
	}
	next := setupState(cfg, paused)
	return next, nil
}

func startGame(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhaseSetup {
		return s, game.Reject("the game can only be started from setup")
	}
	var data struct {
		Players []string `json:"players"`
		Seed    int64    `json:"seed"`
	}
	if err := move.DecodeData(&data); err != nil {
		return s, game.Reject("invalid start data")
	}
	if len(data.Players) == 0 {
		return s, game.Reject("at least one player is required")
	}
	if len(data.Players) > MaxPlayers {
		return s, game.Reject("at most %d players can play", MaxPlayers)
	}
	seen := make(map[string]bool, len(data.Players))
	for _, p := range data.Players {
		if seen[p] {
			return s, game.Reject("player %s is listed twice", p)
		}
		seen[p] = true
		if _, ok := mctx.Ownership.OwnerOf(p); !ok {
			return s, game.Reject("player %s is not in this room", p)
		}
	}
	if !mctx.Ownership.OwnsAny(mctx.CallerUserID, data.Players) {
		return s, game.Reject("you must control at least one player to start the game")
	}

	seed := data.Seed
	if seed == 0 {
		seed = move.Timestamp.UnixNano()
	}
	players := append([]string(nil), data.Players...)
	scores := make(map[string]int, len(players))
	for _, p := range players {
		scores[p] = 0
	}
	return State{
		GamePhase: game.PhasePlaying,
		Config:    s.Config,
		Board: Board{
			Players:       players,
			CurrentPlayer: players[0],
			Cards:         Deal(s.Config.Pairs, seed),
			Flipped:       []int{},
			TotalPairs:    s.Config.Pairs,
			Scores:        scores,
		},
	}, nil
}

// Deal 生成 pairs 对牌并用 seed 洗牌
func Deal(pairs int, seed int64) []Card {
	cards := make([]Card, 0, pairs*2)
	for rank := 0; rank < pairs; rank++ {
		sym := symbols[rank%len(symbols)]
		cards = append(cards, Card{Rank: rank, Symbol: sym}, Card{Rank: rank, Symbol: sym})
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards
}

// requireActor 玩家必须在对局中、归调用者所有，多人对局中还必须轮到该玩家。
func (s State) requireActor(move domain.Move, mctx *game.MoveContext) error {
	if move.PlayerID == "" {
		return game.Reject("playerId is required")
	}
	if !contains(s.Players, move.PlayerID) {
		return game.Reject("player %s is not in this game", move.PlayerID)
	}
	if !mctx.Ownership.IsOwnedBy(move.PlayerID, mctx.CallerUserID) {
		return game.Reject("you do not control player %s", move.PlayerID)
	}
	if len(s.Players) >= 2 && s.CurrentPlayer != move.PlayerID {
		return game.Reject("not your turn")
	}
	return nil
}

func flipCard(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhasePlaying {
		return s, game.Reject("cards can only be flipped while playing")
	}
	if err := s.requireActor(move, mctx); err != nil {
		return s, err
	}
	if s.Mismatch {
		return s, game.Reject("clear the mismatched cards first")
	}
	var data struct {
		CardIndex *int `json:"cardIndex"`
	}
	if err := move.DecodeData(&data); err != nil || data.CardIndex == nil {
		return s, game.Reject("cardIndex is required")
	}
	idx := *data.CardIndex
	if idx < 0 || idx >= len(s.Cards) {
		return s, game.Reject("card %d does not exist", idx)
	}
	if s.Cards[idx].Matched {
		return s, game.Reject("card already matched")
	}
	if containsInt(s.Flipped, idx) {
		return s, game.Reject("card already flipped")
	}

	next := s.clone()
	next.Flipped = append(next.Flipped, idx)
	if len(next.Flipped) < 2 {
		return next, nil
	}

	next.Moves++
	a, b := next.Flipped[0], next.Flipped[1]
	if next.Cards[a].Rank != next.Cards[b].Rank {
		next.Mismatch = true
		return next, nil
	}

	// 配对成功：同一玩家继续
	next.Cards[a].Matched, next.Cards[a].MatchedBy = true, move.PlayerID
	next.Cards[b].Matched, next.Cards[b].MatchedBy = true, move.PlayerID
	next.MatchedPairs++
	next.Scores[move.PlayerID]++
	next.Flipped = []int{}
	if next.MatchedPairs >= next.TotalPairs {
		next.GamePhase = game.PhaseResults
		next.Winners = winners(next.Board)
	}
	return next, nil
}

func clearMismatch(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhasePlaying {
		return s, game.Reject("nothing to clear outside of play")
	}
	if err := s.requireActor(move, mctx); err != nil {
		return s, err
	}
	if !s.Mismatch {
		return s, game.Reject("no mismatched cards to clear")
	}
	next := s.clone()
	next.Flipped = []int{}
	next.Mismatch = false
	next.CurrentPlayer = nextPlayer(next.Players, next.CurrentPlayer)
	return next, nil
}

func goToSetup(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase == game.PhaseSetup {
		return s, game.Reject("the game is already in setup")
	}
	if len(s.Players) > 0 && !mctx.Ownership.OwnsAny(mctx.CallerUserID, s.Players) {
		return s, game.Reject("only players in the game can return to setup")
	}
	if s.GamePhase == game.PhaseResults {
		return setupState(s.Config, nil), nil
	}
	paused := &PausedGame{
		Config:   s.Config,
		Board:    s.Board.clone(),
		PausedAt: move.Timestamp,
	}
	return setupState(s.Config, paused), nil
}

func resumeGame(s State, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhaseSetup {
		return s, game.Reject("only a game in setup can be resumed")
	}
	if s.Paused == nil {
		return s, game.Reject("there is no paused game to resume")
	}
	if err := s.requireParticipant(mctx); err != nil {
		return s, err
	}
	if s.Config != s.Paused.Config {
		return s, game.Reject("cannot resume: the configuration changed since the game was paused (pairs %d, paused with %d)",
			s.Config.Pairs, s.Paused.Config.Pairs)
	}
	return State{
		GamePhase: game.PhasePlaying,
		Config:    s.Paused.Config,
		Board:     s.Paused.Board.clone(),
	}, nil
}

// resetGame 回到 setup 并丢弃暂停的对局
func resetGame(s State, mctx *game.MoveContext) (State, error) {
	if err := s.requireParticipant(mctx); err != nil {
		return s, err
	}
	return setupState(s.Config, nil), nil
}

func (s State) clone() State {
	next := s
	next.Board = s.Board.clone()
	next.Winners = append([]string(nil), s.Winners...)
	if s.Paused != nil {
		p := *s.Paused
		p.Board = s.Paused.Board.clone()
		next.Paused = &p
	}
	return next
}

func (b Board) clone() Board {
	next := b
	next.Players = append([]string{}, b.Players...)
	next.Cards = append([]Card{}, b.Cards...)
	next.Flipped = append([]int{}, b.Flipped...)
	next.Scores = make(map[string]int, len(b.Scores))
	for k, v := range b.Scores {
		next.Scores[k] = v
	}
	return next
}

func winners(b Board) []string {
	best := -1
	var out []string
	for _, p := range b.Players {
		switch score := b.Scores[p]; {
		case score > best:
			best = score
			out = []string{p}
		case score == best:
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func nextPlayer(players []string, current string) string {
	for i, p := range players {
		if p == current {
			return players[(i+1)%len(players)]
		}
	}
	if len(players) > 0 {
		return players[0]
	}
	return ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
