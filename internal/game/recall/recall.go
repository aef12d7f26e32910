// Package recall 实现合作式的数字回忆测验。
//
// setup 阶段选择卡片数量和每张卡片的展示时长；playing 阶段先逐张展示 (display)，
// 再由队伍输入记住的数字 (input)；results 阶段给出答对数量和百分比。
package recall

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
)

// Name 注册名
const Name = "recall"

// 动作类型
const (
	MoveSetConfig    = "SET_CONFIG"
	MoveStartQuiz    = "START_QUIZ"
	MoveNextCard     = "NEXT_CARD"
	MoveSubmitAnswer = "SUBMIT_ANSWER"
	MoveFinishQuiz   = "FINISH_QUIZ"
	MoveResetQuiz    = "RESET_QUIZ"
)

// playing 阶段的子阶段
const (
	SubPhaseDisplay = "display"
	SubPhaseInput   = "input"
)

const (
	DefaultCardCount      = 15
	DefaultDisplaySeconds = 2.0
	MinDisplaySeconds     = 0.5
	MaxDisplaySeconds     = 10.0
	DisplayStep           = 0.5
	DefaultMaxNumber      = 100
	MaxNumberLimit        = 999
	// AllCards CardCount 为 0 表示使用整个数字池
	AllCards = 0
)

// AllowedCardCounts 可选的卡片数量
var AllowedCardCounts = []int{5, 10, 15, 25, AllCards}

// Config 测验配置
type Config struct {
	CardCount      int     `json:"cardCount"`
	DisplaySeconds float64 `json:"displaySeconds"`
	MaxNumber      int     `json:"maxNumber"`
}

// Guess 一次提交的数字
type Guess struct {
	Number   int    `json:"number"`
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

// Score 结果
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// State 完整的测验状态
type State struct {
	GamePhase   string  `json:"gamePhase"`
	SubPhase    string  `json:"subPhase,omitempty"`
	Config      Config  `json:"config"`
	Cards       []int   `json:"cards"`
	CurrentCard int     `json:"currentCard"`
	Guesses     []Guess `json:"guesses"`
	Score       *Score  `json:"score,omitempty"`
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
		DisplayName: "Number Recall",
		MinPlayers:  1,
		MaxPlayers:  8,
		Cooperative: true,
	}
}

func (Rules) Initial(raw json.RawMessage) (State, error) {
	cfg, err := ParseConfig(raw)
	if err != nil {
		return State{}, err
	}
	return setupState(cfg), nil
}

func (Rules) Complete(s State) bool {
	return s.GamePhase == game.PhaseResults
}

func (Rules) Apply(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	switch move.Type {
	case MoveSetConfig:
		return setConfig(s, move, mctx)
	case MoveStartQuiz:
		return startQuiz(s, move, mctx)
	case MoveNextCard:
		return nextCard(s, move, mctx)
	case MoveSubmitAnswer:
		return submitAnswer(s, move, mctx)
	case MoveFinishQuiz:
		return finishQuiz(s, move, mctx)
	case MoveResetQuiz:
		return resetQuiz(s, mctx)
	default:
		return s, game.Reject("unknown move type %q", move.Type)
	}
}

// ParseConfig 解析配置，空配置使用默认值。
func ParseConfig(raw json.RawMessage) (Config, error) {
	cfg := Config{CardCount: DefaultCardCount, DisplaySeconds: DefaultDisplaySeconds, MaxNumber: DefaultMaxNumber}
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
	allowed := false
	for _, n := range AllowedCardCounts {
		if c.CardCount == n {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("card count must be one of 5, 10, 15, 25 or 0 for all")
	}
	if c.DisplaySeconds < MinDisplaySeconds || c.DisplaySeconds > MaxDisplaySeconds {
		return fmt.Errorf("display time must be between %.1f and %.1f seconds", MinDisplaySeconds, MaxDisplaySeconds)
	}
	steps := c.DisplaySeconds / DisplayStep
	if math.Abs(steps-math.Round(steps)) > 1e-9 {
		return fmt.Errorf("display time must be a multiple of %.1f seconds", DisplayStep)
	}
	if c.MaxNumber < 1 || c.MaxNumber > MaxNumberLimit {
		return fmt.Errorf("number pool must be between 1 and %d", MaxNumberLimit)
	}
	if c.CardCount > c.MaxNumber {
		return fmt.Errorf("card count %d exceeds the number pool of %d", c.CardCount, c.MaxNumber)
	}
	return nil
}

// DeckSize 实际使用的卡片数
func (c Config) DeckSize() int {
	if c.CardCount == AllCards {
		return c.MaxNumber
	}
	return c.CardCount
}

func setupState(cfg Config) State {
	return State{
		GamePhase: game.PhaseSetup,
		Config:    cfg,
		Cards:     []int{},
		Guesses:   []Guess{},
	}
}

// requireActor 合作游戏允许以队伍名义行动 (调用者须在房间里拥有玩家)；指定具体玩家时必须归调用者所有。
func requireActor(move domain.Move, mctx *game.MoveContext) error {
	if move.PlayerID == "" {
		return game.Reject("playerId is required")
	}
	if move.IsTeamMove() {
		return requireTeamMember(mctx)
	}
	if !mctx.Ownership.IsOwnedBy(move.PlayerID, mctx.CallerUserID) {
		return game.Reject("you do not control player %s", move.PlayerID)
	}
	return nil
}

// requireTeamMember 队伍成员即在房间里拥有玩家的用户
func requireTeamMember(mctx *game.MoveContext) error {
	if !mctx.Ownership.HasPlayers(mctx.CallerUserID) {
		return game.Reject("you must control a player in this room")
	}
	return nil
}

func setConfig(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhaseSetup {
		return s, game.Reject("configuration can only be changed during setup")
	}
	if err := requireTeamMember(mctx); err != nil {
		return s, err
	}
	cfg := s.Config
	if err := move.DecodeData(&cfg); err != nil {
		return s, game.Reject("invalid configuration")
	}
	if err := cfg.validate(); err != nil {
		return s, game.Reject("%s", err.Error())
	}
	return setupState(cfg), nil
}

func resetQuiz(s State, mctx *game.MoveContext) (State, error) {
	if err := requireTeamMember(mctx); err != nil {
		return s, err
	}
	return setupState(s.Config), nil
}

func startQuiz(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhaseSetup {
		return s, game.Reject("the quiz can only be started from setup")
	}
	if err := requireActor(move, mctx); err != nil {
		return s, err
	}
	var data struct {
		Seed int64 `json:"seed"`
	}
	if err := move.DecodeData(&data); err != nil {
		return s, game.Reject("invalid start data")
	}
	seed := data.Seed
	if seed == 0 {
		seed = move.Timestamp.UnixNano()
	}
	return State{
		GamePhase: game.PhasePlaying,
		SubPhase:  SubPhaseDisplay,
		Config:    s.Config,
		Cards:     Deal(s.Config, seed),
		Guesses:   []Guess{},
	}, nil
}

// Deal 从 1..MaxNumber 中不重复地抽取 DeckSize 个数字
func Deal(cfg Config, seed int64) []int {
	pool := make([]int, cfg.MaxNumber)
	for i := range pool {
		pool[i] = i + 1
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:cfg.DeckSize()]
}

func nextCard(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhasePlaying || s.SubPhase != SubPhaseDisplay {
		return s, game.Reject("cards are no longer being shown")
	}
	if err := requireActor(move, mctx); err != nil {
		return s, err
	}
	next := s.clone()
	next.CurrentCard++
	if next.CurrentCard >= len(next.Cards) {
		next.CurrentCard = len(next.Cards)
		next.SubPhase = SubPhaseInput
	}
	return next, nil
}

func submitAnswer(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhasePlaying || s.SubPhase != SubPhaseInput {
		return s, game.Reject("answers can only be submitted after all cards were shown")
	}
	if err := requireActor(move, mctx); err != nil {
		return s, err
	}
	var data struct {
		Numbers []int  `json:"numbers"`
		Answer  string `json:"answer"`
	}
	if err := move.DecodeData(&data); err != nil {
		return s, game.Reject("invalid answer")
	}
	numbers := data.Numbers
	if data.Answer != "" {
		parsed, err := ParseAnswer(data.Answer)
		if err != nil {
			return s, err
		}
		numbers = append(numbers, parsed...)
	}
	if len(numbers) == 0 {
		return s, game.Reject("no numbers submitted")
	}

	guessed := make(map[int]bool, len(s.Guesses)+len(numbers))
	for _, g := range s.Guesses {
		guessed[g.Number] = true
	}
	shown := make(map[int]bool, len(s.Cards))
	for _, c := range s.Cards {
		shown[c] = true
	}

	next := s.clone()
	for _, n := range numbers {
		if guessed[n] {
			return s, game.Reject("number %d already guessed", n)
		}
		guessed[n] = true
		next.Guesses = append(next.Guesses, Guess{Number: n, PlayerID: move.PlayerID, Correct: shown[n]})
	}
	if score := scoreOf(next); score.Correct == score.Total {
		next.GamePhase = game.PhaseResults
		next.SubPhase = ""
		next.Score = &score
	}
	return next, nil
}

func finishQuiz(s State, move domain.Move, mctx *game.MoveContext) (State, error) {
	if s.GamePhase != game.PhasePlaying {
		return s, game.Reject("there is no quiz in progress")
	}
	if err := requireActor(move, mctx); err != nil {
		return s, err
	}
	next := s.clone()
	score := scoreOf(next)
	next.GamePhase = game.PhaseResults
	next.SubPhase = ""
	next.Score = &score
	return next, nil
}

// ParseAnswer 解析 "3, 7 12" 这样以逗号或空白分隔的数字列表
func ParseAnswer(answer string) ([]int, error) {
	fields := strings.FieldsFunc(answer, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, game.Reject("%q is not a number", f)
		}
		out = append(out, n)
	}
	return out, nil
}

func scoreOf(s State) Score {
	correct := 0
	for _, g := range s.Guesses {
		if g.Correct {
			correct++
		}
	}
	total := len(s.Cards)
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(correct) * 100 / float64(total)))
	}
	return Score{Correct: correct, Total: total, Percentage: pct}
}

func (s State) clone() State {
	next := s
	next.Cards = append([]int{}, s.Cards...)
	next.Guesses = append([]Guess{}, s.Guesses...)
	if s.Score != nil {
		sc := *s.Score
		next.Score = &sc
	}
	return next
}
