package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/game/catalog"
	"arcade-rooms/internal/game/matching"
	"arcade-rooms/internal/repository"
	"arcade-rooms/internal/repository/mocks"
	"arcade-rooms/internal/service"
)

func moveOf(typ, playerID string, data interface{}) domain.Move {
	m := domain.Move{Type: typ, PlayerID: playerID}
	if data != nil {
		m.Data, _ = json.Marshal(data)
	}
	return m
}

// matchingRoom 两个用户各有一个玩家的配对游戏房间，会话已创建
func matchingRoom(t *testing.T, env *testEnv) (room *domain.Room, pa, pb *domain.Player) {
	t.Helper()
	room = env.hostRoom(t, "alice", matching.Name, `{"pairs":2}`)
	env.join(t, room.ID, "bob")
	pa = env.player(t, "alice", "Ann")
	pb = env.player(t, "bob", "Ben")
	_, err := env.sessions.CreateSession(context.Background(), service.CreateSessionInput{RoomID: room.ID, UserID: "alice"})
	require.NoError(t, err)
	return room, pa, pb
}

func mustApply(t *testing.T, env *testEnv, userID, roomID string, m domain.Move) *service.MoveResult {
	t.Helper()
	res, err := env.sessions.ApplyMove(context.Background(), userID, roomID, m)
	require.NoError(t, err)
	return res
}

func TestSession_CreateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.hostRoom(t, "alice", "recall", "")
	env.join(t, room.ID, "bob")

	// 两个成员用不同的初始配置几乎同时开始游戏
	first, err := env.sessions.CreateSession(ctx, service.CreateSessionInput{RoomID: room.ID, UserID: "alice", Config: json.RawMessage(`{"cardCount":5}`)})
	require.NoError(t, err)
	second, err := env.sessions.CreateSession(ctx, service.CreateSessionInput{RoomID: room.ID, UserID: "bob", Config: json.RawMessage(`{"cardCount":25}`)})
	require.NoError(t, err)

	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, "alice", second.UserID, "第二次调用应返回第一次创建的会话")
	assert.JSONEq(t, string(first.GameState), string(second.GameState))
	assert.Equal(t, domain.InitialSessionVersion, second.Version)
	assert.True(t, second.IsActive)
}

func TestSession_CreateRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	room := env.hostRoom(t, "alice", "recall", "")

	_, err := env.sessions.CreateSession(context.Background(), service.CreateSessionInput{RoomID: room.ID, UserID: "mallory"})
	assert.ErrorIs(t, err, service.ErrNotRoomMember)

	_, err = env.sessions.CreateSession(context.Background(), service.CreateSessionInput{RoomID: "missing", UserID: "alice"})
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	// 会话已存在时，幂等返回也只对成员开放
	_, err = env.sessions.CreateSession(context.Background(), service.CreateSessionInput{RoomID: room.ID, UserID: "alice"})
	require.NoError(t, err)
	existing, err := env.sessions.CreateSession(context.Background(), service.CreateSessionInput{RoomID: room.ID, UserID: "mallory"})
	assert.ErrorIs(t, err, service.ErrNotRoomMember)
	assert.Nil(t, existing)

	_, err = env.sessions.GetSessionForMember(context.Background(), room.ID, "mallory")
	assert.ErrorIs(t, err, service.ErrNotRoomMember)
}

func TestSession_MatchingGameToResults(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	ctx := context.Background()
	room, pa, pb := matchingRoom(t, env)

	res := mustApply(t, env, "alice", room.ID, moveOf(matching.MoveStartGame, "", map[string]interface{}{
		"players": []string{pa.ID, pb.ID}, "seed": 7,
	}))
	require.True(t, res.Success, res.Error)
	versions := []int64{res.Session.Version}

	roomNow, err := env.rooms.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusPlaying, roomNow.Status, "开始游戏后房间应进入 playing")

	// 按牌面找出两组配对
	positions := map[int][]int{}
	for i, c := range matching.Deal(2, 7) {
		positions[c.Rank] = append(positions[c.Rank], i)
	}

	// Act: alice 依次翻开两组配对
	var last *service.MoveResult
	for rank := 0; rank < 2; rank++ {
		for _, idx := range positions[rank] {
			last = mustApply(t, env, "alice", room.ID, moveOf(matching.MoveFlipCard, pa.ID, map[string]int{"cardIndex": idx}))
			require.True(t, last.Success, last.Error)
			versions = append(versions, last.Session.Version)
		}
	}

	// Assert
	var state matching.State
	require.NoError(t, json.Unmarshal(last.Session.GameState, &state))
	assert.Equal(t, 2, state.MatchedPairs)
	assert.Equal(t, game.PhaseResults, state.GamePhase)
	for i := 1; i < len(versions); i++ {
		assert.Equal(t, versions[i-1]+1, versions[i], "每次成功提交版本号加一")
	}
	assert.Equal(t, int64(2), versions[0])

	roomNow, err = env.rooms.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusFinished, roomNow.Status, "游戏结束后房间应进入 finished")
}

func TestSession_NotYourTurnLeavesVersionUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, pa, pb := matchingRoom(t, env)

	res := mustApply(t, env, "alice", room.ID, moveOf(matching.MoveStartGame, "", map[string]interface{}{
		"players": []string{pa.ID, pb.ID}, "seed": 1,
	}))
	require.True(t, res.Success, res.Error)
	before := res.Session.Version

	// 当前轮到 pa，bob 用 pb 翻牌
	res = mustApply(t, env, "bob", room.ID, moveOf(matching.MoveFlipCard, pb.ID, map[string]int{"cardIndex": 0}))
	assert.False(t, res.Success)
	assert.False(t, res.VersionConflict)
	assert.Equal(t, "not your turn", res.Error, "规则错误应原样返回")

	// bob 试图替 alice 的玩家操作
	res = mustApply(t, env, "bob", room.ID, moveOf(matching.MoveFlipCard, pa.ID, map[string]int{"cardIndex": 0}))
	assert.False(t, res.Success)

	stored, err := env.sessions.GetSession(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored.Version, "被拒绝的动作不改变版本")
}

func TestSession_ApplyMoveRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	room, _, _ := matchingRoom(t, env)

	_, err := env.sessions.ApplyMove(context.Background(), "mallory", room.ID, moveOf(matching.MoveResetGame, "", nil))
	assert.ErrorIs(t, err, service.ErrNotRoomMember)

	_, err = env.sessions.ApplyMove(context.Background(), "alice", "no-such-room", moveOf(matching.MoveResetGame, "", nil))
	assert.ErrorIs(t, err, service.ErrNoActiveSession)
}

func TestSession_StaleBaseVersionIsConflict(t *testing.T) {
	env := newTestEnv(t)
	room, _, _ := matchingRoom(t, env)

	stale := int64(0)
	m := moveOf(matching.MoveSetConfig, "", map[string]int{"pairs": 3})
	m.BaseVersion = &stale
	res := mustApply(t, env, "alice", room.ID, m)

	assert.False(t, res.Success)
	assert.True(t, res.VersionConflict)
	require.NotNil(t, res.Session)
	assert.Equal(t, domain.InitialSessionVersion, res.Session.Version)
}

func TestSession_OrphanIsReconciledOnRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _, _ := matchingRoom(t, env)

	// 房间被独立删除 (不经过级联)
	require.NoError(t, env.db.Where("id = ?", room.ID).Delete(&domain.Room{}).Error)

	_, err := env.sessions.GetSession(ctx, room.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = env.sessionRepo.FindByRoomID(ctx, room.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound, "孤立的会话应被删除")
}

func TestSession_ExpiredIsReconciledOnRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _, _ := matchingRoom(t, env)

	require.NoError(t, env.db.Model(&domain.GameSession{}).Where("room_id = ?", room.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	_, err := env.sessions.GetSessionForUser(ctx, "bob")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = env.sessionRepo.FindByRoomID(ctx, room.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSession_HeartbeatExtendsExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, _, _ := matchingRoom(t, env)

	before, err := env.sessions.GetSession(ctx, room.ID)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, env.sessions.TouchSessionActivity(ctx, room.ID, "bob"))

	after, err := env.sessions.GetSession(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, after.ExpiresAt.After(before.ExpiresAt))
	assert.Equal(t, before.Version, after.Version, "心跳不改变版本")

	assert.ErrorIs(t, env.sessions.TouchSessionActivity(ctx, room.ID, "mallory"), service.ErrNotRoomMember, "非成员不能续期会话")

	require.NoError(t, env.sessions.DeleteSession(ctx, room.ID))
	assert.ErrorIs(t, env.sessions.TouchSessionActivity(ctx, room.ID, "alice"), service.ErrSessionNotFound)
}

func TestSession_HeartbeatDoesNotReviveExpired(t *testing.T) {
	// Arrange: 会话一小时前已过期，但还没有被读取或清理
	env := newTestEnv(t)
	ctx := context.Background()
	room, _, _ := matchingRoom(t, env)
	require.NoError(t, env.db.Model(&domain.GameSession{}).Where("room_id = ?", room.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	// Act
	err := env.sessions.TouchSessionActivity(ctx, room.ID, "alice")

	// Assert
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = env.sessions.GetSession(ctx, room.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound, "过期是终态，心跳不能让会话复活")
	_, err = env.sessionRepo.FindByRoomID(ctx, room.ID)
	assert.ErrorIs(t, err, repository.ErrSessionNotFound, "过期的会话应被删除")
}

func TestSession_MemberWithoutPlayerCannotResetGame(t *testing.T) {
	// Arrange: alice 和 bob 开始两人对局，carol 随后加入但没有玩家
	env := newTestEnv(t)
	ctx := context.Background()
	room, pa, pb := matchingRoom(t, env)
	res := mustApply(t, env, "alice", room.ID, moveOf(matching.MoveStartGame, "", map[string]interface{}{
		"players": []string{pa.ID, pb.ID}, "seed": 3,
	}))
	require.True(t, res.Success, res.Error)
	started := res.Session.Version
	env.join(t, room.ID, "carol")

	// Act
	reset := mustApply(t, env, "carol", room.ID, moveOf(matching.MoveResetGame, "", nil))
	config := mustApply(t, env, "carol", room.ID, moveOf(matching.MoveSetConfig, "", map[string]int{"pairs": 3}))

	// Assert
	assert.False(t, reset.Success)
	assert.False(t, reset.VersionConflict)
	assert.False(t, config.Success)

	stored, err := env.sessions.GetSession(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, started, stored.Version, "被拒绝的重置不改变会话")
	phase, err := game.PhaseOf(json.RawMessage(stored.GameState))
	require.NoError(t, err)
	assert.Equal(t, game.PhasePlaying, phase)
	roomNow, err := env.rooms.GetRoomByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomStatusPlaying, roomNow.Status)

	// 对局中的玩家可以重置
	byBob := mustApply(t, env, "bob", room.ID, moveOf(matching.MoveResetGame, "", nil))
	assert.True(t, byBob.Success, byBob.Error)
}

func TestSession_CommitAfterRoomDeletedDoesNotRecreateRoom(t *testing.T) {
	sessionRepo := new(mocks.SessionRepository)
	roomRepo := new(mocks.RoomRepository)
	memberRepo := new(mocks.MemberRepository)
	playerRepo := new(mocks.PlayerRepository)
	stateRepo := new(mocks.StateRepository)
	owners := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, 0)
	svc := service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, owners, catalog.NewRegistry(), 0)
	ctx := context.Background()

	initial, err := matching.New().InitialState(nil)
	require.NoError(t, err)
	sessionRepo.On("FindByRoomID", ctx, "r1").Return(&domain.GameSession{
		RoomID: "r1", GameName: matching.Name, GameState: datatypes.JSON(initial),
		Version: 1, ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	}, nil).Once()
	roomRepo.On("FindByID", ctx, "r1").Return(&domain.Room{ID: "r1", Status: domain.RoomStatusLobby}, nil)
	memberRepo.On("Find", ctx, "r1", "alice").Return(&domain.RoomMember{RoomID: "r1", UserID: "alice"}, nil)
	memberRepo.On("ListByRoom", ctx, "r1").Return([]domain.RoomMember{{RoomID: "r1", UserID: "alice"}}, nil)
	playerRepo.On("ListByUsers", ctx, mock.Anything).Return([]domain.Player{{ID: "pa", UserID: "alice", IsActive: true}}, nil)
	sessionRepo.On("UpdateIfVersion", ctx, mock.AnythingOfType("*domain.GameSession"), int64(1)).Return(nil).Once()
	// 提交之后、同步房间状态之前房间已被清理
	roomRepo.On("Update", ctx, "r1", mock.MatchedBy(func(c repository.RoomChanges) bool {
		return c.Status != nil && *c.Status == domain.RoomStatusPlaying
	})).Return(repository.ErrRoomNotFound).Once()
	stateRepo.On("PublishSessionEvent", ctx, mock.Anything).Return(nil)

	res, err := svc.ApplyMove(ctx, "alice", "r1", moveOf(matching.MoveStartGame, "", map[string]interface{}{"players": []string{"pa"}}))

	require.NoError(t, err)
	assert.True(t, res.Success)
	roomRepo.AssertExpectations(t)
	roomRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSession_ActivePlayersFrozenAfterStart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room, pa, pb := matchingRoom(t, env)

	session, err := env.sessions.UpdateActivePlayers(ctx, room.ID, "bob", []string{pa.ID, pb.ID, pa.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{pa.ID, pb.ID}, []string(session.ActivePlayers))

	_, err = env.sessions.UpdateActivePlayers(ctx, room.ID, "bob", []string{"ghost"})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	res := mustApply(t, env, "alice", room.ID, moveOf(matching.MoveStartGame, "", map[string]interface{}{"players": []string{pa.ID}}))
	require.True(t, res.Success, res.Error)

	_, err = env.sessions.UpdateActivePlayers(ctx, room.ID, "alice", []string{pa.ID})
	assert.ErrorIs(t, err, service.ErrRosterFrozen)
}

func TestSession_ConcurrentMovesOneConflict(t *testing.T) {
	// Arrange: 两个请求都读到版本 3，存储层只接受第一个条件更新
	sessionRepo := new(mocks.SessionRepository)
	roomRepo := new(mocks.RoomRepository)
	memberRepo := new(mocks.MemberRepository)
	playerRepo := new(mocks.PlayerRepository)
	stateRepo := new(mocks.StateRepository)
	owners := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, 0)
	svc := service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, owners, catalog.NewRegistry(), 0)
	ctx := context.Background()

	initial, err := matching.New().InitialState(nil)
	require.NoError(t, err)
	stored := func() *domain.GameSession {
		return &domain.GameSession{
			RoomID: "r1", GameName: matching.Name, GameState: datatypes.JSON(initial),
			Version: 3, ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
		}
	}
	sessionRepo.On("FindByRoomID", ctx, "r1").Return(stored(), nil).Once()
	sessionRepo.On("FindByRoomID", ctx, "r1").Return(stored(), nil).Once()
	roomRepo.On("FindByID", ctx, "r1").Return(&domain.Room{ID: "r1", CreatorID: "alice", Status: domain.RoomStatusLobby}, nil)
	memberRepo.On("Find", ctx, "r1", mock.AnythingOfType("string")).Return(&domain.RoomMember{RoomID: "r1"}, nil)
	memberRepo.On("ListByRoom", ctx, "r1").Return([]domain.RoomMember{{RoomID: "r1", UserID: "alice"}, {RoomID: "r1", UserID: "bob"}}, nil)
	playerRepo.On("ListByUsers", ctx, mock.Anything).Return([]domain.Player{
		{ID: "pa", UserID: "alice", IsActive: true},
		{ID: "pb", UserID: "bob", IsActive: true},
	}, nil)
	sessionRepo.On("UpdateIfVersion", ctx, mock.AnythingOfType("*domain.GameSession"), int64(3)).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.GameSession).Version = 4 }).
		Return(nil).Once()
	sessionRepo.On("UpdateIfVersion", ctx, mock.AnythingOfType("*domain.GameSession"), int64(3)).
		Return(repository.ErrVersionConflict).Once()
	roomRepo.On("Update", ctx, "r1", mock.AnythingOfType("repository.RoomChanges")).Return(nil).Maybe()
	stateRepo.On("PublishSessionEvent", ctx, mock.Anything).Return(nil).Maybe()

	setPairs := func(n int) domain.Move { return moveOf(matching.MoveSetConfig, "", map[string]int{"pairs": n}) }

	// Act
	first, err := svc.ApplyMove(ctx, "alice", "r1", setPairs(3))
	require.NoError(t, err)
	second, err := svc.ApplyMove(ctx, "bob", "r1", setPairs(4))
	require.NoError(t, err)

	// Assert
	assert.True(t, first.Success)
	assert.Equal(t, int64(4), first.Session.Version)
	assert.False(t, second.Success)
	assert.True(t, second.VersionConflict, "输掉竞争的一方应得到版本冲突，而不是一般错误")
	sessionRepo.AssertExpectations(t)
}

func TestSession_CorruptStateIsInternalError(t *testing.T) {
	sessionRepo := new(mocks.SessionRepository)
	roomRepo := new(mocks.RoomRepository)
	memberRepo := new(mocks.MemberRepository)
	playerRepo := new(mocks.PlayerRepository)
	stateRepo := new(mocks.StateRepository)
	owners := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, 0)
	svc := service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, owners, catalog.NewRegistry(), 0)
	ctx := context.Background()

	sessionRepo.On("FindByRoomID", ctx, "r1").Return(&domain.GameSession{
		RoomID: "r1", GameName: matching.Name, GameState: datatypes.JSON(`"garbage"`),
		Version: 1, ExpiresAt: time.Now().Add(time.Hour), IsActive: true,
	}, nil).Once()
	roomRepo.On("FindByID", ctx, "r1").Return(&domain.Room{ID: "r1"}, nil).Once()
	memberRepo.On("Find", ctx, "r1", "alice").Return(&domain.RoomMember{RoomID: "r1", UserID: "alice"}, nil).Once()
	memberRepo.On("ListByRoom", ctx, "r1").Return([]domain.RoomMember{{RoomID: "r1", UserID: "alice"}}, nil).Once()
	playerRepo.On("ListByUsers", ctx, mock.Anything).Return([]domain.Player{{ID: "pa", UserID: "alice", IsActive: true}}, nil).Once()

	_, err := svc.ApplyMove(ctx, "alice", "r1", moveOf(matching.MoveResetGame, "", nil))
	assert.ErrorIs(t, err, service.ErrInternalServer)
	sessionRepo.AssertNotCalled(t, "UpdateIfVersion", mock.Anything, mock.Anything, mock.Anything)
}
