package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arcade-rooms/internal/game/catalog"
	"arcade-rooms/internal/game/matching"
	handler "arcade-rooms/internal/handler/http"
	gormpersistence "arcade-rooms/internal/infra/persistence/gorm"
	"arcade-rooms/internal/infra/setup"
	redisstate "arcade-rooms/internal/infra/state/redis"
	"arcade-rooms/internal/middleware"
	"arcade-rooms/internal/service"
)

const testSecret = "handler-test-secret"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, setup.MigrateDB(db))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	roomRepo := gormpersistence.NewGormRoomRepository(db)
	memberRepo := gormpersistence.NewGormMemberRepository(db)
	moderationRepo := gormpersistence.NewGormModerationRepository(db)
	playerRepo := gormpersistence.NewGormPlayerRepository(db)
	sessionRepo := gormpersistence.NewGormSessionRepository(db)
	userRepo := gormpersistence.NewGormUserRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(client, "test:")
	games := catalog.NewRegistry()

	identity, err := service.NewIdentityService(userRepo, testSecret, 1)
	require.NoError(t, err)
	rooms := service.NewRoomService(roomRepo, stateRepo, games, 60)
	members := service.NewMembershipService(roomRepo, memberRepo, moderationRepo, stateRepo)
	owners := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, time.Minute)
	players := service.NewPlayerService(playerRepo, memberRepo, stateRepo)
	sessions := service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, owners, games, 30*time.Minute)

	h := &handler.Handlers{
		Identity: handler.NewIdentityHandler(identity),
		Rooms:    handler.NewRoomHandler(rooms, members, owners, games),
		Members:  handler.NewMemberHandler(members),
		Sessions: handler.NewSessionHandler(sessions, rooms),
		Players:  handler.NewPlayerHandler(players, owners),
	}
	router := gin.New()
	h.RegisterRoutes(router, middleware.Auth(testSecret))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

// guest 以访客身份登录，返回 token 和内部用户 ID
func guest(t *testing.T, router *gin.Engine, guestID, name string) (string, string) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/identity/guest", "", map[string]string{"guestId": guestID, "displayName": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, w, &resp)
	return resp.Token, resp.User.ID
}

func TestHandlers_FullGameFlow(t *testing.T) {
	router := newRouter(t)
	aliceTok, aliceID := guest(t, router, "guest-alice", "Alice")
	bobTok, bobID := guest(t, router, "guest-bob", "Bob")

	// 创建房间
	w := do(t, router, http.MethodPost, "/api/rooms", aliceTok, map[string]interface{}{
		"gameName": matching.Name, "gameConfig": map[string]int{"pairs": 2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Room struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"room"`
	}
	decode(t, w, &created)
	roomID := created.Room.ID
	assert.Len(t, created.Room.Code, 6)

	// bob 通过小写房间码找到并加入
	w = do(t, router, http.MethodGet, "/api/rooms/code/"+strings.ToLower(created.Room.Code), bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code, "房间码查找应成功")
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/join", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/rooms/"+roomID+"/members", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Members []struct {
			DisplayName string `json:"displayName"`
		} `json:"members"`
	}
	decode(t, w, &list)
	require.Len(t, list.Members, 2)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, []string{list.Members[0].DisplayName, list.Members[1].DisplayName}, "未指定显示名时应使用访客名")

	// 各自创建玩家
	playerIDs := make([]string, 0, 2)
	for _, tok := range []string{aliceTok, bobTok} {
		w = do(t, router, http.MethodPost, "/api/players", tok, map[string]string{"name": "P"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var p struct {
			ID string `json:"id"`
		}
		decode(t, w, &p)
		playerIDs = append(playerIDs, p.ID)
	}

	// 全局目录中的归属查询
	w = do(t, router, http.MethodGet, "/api/players/owners?ids="+playerIDs[0]+",ghost", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var owners struct {
		Owners map[string]string `json:"owners"`
	}
	decode(t, w, &owners)
	assert.Equal(t, map[string]string{playerIDs[0]: aliceID}, owners.Owners)
	w = do(t, router, http.MethodGet, "/api/players/owners", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &owners)
	assert.Equal(t, bobID, owners.Owners[playerIDs[1]])

	w = do(t, router, http.MethodGet, "/api/rooms/"+roomID+"/snapshot", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap struct {
		Members []struct {
			Players []json.RawMessage `json:"players"`
		} `json:"members"`
	}
	decode(t, w, &snap)
	assert.Len(t, snap.Members, 2, "快照应包含两个成员")

	// 开始会话
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session", aliceTok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 非成员既不能读取会话，也不能用心跳为它续期
	carolTok, _ := guest(t, router, "guest-carol", "Carol")
	for _, path := range []string{"/api/rooms/" + roomID + "/session", "/api/rooms/" + roomID + "/session/heartbeat"} {
		method := http.MethodGet
		if strings.HasSuffix(path, "heartbeat") {
			method = http.MethodPost
		}
		w = do(t, router, method, path, carolTok, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session", carolTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "非成员不能通过创建接口读取已有会话")
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session/heartbeat", bobTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session/moves", aliceTok, map[string]interface{}{
		"type": matching.MoveStartGame,
		"data": map[string]interface{}{"players": playerIDs, "seed": 1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.MoveResult
	decode(t, w, &res)
	assert.True(t, res.Success)
	assert.EqualValues(t, 2, res.Session.Version)

	// 过期版本
	stale := int64(1)
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session/moves", aliceTok, map[string]interface{}{
		"type": matching.MoveFlipCard, "playerId": playerIDs[0], "data": map[string]int{"cardIndex": 0}, "baseVersion": stale,
	})
	assert.Equal(t, http.StatusConflict, w.Code, "过期的 baseVersion 应返回 409")

	// 轮到 alice 的玩家时 bob 不能翻牌
	w = do(t, router, http.MethodPost, "/api/rooms/"+roomID+"/session/moves", bobTok, map[string]interface{}{
		"type": matching.MoveFlipCard, "playerId": playerIDs[1], "data": map[string]int{"cardIndex": 0},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/me/session", bobTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &res.Session)
	assert.EqualValues(t, 2, res.Session.Version, "被拒绝的动作不改变版本")

	// 只有房主能删除会话
	w = do(t, router, http.MethodDelete, "/api/rooms/"+roomID+"/session", bobTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, router, http.MethodDelete, "/api/rooms/"+roomID+"/session", aliceTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, router, http.MethodGet, "/api/rooms/"+roomID+"/session", aliceTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_ErrorMapping(t *testing.T) {
	router := newRouter(t)
	tok, _ := guest(t, router, "guest-carol", "Carol")

	testCases := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
	}{
		{name: "未认证", method: http.MethodGet, path: "/api/me", wantStatus: http.StatusUnauthorized},
		{name: "未知游戏", method: http.MethodPost, path: "/api/rooms", token: tok, body: map[string]string{"gameName": "chess"}, wantStatus: http.StatusBadRequest},
		{name: "非法配置", method: http.MethodPost, path: "/api/rooms", token: tok, body: map[string]interface{}{"gameName": matching.Name, "gameConfig": map[string]int{"pairs": 0}}, wantStatus: http.StatusBadRequest},
		{name: "缺少字段", method: http.MethodPost, path: "/api/rooms", token: tok, body: map[string]string{}, wantStatus: http.StatusBadRequest},
		{name: "房间码格式错误", method: http.MethodGet, path: "/api/rooms/code/abc", token: tok, wantStatus: http.StatusNotFound},
		{name: "房间不存在", method: http.MethodPost, path: "/api/rooms/missing/join", token: tok, wantStatus: http.StatusNotFound},
		{name: "没有会话", method: http.MethodGet, path: "/api/me/session", token: tok, wantStatus: http.StatusNotFound},
		{name: "玩家名为空", method: http.MethodPost, path: "/api/players", token: tok, body: map[string]string{"name": ""}, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestHandlers_ListGames(t *testing.T) {
	router := newRouter(t)

	w := do(t, router, http.MethodGet, "/api/games", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Games []struct {
			Name string `json:"name"`
		} `json:"games"`
	}
	decode(t, w, &resp)
	names := make([]string, 0, len(resp.Games))
	for _, g := range resp.Games {
		names = append(names, g.Name)
	}
	assert.Contains(t, names, matching.Name)
	assert.Contains(t, names, "recall")
}
