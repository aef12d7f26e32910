package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/dto"
	"arcade-rooms/internal/hub"
	"arcade-rooms/internal/middleware"
	"arcade-rooms/internal/repository"
	"arcade-rooms/internal/service"
)

type stubMembers struct{ members []domain.RoomMember }

func (s stubMembers) GetRoomMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error) {
	if roomID != "r1" {
		return nil, service.ErrRoomNotFound
	}
	return s.members, nil
}

type stubSessions struct{}

func (stubSessions) GetSession(ctx context.Context, roomID string) (*domain.GameSession, error) {
	return &domain.GameSession{RoomID: roomID, Version: 2, IsActive: true}, nil
}

func (stubSessions) ApplyMove(ctx context.Context, userID, roomID string, move domain.Move) (*service.MoveResult, error) {
	return &service.MoveResult{Success: true, Session: &domain.GameSession{RoomID: roomID, Version: 3}}, nil
}

func (stubSessions) TouchSessionActivity(ctx context.Context, roomID, userID string) error {
	return nil
}

type stubPresence struct{}

func (stubPresence) SetOnline(ctx context.Context, roomID, userID string, online bool) error {
	return nil
}

type stubEvents struct{}

func (stubEvents) SubscribeSessionEvents(ctx context.Context, handler func(repository.SessionEvent)) error {
	<-ctx.Done()
	return nil
}

func newServer(t *testing.T) *httptest.Server {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(stubSessions{}, stubPresence{}, stubEvents{})
	go h.Run(ctx)

	members := stubMembers{members: []domain.RoomMember{{RoomID: "r1", UserID: "u1"}}}
	wsHandler := NewWebSocketHandler(h, members, "")

	router := gin.New()
	router.GET("/ws/rooms/:roomId", func(c *gin.Context) {
		// 测试中用 query 参数模拟已认证用户
		c.Set(middleware.ContextUserIDKey, c.Query("as"))
		c.Next()
	}, wsHandler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHandleConnection_MoveRoundTrip(t *testing.T) {
	srv := newServer(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/r1?as=u1"), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var state dto.SessionFrame
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, dto.FrameSessionState, state.Type, "连接后应先收到当前会话")
	assert.EqualValues(t, 2, state.Session.Version)

	require.NoError(t, conn.WriteJSON(dto.ClientFrame{Type: dto.FrameMove, Move: &domain.Move{Type: "flip_card", PlayerID: "p1"}}))

	var result dto.MoveResultFrame
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, dto.FrameMoveResult, result.Type)
	assert.True(t, result.Success)
	assert.EqualValues(t, 3, result.Session.Version)
}

func TestHandleConnection_Rejections(t *testing.T) {
	srv := newServer(t)

	testCases := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "非成员", path: "/ws/rooms/r1?as=u2", wantStatus: http.StatusForbidden},
		{name: "房间不存在", path: "/ws/rooms/nope?as=u1", wantStatus: http.StatusNotFound},
		{name: "未认证", path: "/ws/rooms/r1", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tc.path), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}
