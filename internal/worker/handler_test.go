package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade-rooms/internal/tasks"
)

type fakeRoomCleaner struct {
	calls int
	n     int
	err   error
}

func (f *fakeRoomCleaner) CleanupExpiredRooms(ctx context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

type fakeSessionCleaner struct {
	calls int
	n     int64
	err   error
}

func (f *fakeSessionCleaner) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	f.calls++
	return f.n, f.err
}

func TestCleanupHandler_ProcessTask(t *testing.T) {
	rooms := &fakeRoomCleaner{n: 3}
	sessions := &fakeSessionCleaner{n: 1}
	h := NewCleanupHandler(rooms, sessions)

	task, err := tasks.NewRoomCleanupTask("manual")
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Equal(t, 1, rooms.calls, "应清理一次房间")
	assert.Equal(t, 1, sessions.calls, "应清理一次会话")
}

func TestCleanupHandler_RoomError(t *testing.T) {
	rooms := &fakeRoomCleaner{err: errors.New("db down")}
	sessions := &fakeSessionCleaner{}
	h := NewCleanupHandler(rooms, sessions)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeRoomCleanup, nil))

	assert.Error(t, err, "房间清理失败应返回错误以便重试")
	assert.Equal(t, 1, sessions.calls, "会话清理仍应执行")
}

func TestCleanupHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewCleanupHandler(&fakeRoomCleaner{}, &fakeSessionCleaner{})

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeRoomCleanup, []byte("{not json")))

	assert.ErrorIs(t, err, asynq.SkipRetry, "无法解析的 payload 不应重试")
}

func TestWorkerServer_MuxRoutesCleanup(t *testing.T) {
	rooms := &fakeRoomCleaner{}
	sessions := &fakeSessionCleaner{}
	mr := miniredis.RunT(t)
	ws := NewWorkerServer(asynq.RedisClientOpt{Addr: mr.Addr()}, NewCleanupHandler(rooms, sessions), logrus.New())

	task, err := tasks.NewRoomCleanupTask("scheduler")
	require.NoError(t, err)

	err = ws.Mux().ProcessTask(context.Background(), task)

	assert.NoError(t, err)
	assert.Equal(t, 1, rooms.calls, "清理任务应路由到 CleanupHandler")
}
