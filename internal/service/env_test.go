package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"arcade-rooms/internal/domain"
	"arcade-rooms/internal/game/catalog"
	gormpersistence "arcade-rooms/internal/infra/persistence/gorm"
	"arcade-rooms/internal/infra/setup"
	redisstate "arcade-rooms/internal/infra/state/redis"
	"arcade-rooms/internal/service"
)

// testEnv 使用真实的 GORM (sqlite 内存库) 和 miniredis 组装所有服务
type testEnv struct {
	db          *gorm.DB
	redis       *miniredis.Miniredis
	sessionRepo *gormpersistence.GormSessionRepository

	rooms    *service.RoomService
	members  *service.MembershipService
	owners   *service.OwnershipService
	players  *service.PlayerService
	sessions *service.SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
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
	stateRepo := redisstate.NewRedisStateRepository(client, "test:")
	games := catalog.NewRegistry()

	owners := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, time.Minute)
	return &testEnv{
		db:          db,
		redis:       mr,
		sessionRepo: sessionRepo,
		rooms:       service.NewRoomService(roomRepo, stateRepo, games, 60),
		members:     service.NewMembershipService(roomRepo, memberRepo, moderationRepo, stateRepo),
		owners:      owners,
		players:     service.NewPlayerService(playerRepo, memberRepo, stateRepo),
		sessions:    service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, owners, games, 30*time.Minute),
	}
}

// hostRoom 创建房间并让房主加入
func (e *testEnv) hostRoom(t *testing.T, hostID, gameName, config string) *domain.Room {
	t.Helper()
	ctx := context.Background()
	var raw []byte
	if config != "" {
		raw = []byte(config)
	}
	room, err := e.rooms.CreateRoom(ctx, service.CreateRoomInput{CreatorID: hostID, GameName: gameName, GameConfig: raw})
	require.NoError(t, err)
	_, err = e.members.AddRoomMember(ctx, room.ID, hostID, hostID, true)
	require.NoError(t, err)
	return room
}

func (e *testEnv) join(t *testing.T, roomID, userID string) *service.JoinResult {
	t.Helper()
	res, err := e.members.AddRoomMember(context.Background(), roomID, userID, userID, false)
	require.NoError(t, err)
	return res
}

func (e *testEnv) player(t *testing.T, userID, name string) *domain.Player {
	t.Helper()
	p, err := e.players.CreatePlayer(context.Background(), userID, name, "", "")
	require.NoError(t, err)
	return p
}
