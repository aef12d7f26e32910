package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"arcade-rooms/internal/game/catalog"
	httpHandler "arcade-rooms/internal/handler/http"
	wsHandler "arcade-rooms/internal/handler/websocket"
	"arcade-rooms/internal/hub"
	gormpersistence "arcade-rooms/internal/infra/persistence/gorm"
	"arcade-rooms/internal/infra/setup"
	redisstate "arcade-rooms/internal/infra/state/redis"
	"arcade-rooms/internal/middleware"
	"arcade-rooms/internal/service"
	"arcade-rooms/internal/tasks"
	"arcade-rooms/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqServer    *worker.WorkerServer
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	hubCancel      context.CancelFunc
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// 各层使用 logrus 的标准 logger，与 App 保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.DBConfig{
		Driver:   cfg.DBDriver,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		Path:     cfg.DBPath,
		Verbose:  logLevel >= logrus.DebugLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// 4. 初始化 Repositories
	log.Info("Initializing repositories...")
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	memberRepo := gormpersistence.NewGormMemberRepository(db)
	moderationRepo := gormpersistence.NewGormModerationRepository(db)
	playerRepo := gormpersistence.NewGormPlayerRepository(db)
	sessionRepo := gormpersistence.NewGormSessionRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	// 5. 游戏注册表和 Services
	log.Info("Initializing services...")
	games := catalog.NewRegistry()
	log.Infof("Registered games: %v", games.Names())

	identityService, err := service.NewIdentityService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create IdentityService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, stateRepo, games, cfg.RoomTTLMinutes)
	membershipService := service.NewMembershipService(roomRepo, memberRepo, moderationRepo, stateRepo)
	ownershipService := service.NewOwnershipService(memberRepo, playerRepo, stateRepo, service.DefaultSnapshotTTL)
	playerService := service.NewPlayerService(playerRepo, memberRepo, stateRepo)
	sessionService := service.NewSessionService(sessionRepo, roomRepo, memberRepo, stateRepo, ownershipService, games, cfg.SessionTTL)

	// 6. 初始化 Hub
	hubInstance := hub.NewHub(sessionService, membershipService, stateRepo)

	// 7. 初始化 Handlers
	handlers := &httpHandler.Handlers{
		Identity: httpHandler.NewIdentityHandler(identityService),
		Rooms:    httpHandler.NewRoomHandler(roomService, membershipService, ownershipService, games),
		Members:  httpHandler.NewMemberHandler(membershipService),
		Sessions: httpHandler.NewSessionHandler(sessionService, roomService),
		Players:  httpHandler.NewPlayerHandler(playerService, ownershipService),
	}
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, membershipService, cfg.CORSAllowedOrigin)

	// 8. 初始化 Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, worker.NewCleanupHandler(roomService, sessionService), log)

	// 9. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORSAllowedOrigin)))
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	auth := middleware.Auth(cfg.JWTSecret)
	handlers.RegisterRoutes(router, auth)
	router.GET("/ws/rooms/:roomId", auth, socketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	// 10. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

func corsConfig(allowedOrigin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = []string{allowedOrigin}
	}
	return cfg
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	hubCtx, cancel := context.WithCancel(context.Background())
	a.hubCancel = cancel
	go a.Hub.Run(hubCtx)
	go a.Hub.Subscribe(hubCtx)
	a.Log.Info("Hub routines started")

	go a.AsynqServer.Start()
	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{Location: time.UTC})

	task, err := tasks.NewRoomCleanupTask("scheduler")
	if err != nil {
		a.Log.Errorf("Failed to create room cleanup task: %v", err)
		return
	}
	schedule := a.Config.CleanupSchedule
	entryID, err := scheduler.Register(schedule, task, asynq.Queue("default"), asynq.MaxRetry(1))
	if err != nil {
		a.Log.Errorf("Could not register periodic cleanup task: %v", err)
		return
	}
	a.Log.Infof("Periodic cleanup task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	a.scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			return
		}
		a.Log.Info("Asynq scheduler stopped.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接受新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub 和事件订阅，关闭所有 WebSocket
	if a.hubCancel != nil {
		a.hubCancel()
	}

	// 3. 停止定时任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Redis 和数据库连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}
