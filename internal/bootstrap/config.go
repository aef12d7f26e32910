package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"arcade-rooms/internal/infra/setup"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBDriver          string
	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	DBPath            string // 仅 sqlite
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string
	JWTSecret         string
	JWTExpiryHours    int
	ServerPort        string
	LogLevel          string
	AppEnv            string // development / production
	CORSAllowedOrigin string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	RoomTTLMinutes    int
	SessionTTL        time.Duration
	CleanupSchedule   string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:          getEnv("DB_DRIVER", setup.DriverMySQL),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		DBPath:            os.Getenv("DB_PATH"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         getEnv("REDIS_KEY_PREFIX", "ar:"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AppEnv:            getEnv("APP_ENV", "development"),
		CORSAllowedOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		RateLimitWindow:   time.Second,
		CleanupSchedule:   getEnv("CLEANUP_SCHEDULE", "@every 5m"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = getInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RoomTTLMinutes, err = getInt("ROOM_TTL_MINUTES", 60); err != nil {
		return nil, err
	}
	sessionMinutes, err := getInt("SESSION_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = time.Duration(sessionMinutes) * time.Minute

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.DBDriver {
	case setup.DriverMySQL, setup.DriverPostgres:
		if cfg.DBName == "" {
			return nil, fmt.Errorf("environment variable DB_NAME must be set for %s", cfg.DBDriver)
		}
	case setup.DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.RoomTTLMinutes <= 0 || cfg.SessionTTL <= 0 || cfg.RateLimitMax <= 0 {
		return nil, fmt.Errorf("ROOM_TTL_MINUTES, SESSION_TTL_MINUTES and RATE_LIMIT_MAX must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}
