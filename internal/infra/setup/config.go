package setup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // postgres 驱动，由 database/sql 打开后交给 GORM
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBConfig 数据库连接参数
type DBConfig struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	Path     string // 仅 sqlite 使用
	Verbose  bool
}

// InitDB 根据驱动初始化数据库连接
func InitDB(cfg DBConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// 将各方言的唯一约束错误统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.Verbose),
			IgnoreRecordNotFoundError: true,
		}),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			cfg.User, cfg.Password, defaultString(cfg.Host, "127.0.0.1"), defaultString(cfg.Port, "3306"), cfg.Name)
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
	case DriverPostgres:
		dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.User, cfg.Password, defaultString(cfg.Host, "127.0.0.1"), defaultString(cfg.Port, "5432"), cfg.Name)
		sqlDB, openErr := sql.Open("postgres", dsn)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", openErr)
		}
		db, err = gorm.Open(postgres.New(postgres.Config{
			Conn:                 sqlDB,
			PreferSimpleProtocol: true,
		}), gormConfig)
	case DriverSQLite:
		db, err = gorm.Open(sqlite.Open(defaultString(cfg.Path, "arcade.db")+"?_foreign_keys=on"), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		// sqlite 单写者
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	logrus.WithField("driver", defaultString(cfg.Driver, DriverMySQL)).Info("Database connected")
	return db, nil
}

// InitRedis 初始化 Redis 连接
func InitRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxConnAge:   30 * time.Minute,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	logrus.Info("Redis connected")
	return client, nil
}

func gormLogLevel(verbose bool) logger.LogLevel {
	if verbose {
		return logger.Info
	}
	return logger.Warn
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
