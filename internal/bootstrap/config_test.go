package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "ar:", cfg.KeyPrefix)
	assert.Equal(t, 60, cfg.RoomTTLMinutes)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "@every 5m", cfg.CleanupSchedule)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ROOM_TTL_MINUTES", "15")
	t.Setenv("SESSION_TTL_MINUTES", "5")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 15, cfg.RoomTTLMinutes)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel, "非法日志级别应回退到 info")
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "缺少 JWT_SECRET", env: map[string]string{"JWT_SECRET": ""}},
		{name: "缺少 REDIS_ADDR", env: map[string]string{"REDIS_ADDR": ""}},
		{name: "未知驱动", env: map[string]string{"DB_DRIVER": "oracle"}},
		{name: "mysql 缺少库名", env: map[string]string{"DB_DRIVER": "mysql", "DB_NAME": ""}},
		{name: "TTL 不是数字", env: map[string]string{"ROOM_TTL_MINUTES": "soon"}},
		{name: "TTL 为负", env: map[string]string{"SESSION_TTL_MINUTES": "-1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}
