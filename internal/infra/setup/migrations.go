package setup

import (
	"fmt"

	"arcade-rooms/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Models 需要迁移的全部模型，测试也复用这份列表
var Models = []interface{}{
	&domain.User{},
	&domain.Room{},
	&domain.RoomMember{},
	&domain.MemberHistory{},
	&domain.RoomBan{},
	&domain.RoomInvitation{},
	&domain.Player{},
	&domain.GameSession{},
}

// MigrateDB handles all database migrations using the provided GORM DB instance.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(Models...); err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
