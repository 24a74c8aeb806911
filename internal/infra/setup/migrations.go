package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/DauBapp/WebCoCaro-DACN/internal/domain"
)

// MigrateDB 创建或更新 users、game_histories、move_records 三张表
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	migrator := db
	if db.Dialector.Name() == DriverMySQL {
		migrator = db.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci")
	}

	// 先建父表，move_records 的外键依赖 game_histories
	models := []interface{}{&domain.User{}, &domain.GameRecord{}, &domain.MoveRecord{}}
	for _, m := range models {
		if err := migrator.AutoMigrate(m); err != nil {
			logrus.Errorf("Failed to auto-migrate %T: %v", m, err)
			return fmt.Errorf("failed to auto-migrate %T: %w", m, err)
		}
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
