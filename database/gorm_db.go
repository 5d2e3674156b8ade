package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/trustytail/config"
	"github.com/camden-git/trustytail/models"
)

// InitGormDB initializes and returns a GORM database instance for the given driver
func InitGormDB(driver, dataSourceName string, log *zap.Logger) (*gorm.DB, error) {
	gormLogger := logger.New(
		zap.NewStdLog(log.Named("gorm")),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dataSourceName)
	case config.DriverPostgres:
		dialector = postgres.Open(dataSourceName)
	default:
		return nil, fmt.Errorf("unsupported database driver '%s'", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database using GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB from GORM: %w", err)
	}

	if driver == config.DriverSQLite {
		// enable write-ahead logging so the bot and a sweep can share the file
		if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
			log.Warn("failed to set WAL mode", zap.Error(err))
		}
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("GORM database initialized", zap.String("driver", driver))
	return db, nil
}

// AutoMigrateModels creates or updates the tables for every persisted entity
func AutoMigrateModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.MonitoringStatus{},
		&models.LivenessEvent{},
		&models.SecondaryOwnerLink{},
		&models.EmergencyInfo{},
		&models.InviteCode{},
	)
	if err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}
