package repository

import (
	"context"
	"errors"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormMonitoringRepository struct {
	db *gorm.DB
}

func NewGormMonitoringRepository(db *gorm.DB) MonitoringRepository {
	return &GormMonitoringRepository{db: db}
}

func (r *GormMonitoringRepository) SetEnabled(ctx context.Context, chatID int64, enabled bool) error {
	status := models.MonitoringStatus{ChatID: chatID, Enabled: enabled}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(&status).Error
}

func (r *GormMonitoringRepository) FindByChatID(ctx context.Context, chatID int64) (*models.MonitoringStatus, error) {
	var status models.MonitoringStatus
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}
