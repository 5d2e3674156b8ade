package repository

import (
	"context"
	"errors"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormEmergencyInfoRepository struct {
	db *gorm.DB
}

func NewGormEmergencyInfoRepository(db *gorm.DB) EmergencyInfoRepository {
	return &GormEmergencyInfoRepository{db: db}
}

func (r *GormEmergencyInfoRepository) Upsert(ctx context.Context, chatID int64, text string) error {
	info := models.EmergencyInfo{ChatID: chatID, Text: text}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
	}).Create(&info).Error
}

func (r *GormEmergencyInfoRepository) FindByChatID(ctx context.Context, chatID int64) (*models.EmergencyInfo, error) {
	var info models.EmergencyInfo
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&info).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}
