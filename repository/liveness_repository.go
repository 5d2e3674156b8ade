package repository

import (
	"context"
	"errors"
	"time"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormLivenessRepository struct {
	db *gorm.DB
}

func NewGormLivenessRepository(db *gorm.DB) LivenessRepository {
	return &GormLivenessRepository{db: db}
}

// Upsert overwrites the chat's single liveness row with confirmedAt (stored in UTC).
func (r *GormLivenessRepository) Upsert(ctx context.Context, chatID int64, confirmedAt time.Time) error {
	event := models.LivenessEvent{ChatID: chatID, ConfirmedAt: confirmedAt.UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"confirmed_at"}),
	}).Create(&event).Error
}

func (r *GormLivenessRepository) FindByChatID(ctx context.Context, chatID int64) (*models.LivenessEvent, error) {
	var event models.LivenessEvent
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
