package repository

import (
	"context"
	"errors"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormProfileRepository struct {
	db *gorm.DB
}

func NewGormProfileRepository(db *gorm.DB) ProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) Upsert(ctx context.Context, chatID int64, username string) error {
	profile := models.Profile{ChatID: chatID, Username: username}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(&profile).Error
}

func (r *GormProfileRepository) FindByChatID(ctx context.Context, chatID int64) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *GormProfileRepository) FindByChatIDs(ctx context.Context, chatIDs []int64) ([]models.Profile, error) {
	var profiles []models.Profile
	if len(chatIDs) == 0 {
		return profiles, nil
	}
	err := r.db.WithContext(ctx).Where("chat_id IN ?", chatIDs).Find(&profiles).Error
	return profiles, err
}

func (r *GormProfileRepository) ListPage(ctx context.Context, afterID uint, limit int) ([]models.Profile, error) {
	var profiles []models.Profile
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}
