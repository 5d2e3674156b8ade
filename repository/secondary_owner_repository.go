package repository

import (
	"context"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormSecondaryOwnerRepository struct {
	db *gorm.DB
}

func NewGormSecondaryOwnerRepository(db *gorm.DB) SecondaryOwnerRepository {
	return &GormSecondaryOwnerRepository{db: db}
}

func (r *GormSecondaryOwnerRepository) Link(ctx context.Context, primaryChatID, secondaryChatID int64) (bool, error) {
	link := models.SecondaryOwnerLink{
		PrimaryOwnerChatID:   primaryChatID,
		SecondaryOwnerChatID: secondaryChatID,
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "primary_owner_chat_id"}, {Name: "secondary_owner_chat_id"}},
		DoNothing: true,
	}).Create(&link)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormSecondaryOwnerRepository) ListByPrimary(ctx context.Context, primaryChatID int64) ([]models.SecondaryOwnerLink, error) {
	var links []models.SecondaryOwnerLink
	err := r.db.WithContext(ctx).
		Where("primary_owner_chat_id = ?", primaryChatID).
		Order("id ASC").
		Find(&links).Error
	return links, err
}

func (r *GormSecondaryOwnerRepository) ListBySecondary(ctx context.Context, secondaryChatID int64) ([]models.SecondaryOwnerLink, error) {
	var links []models.SecondaryOwnerLink
	err := r.db.WithContext(ctx).
		Where("secondary_owner_chat_id = ?", secondaryChatID).
		Order("id ASC").
		Find(&links).Error
	return links, err
}
