package repository

import (
	"context"
	"errors"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
)

type GormInviteCodeRepository struct {
	db *gorm.DB
}

func NewGormInviteCodeRepository(db *gorm.DB) InviteCodeRepository {
	return &GormInviteCodeRepository{db: db}
}

func (r *GormInviteCodeRepository) Create(ctx context.Context, inviteCode *models.InviteCode) error {
	return r.db.WithContext(ctx).Create(inviteCode).Error
}

func (r *GormInviteCodeRepository) FindByChatID(ctx context.Context, chatID int64) (*models.InviteCode, error) {
	return r.findOne(ctx, "chat_id = ?", chatID)
}

func (r *GormInviteCodeRepository) FindByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	return r.findOne(ctx, "code = ?", code)
}

func (r *GormInviteCodeRepository) findOne(ctx context.Context, query string, arg any) (*models.InviteCode, error) {
	var inviteCode models.InviteCode
	err := r.db.WithContext(ctx).Where(query, arg).First(&inviteCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inviteCode, nil
}
