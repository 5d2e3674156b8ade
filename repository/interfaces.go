package repository

import (
	"context"
	"time"

	"github.com/camden-git/trustytail/models"
	"gorm.io/gorm"
)

// Find* methods return (nil, nil) when no row matches.

// ProfileRepository defines the methods for profile data operations
type ProfileRepository interface {
	Upsert(ctx context.Context, chatID int64, username string) error
	FindByChatID(ctx context.Context, chatID int64) (*models.Profile, error)
	FindByChatIDs(ctx context.Context, chatIDs []int64) ([]models.Profile, error)
	// ListPage returns up to limit profiles with id > afterID, ordered by id.
	ListPage(ctx context.Context, afterID uint, limit int) ([]models.Profile, error)
}

// MonitoringRepository defines the methods for monitoring status operations
type MonitoringRepository interface {
	SetEnabled(ctx context.Context, chatID int64, enabled bool) error
	FindByChatID(ctx context.Context, chatID int64) (*models.MonitoringStatus, error)
}

// LivenessRepository defines the methods for liveness confirmation operations
type LivenessRepository interface {
	Upsert(ctx context.Context, chatID int64, confirmedAt time.Time) error
	FindByChatID(ctx context.Context, chatID int64) (*models.LivenessEvent, error)
}

// EmergencyInfoRepository defines the methods for emergency text operations
type EmergencyInfoRepository interface {
	Upsert(ctx context.Context, chatID int64, text string) error
	FindByChatID(ctx context.Context, chatID int64) (*models.EmergencyInfo, error)
}

// InviteCodeRepository defines the methods for invite code operations
type InviteCodeRepository interface {
	Create(ctx context.Context, inviteCode *models.InviteCode) error
	FindByChatID(ctx context.Context, chatID int64) (*models.InviteCode, error)
	FindByCode(ctx context.Context, code string) (*models.InviteCode, error)
}

// SecondaryOwnerRepository defines the methods for owner/contact links
type SecondaryOwnerRepository interface {
	// Link reports whether a new row was inserted; an existing pair is left untouched.
	Link(ctx context.Context, primaryChatID, secondaryChatID int64) (bool, error)
	ListByPrimary(ctx context.Context, primaryChatID int64) ([]models.SecondaryOwnerLink, error)
	ListBySecondary(ctx context.Context, secondaryChatID int64) ([]models.SecondaryOwnerLink, error)
}

// Repositories bundles every repository backed by one database handle.
type Repositories struct {
	Profiles       ProfileRepository
	Monitoring     MonitoringRepository
	Liveness       LivenessRepository
	EmergencyInfo  EmergencyInfoRepository
	InviteCodes    InviteCodeRepository
	SecondaryOwner SecondaryOwnerRepository
}

func NewGormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Profiles:       NewGormProfileRepository(db),
		Monitoring:     NewGormMonitoringRepository(db),
		Liveness:       NewGormLivenessRepository(db),
		EmergencyInfo:  NewGormEmergencyInfoRepository(db),
		InviteCodes:    NewGormInviteCodeRepository(db),
		SecondaryOwner: NewGormSecondaryOwnerRepository(db),
	}
}
