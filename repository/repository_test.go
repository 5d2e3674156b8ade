package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/trustytail/config"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.InitGormDB(config.DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestProfileRepository_UpsertOverwritesUsername(t *testing.T) {
	repo := NewGormProfileRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, 10, "old_name"))
	require.NoError(t, repo.Upsert(ctx, 10, "new_name"))

	profile, err := repo.FindByChatID(ctx, 10)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "new_name", profile.Username)

	missing, err := repo.FindByChatID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_ListPageAndFindByChatIDs(t *testing.T) {
	repo := NewGormProfileRepository(setupTestDB(t))
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, repo.Upsert(ctx, i*100, fmt.Sprintf("user%d", i)))
	}

	first, err := repo.ListPage(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(100), first[0].ChatID)

	rest, err := repo.ListPage(ctx, first[1].ID, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	found, err := repo.FindByChatIDs(ctx, []int64{200, 400, 999})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	none, err := repo.FindByChatIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMonitoringRepository_SetEnabledIsUpsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMonitoringRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.SetEnabled(ctx, 7, true))
	require.NoError(t, repo.SetEnabled(ctx, 7, false))
	require.NoError(t, repo.SetEnabled(ctx, 7, false))

	status, err := repo.FindByChatID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.False(t, status.Enabled)

	var count int64
	require.NoError(t, db.Model(&models.MonitoringStatus{}).Where("chat_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLivenessRepository_UpsertKeepsSingleRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormLivenessRepository(db)
	ctx := context.Background()

	first := time.Date(2026, 5, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	second := first.Add(6 * time.Hour)

	require.NoError(t, repo.Upsert(ctx, 3, first))
	require.NoError(t, repo.Upsert(ctx, 3, second))

	event, err := repo.FindByChatID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, second.Equal(event.ConfirmedAt))

	var count int64
	require.NoError(t, db.Model(&models.LivenessEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEmergencyInfoRepository_Upsert(t *testing.T) {
	repo := NewGormEmergencyInfoRepository(setupTestDB(t))
	ctx := context.Background()

	info, err := repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, repo.Upsert(ctx, 5, "Feed the cat twice a day"))
	require.NoError(t, repo.Upsert(ctx, 5, "Spare key is under the mat"))

	info, err = repo.FindByChatID(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Spare key is under the mat", info.Text)
}

func TestInviteCodeRepository_CreateAndFind(t *testing.T) {
	repo := NewGormInviteCodeRepository(setupTestDB(t))
	ctx := context.Background()

	invite := &models.InviteCode{ChatID: 11}
	require.NoError(t, repo.Create(ctx, invite))
	assert.Len(t, invite.Code, models.InviteCodeLength)

	byCode, err := repo.FindByCode(ctx, invite.Code)
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, int64(11), byCode.ChatID)

	byChat, err := repo.FindByChatID(ctx, 11)
	require.NoError(t, err)
	require.NotNil(t, byChat)
	assert.Equal(t, invite.Code, byChat.Code)

	// one code per chat
	assert.Error(t, repo.Create(ctx, &models.InviteCode{ChatID: 11}))

	unknown, err := repo.FindByCode(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestSecondaryOwnerRepository_LinkIsIdempotent(t *testing.T) {
	repo := NewGormSecondaryOwnerRepository(setupTestDB(t))
	ctx := context.Background()

	created, err := repo.Link(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Link(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Link(ctx, 1, 3)
	require.NoError(t, err)
	_, err = repo.Link(ctx, 4, 2)
	require.NoError(t, err)

	byPrimary, err := repo.ListByPrimary(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byPrimary, 2)
	assert.Equal(t, int64(2), byPrimary[0].SecondaryOwnerChatID)
	assert.Equal(t, int64(3), byPrimary[1].SecondaryOwnerChatID)

	bySecondary, err := repo.ListBySecondary(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, bySecondary, 2)
}
