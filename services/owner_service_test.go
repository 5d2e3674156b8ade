package services

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
	"github.com/camden-git/trustytail/repository"
)

const placeholder = "no emergency text configured"

func setupService(t *testing.T) (*OwnerService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.InitGormDB(config.DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return NewOwnerService(repository.NewGormRepositories(db), zap.NewNop(), placeholder), db
}

func TestMarkAlive_Idempotent(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	t1 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(3 * time.Hour)

	require.NoError(t, svc.MarkAlive(ctx, 42, t1))
	require.NoError(t, svc.MarkAlive(ctx, 42, t2))

	var events []models.LivenessEvent
	require.NoError(t, db.Where("chat_id = ?", 42).Find(&events).Error)
	require.Len(t, events, 1)
	assert.True(t, t2.Equal(events[0].ConfirmedAt))
}

func TestSetMonitoring(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	enabled, err := svc.IsMonitoringEnabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, svc.SetMonitoring(ctx, 1, true))
	enabled, err = svc.IsMonitoringEnabled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, svc.SetMonitoring(ctx, 1, false))
	enabled, err = svc.IsMonitoringEnabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestInviteRoundTrip(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	code, err := svc.GetOrCreateInvite(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, code, models.InviteCodeLength)

	again, err := svc.GetOrCreateInvite(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, code, again, "invite codes are never rotated")

	primary, err := svc.RedeemInvite(ctx, "  "+code+"\n", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(100), primary)

	var links []models.SecondaryOwnerLink
	require.NoError(t, db.Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, int64(100), links[0].PrimaryOwnerChatID)
	assert.Equal(t, int64(200), links[0].SecondaryOwnerChatID)

	primary, err = svc.RedeemInvite(ctx, code, 200)
	assert.ErrorIs(t, err, ErrAlreadyLinked)
	assert.Equal(t, int64(100), primary)
}

func TestRedeemInvite_UnknownCodeHasNoSideEffects(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreateInvite(ctx, 100)
	require.NoError(t, err)

	for _, code := range []string{"garbage1", "", "   "} {
		_, err := svc.RedeemInvite(ctx, code, 300)
		assert.ErrorIs(t, err, ErrInviteNotFound)
	}

	var count int64
	require.NoError(t, db.Model(&models.SecondaryOwnerLink{}).Count(&count).Error)
	assert.Zero(t, count)
}

type collidingInviteRepo struct {
	repository.InviteCodeRepository
	failures int
	creates  int
}

func (r *collidingInviteRepo) Create(ctx context.Context, invite *models.InviteCode) error {
	r.creates++
	if r.failures > 0 {
		r.failures--
		return fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)
	}
	return r.InviteCodeRepository.Create(ctx, invite)
}

func TestGetOrCreateInvite_RetriesCodeCollision(t *testing.T) {
	svc, _ := setupService(t)
	repo := &collidingInviteRepo{InviteCodeRepository: svc.repos.InviteCodes, failures: 2}
	svc.repos.InviteCodes = repo

	code, err := svc.GetOrCreateInvite(context.Background(), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, 3, repo.creates)
}

func TestGetOrCreateInvite_GivesUp(t *testing.T) {
	svc, _ := setupService(t)
	svc.repos.InviteCodes = &collidingInviteRepo{InviteCodeRepository: svc.repos.InviteCodes, failures: maxInviteAttempts}

	_, err := svc.GetOrCreateInvite(context.Background(), 5)
	assert.ErrorIs(t, err, ErrInviteNotIssuable)
}

func TestEmergencyText(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	text, found, err := svc.EmergencyText(ctx, 9)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, placeholder, text)

	assert.ErrorIs(t, svc.SetEmergencyText(ctx, 9, "  \n "), ErrEmptyEmergencyText)

	require.NoError(t, svc.SetEmergencyText(ctx, 9, "  Vet: +1 555 0100  "))
	text, found, err = svc.EmergencyText(ctx, 9)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Vet: +1 555 0100", text)
}

func TestContacts_NaturalOrder(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	code, err := svc.GetOrCreateInvite(ctx, 1)
	require.NoError(t, err)

	for chatID, username := range map[int64]string{2: "pet10", 3: "pet2", 4: "Pet1"} {
		require.NoError(t, svc.TouchProfile(ctx, chatID, username))
		_, err := svc.RedeemInvite(ctx, code, chatID)
		require.NoError(t, err)
	}
	_, err = svc.RedeemInvite(ctx, code, 5)
	require.NoError(t, err)

	contacts, err := svc.SecondaryContacts(ctx, 1)
	require.NoError(t, err)
	handles := make([]string, 0, len(contacts))
	for _, c := range contacts {
		handles = append(handles, c.Handle)
	}
	assert.Equal(t, []string{"#5", "@Pet1", "@pet2", "@pet10"}, handles)

	owners, err := svc.PrimaryOwners(ctx, 3)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, Contact{ChatID: 1, Handle: "#1"}, owners[0])
}

func TestStatus(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, svc.TouchProfile(ctx, 1, "owner"))
	require.NoError(t, svc.SetMonitoring(ctx, 1, true))
	require.NoError(t, svc.MarkAlive(ctx, 1, now))
	require.NoError(t, svc.SetEmergencyText(ctx, 1, "call the neighbour"))

	status, err := svc.Status(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "owner", status.Username)
	assert.True(t, status.MonitoringEnabled)
	require.NotNil(t, status.LastConfirmedAt)
	assert.True(t, now.Equal(*status.LastConfirmedAt))
	assert.True(t, status.HasEmergencyText)
	assert.Empty(t, status.SecondaryContacts)

	unknown, err := svc.Status(ctx, 77)
	require.NoError(t, err)
	assert.False(t, unknown.MonitoringEnabled)
	assert.Nil(t, unknown.LastConfirmedAt)
}
