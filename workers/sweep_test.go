package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/trustytail/bot"
	"github.com/camden-git/trustytail/config"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/repository"
	"github.com/camden-git/trustytail/telegram/telegramtest"
)

const (
	placeholderText = "no emergency text configured"
	fallbackHandle  = "The pet owner"
)

var sweepNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type sweepFixture struct {
	db       *gorm.DB
	repos    repository.Repositories
	recorder *telegramtest.Recorder
	metrics  *metrics.Metrics
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.InitGormDB(config.DriverSQLite, dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &sweepFixture{
		db:       db,
		repos:    repository.NewGormRepositories(db),
		recorder: telegramtest.NewRecorder(),
		metrics:  metrics.NewMetrics(),
	}
}

func (f *sweepFixture) options(t *testing.T, threshold time.Duration, pageSize int) SweepOptions {
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	return SweepOptions{
		DB:                    sqlDB,
		Builder:               database.Builder(config.DriverSQLite),
		PageSize:              pageSize,
		IncludeNeverConfirmed: true,
		Threshold:             threshold,
		Now:                   func() time.Time { return sweepNow },
	}
}

func (f *sweepFixture) reminder(t *testing.T, pageSize int) *ReminderSweep {
	return NewReminderSweep(f.options(t, 24*time.Hour, pageSize), f.recorder, zap.NewNop(), f.metrics)
}

func (f *sweepFixture) escalation(t *testing.T, pageSize int) *EscalationSweep {
	return NewEscalationSweep(f.options(t, 48*time.Hour, pageSize), f.repos, f.recorder,
		placeholderText, fallbackHandle, zap.NewNop(), f.metrics)
}

// owner registers a monitored chat; silentFor < 0 means it never confirmed.
func (f *sweepFixture) owner(t *testing.T, chatID int64, username string, silentFor time.Duration) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.repos.Profiles.Upsert(ctx, chatID, username))
	require.NoError(t, f.repos.Monitoring.SetEnabled(ctx, chatID, true))
	if silentFor >= 0 {
		require.NoError(t, f.repos.Liveness.Upsert(ctx, chatID, sweepNow.Add(-silentFor)))
	}
}

func (f *sweepFixture) link(t *testing.T, primary int64, secondaries ...int64) {
	t.Helper()
	for _, s := range secondaries {
		_, err := f.repos.SecondaryOwner.Link(context.Background(), primary, s)
		require.NoError(t, err)
	}
}

func chatsOf(rec *telegramtest.Recorder) []int64 {
	var ids []int64
	for _, m := range rec.Messages() {
		ids = append(ids, m.ChatID)
	}
	return ids
}

func TestSweeps_SelectByThreshold(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "four_days", 96*time.Hour)
	f.owner(t, 2, "half_day", 12*time.Hour)
	f.owner(t, 3, "day_and_a_half", 36*time.Hour)

	res, err := f.reminder(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chats)
	assert.Equal(t, 2, res.Sent)
	assert.ElementsMatch(t, []int64{1, 3}, chatsOf(f.recorder))

	msg := f.recorder.SentTo(1)[0]
	assert.Equal(t, bot.ReminderText, msg.Text)
	require.NotNil(t, msg.Keyboard)
	assert.Equal(t, bot.CallbackAlive, msg.Keyboard.Rows[0][0].Data)

	f.recorder.Reset()
	res, err = f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chats)
	assert.Equal(t, []int64{1}, chatsOf(f.recorder))
}

func TestReminderSweep_DoesNotDisable(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "a", 96*time.Hour)

	_, err := f.reminder(t, 50).Run(context.Background())
	require.NoError(t, err)
	_, err = f.reminder(t, 50).Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.recorder.SentTo(1), 2)
}

func TestSweeps_NeverConfirmedSelected(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 5, "silent", -1)

	res, err := f.reminder(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chats)

	res, err = f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chats)
}

func TestSweeps_NeverConfirmedExcludedWhenConfigured(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 5, "silent", -1)

	opts := f.options(t, 24*time.Hour, 50)
	opts.IncludeNeverConfirmed = false
	res, err := NewReminderSweep(opts, f.recorder, zap.NewNop(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Chats)
	assert.Empty(t, f.recorder.Messages())
}

func TestEscalationSweep_SingleShot(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "owner", 96*time.Hour)
	f.link(t, 1, 10)

	first, err := f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Chats)

	status, err := f.repos.Monitoring.FindByChatID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, status.Enabled)

	f.recorder.Reset()
	second, err := f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Chats)
	assert.Empty(t, f.recorder.Messages())

	reminders, err := f.reminder(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reminders.Chats, "paused chats get no reminders")
}

func TestEscalationSweep_FanOutCompleteness(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "catlady", 72*time.Hour)
	f.link(t, 1, 11, 12, 13)
	require.NoError(t, f.repos.EmergencyInfo.Upsert(context.Background(), 1, "Feed Tom at 8am, key under the mat"))

	res, err := f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Sent)
	assert.Zero(t, res.Failures)

	pause := f.recorder.SentTo(1)
	require.Len(t, pause, 1)
	assert.Equal(t, bot.PauseNoticeText, pause[0].Text)

	var alerts []string
	for _, id := range []int64{11, 12, 13} {
		sent := f.recorder.SentTo(id)
		require.Len(t, sent, 1)
		alerts = append(alerts, sent[0].Text)
	}
	assert.Equal(t, alerts[0], alerts[1])
	assert.Equal(t, alerts[1], alerts[2])
	assert.Contains(t, alerts[0], "@catlady")
	assert.Contains(t, alerts[0], "Feed Tom at 8am, key under the mat")
}

func TestEscalationSweep_PlaceholderAndFallbackHandle(t *testing.T) {
	f := newSweepFixture(t)
	require.NoError(t, f.repos.Monitoring.SetEnabled(context.Background(), 1, true))
	f.link(t, 1, 20)

	_, err := f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)

	sent := f.recorder.SentTo(20)
	require.Len(t, sent, 1)
	assert.Equal(t, bot.AlertText(fallbackHandle, placeholderText), sent[0].Text)
}

func TestEscalationSweep_SendFailuresDoNotStopRun(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "blocked_owner", 72*time.Hour)
	f.owner(t, 2, "fine_owner", 72*time.Hour)
	f.link(t, 1, 30, 31)
	f.link(t, 2, 32)
	f.recorder.FailSendsTo(1)
	f.recorder.FailSendsTo(30)

	res, err := f.escalation(t, 50).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chats)
	assert.Equal(t, 2, res.Failures)
	assert.ElementsMatch(t, []int64{31, 2, 32}, chatsOf(f.recorder))

	// the owner's pause notice failed but monitoring is still disabled
	status, err := f.repos.Monitoring.FindByChatID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
}

func TestEscalationSweep_PagesWhileDisabling(t *testing.T) {
	f := newSweepFixture(t)
	for id := int64(1); id <= 7; id++ {
		f.owner(t, id, fmt.Sprintf("owner%d", id), 72*time.Hour)
	}

	res, err := f.escalation(t, 2).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Chats)
	assert.Equal(t, 4, res.Pages)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7}, chatsOf(f.recorder))
}

func TestSweep_PageErrorAborts(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectQuery("FROM monitoring_statuses ms").WillReturnError(errors.New("connection refused"))

	rec := telegramtest.NewRecorder()
	sweep := NewReminderSweep(SweepOptions{
		DB:        mockDB,
		Builder:   database.Builder(config.DriverPostgres),
		PageSize:  10,
		Threshold: 24 * time.Hour,
	}, rec, zap.NewNop(), nil)

	res, err := sweep.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, rec.Messages())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweep_CancelledContext(t *testing.T) {
	f := newSweepFixture(t)
	f.owner(t, 1, "a", 96*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.reminder(t, 50).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
