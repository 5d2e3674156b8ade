package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/camden-git/trustytail/config"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/logger"
	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/repository"
	"github.com/camden-git/trustytail/services"
	"github.com/camden-git/trustytail/telegram"
	"github.com/camden-git/trustytail/workers"
)

const usage = `usage: trustytail <mode>

modes:
  serve      run the bot (polling or webhook), the optional admin HTTP server and scheduled sweeps
  remind     send a reminder to every chat silent longer than REMINDER_AFTER, then exit
  escalate   alert secondary owners of every chat silent longer than ESCALATE_AFTER, then exit
  broadcast  send the text read from stdin to every known chat, then exit`

// app holds the dependencies shared by every mode.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	sqlDB     *sql.DB
	repos     repository.Repositories
	owners    *services.OwnerService
	client    *telegram.Client
	metrics   *metrics.Metrics
	reminders *workers.ReminderSweep
	escalator *workers.EscalationSweep
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	mode := os.Args[1]
	switch mode {
	case "serve", "remind", "escalate", "broadcast":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n\n%s\n", mode, usage)
		os.Exit(2)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	zl, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "trustytail", logger.FileConfig{
		Filename:   cfg.LogFilename,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	zap.ReplaceGlobals(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, mode, cfg, zl.With(zap.String("mode", mode)))
	stop()
	_ = zl.Sync()
	if err != nil {
		zl.Error("exiting with error", zap.String("mode", mode), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, mode string, cfg config.Config, zl *zap.Logger) error {
	a, closeDB, err := newApp(cfg, zl)
	if err != nil {
		return err
	}
	defer closeDB()

	switch mode {
	case "serve":
		return a.serve(ctx)
	case "remind":
		_, err := a.reminders.Run(ctx)
		return err
	case "escalate":
		_, err := a.escalator.Run(ctx)
		return err
	default:
		return a.broadcast(ctx, os.Stdin)
	}
}

func newApp(cfg config.Config, zl *zap.Logger) (*app, func(), error) {
	gormDB, err := database.InitGormDB(cfg.DBDriver, cfg.DatabaseDSN, zl)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB from gorm: %w", err)
	}
	closeDB := func() {
		if err := sqlDB.Close(); err != nil {
			zl.Warn("closing database", zap.Error(err))
		}
	}

	client, err := telegram.NewClient(cfg.BotToken, zl)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	repos := repository.NewGormRepositories(gormDB)
	m := metrics.NewMetrics()

	opts := func(threshold time.Duration) workers.SweepOptions {
		return workers.SweepOptions{
			DB:                    sqlDB,
			Builder:               database.Builder(cfg.DBDriver),
			PageSize:              cfg.SweepPageSize,
			IncludeNeverConfirmed: cfg.IncludeNeverConfirmed,
			Threshold:             threshold,
		}
	}

	a := &app{
		cfg:       cfg,
		log:       zl,
		sqlDB:     sqlDB,
		repos:     repos,
		owners:    services.NewOwnerService(repos, zl, cfg.PlaceholderEmergencyText),
		client:    client,
		metrics:   m,
		reminders: workers.NewReminderSweep(opts(cfg.ReminderAfter), client, zl, m),
		escalator: workers.NewEscalationSweep(opts(cfg.EscalateAfter), repos, client,
			cfg.PlaceholderEmergencyText, cfg.FallbackOwnerHandle, zl, m),
	}
	return a, closeDB, nil
}

func (a *app) broadcast(ctx context.Context, in io.Reader) error {
	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read broadcast text: %w", err)
	}
	res, err := workers.NewBroadcaster(a.repos.Profiles, a.client, a.cfg.SweepPageSize, a.log, a.metrics).Run(ctx, string(text))
	if errors.Is(err, workers.ErrEmptyBroadcast) {
		return fmt.Errorf("nothing to send: %w", err)
	}
	if err != nil {
		return err
	}
	a.log.Info("broadcast delivered", zap.Int("sent", res.Sent), zap.Int("failures", res.Failures))
	return nil
}
