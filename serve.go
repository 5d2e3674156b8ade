package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/trustytail/bot"
	"github.com/camden-git/trustytail/config"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/dialogue"
	"github.com/camden-git/trustytail/handlers"
	"github.com/camden-git/trustytail/scheduler"
	"github.com/camden-git/trustytail/telegram"
	"github.com/camden-git/trustytail/workers"
)

const shutdownTimeout = 10 * time.Second

func (a *app) dialogueStore(ctx context.Context) (dialogue.Store, func(), error) {
	if a.cfg.DialogueStore != config.DialogueStoreRedis {
		return dialogue.NewMemoryStore(a.cfg.DialogueTTL), func() {}, nil
	}
	client, err := dialogue.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("dialogue state in redis", zap.String("addr", a.cfg.RedisAddr), zap.Int("db", a.cfg.RedisDB))
	return dialogue.NewRedisStore(client, a.cfg.DialogueTTL), func() { _ = client.Close() }, nil
}

func (a *app) scheduleSweeps() (*scheduler.Cron, error) {
	if a.cfg.ReminderSchedule == "" && a.cfg.EscalationSchedule == "" {
		return nil, nil
	}
	c := scheduler.NewCron(time.Local, a.log)
	if a.cfg.ReminderSchedule != "" {
		if _, err := c.Add("reminder_sweep", a.cfg.ReminderSchedule, func(ctx context.Context) error {
			_, err := a.reminders.Run(ctx)
			return err
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}
	if a.cfg.EscalationSchedule != "" {
		if _, err := c.Add("escalation_sweep", a.cfg.EscalationSchedule, func(ctx context.Context) error {
			_, err := a.escalator.Run(ctx)
			return err
		}); err != nil {
			return nil, fmt.Errorf("failed to schedule escalations: %w", err)
		}
	}
	c.Start()
	a.log.Info("scheduled sweeps started",
		zap.String("reminder_schedule", a.cfg.ReminderSchedule),
		zap.String("escalation_schedule", a.cfg.EscalationSchedule))
	return c, nil
}

func (a *app) httpServer(dispatcher *workers.UpdateDispatcher) *http.Server {
	var webhook *handlers.WebhookHandler
	if a.cfg.WebhookURL != "" {
		webhook = &handlers.WebhookHandler{
			Secret:   a.cfg.WebhookSecret,
			Decode:   a.client.DecodeWebhook,
			Dispatch: dispatcher.Dispatch,
			Log:      a.log,
		}
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		AdminTokenHash:     a.cfg.AdminTokenHash,
		CORSAllowedOrigins: a.cfg.CORSAllowedOrigins,
		Health:             &handlers.HealthHandler{DB: a.sqlDB, Log: a.log},
		Admin: &handlers.AdminHandler{
			DB:         a.sqlDB,
			Builder:    database.Builder(a.cfg.DBDriver),
			Owners:     a.owners,
			Reminders:  a.reminders,
			Escalation: a.escalator,
			Log:        a.log,
		},
		Webhook: webhook,
		Metrics: a.metrics.Handler(),
		Log:     a.log,
	})

	return &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (a *app) serve(ctx context.Context) error {
	store, closeStore, err := a.dialogueStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	router := bot.NewRouter(a.owners, a.client, store, a.log)
	dispatcher := workers.NewUpdateDispatcher(ctx, router, a.cfg.UpdateWorkers, a.cfg.UpdateQueueSize, a.log, a.metrics)
	defer dispatcher.Stop()

	sweeps, err := a.scheduleSweeps()
	if err != nil {
		return err
	}
	if sweeps != nil {
		defer sweeps.Stop()
	}

	errCh := make(chan error, 2)

	var srv *http.Server
	if a.cfg.HTTPAddr != "" {
		srv = a.httpServer(dispatcher)
		go func() {
			a.log.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if a.cfg.WebhookURL != "" {
		if err := a.client.SetWebhook(a.cfg.WebhookURL, a.cfg.WebhookSecret); err != nil {
			return err
		}
		a.log.Info("receiving updates by webhook", zap.String("url", a.cfg.WebhookURL))
	} else {
		if err := a.client.DeleteWebhook(); err != nil {
			return err
		}
		a.log.Info("receiving updates by long polling")
		go func() {
			err := a.client.Poll(ctx, func(u telegram.Update) {
				if !dispatcher.Dispatch(u) {
					a.log.Warn("dropped update", zap.Int64("chat_id", u.ChatID), zap.Int("update_id", u.ID))
				}
			})
			if err != nil {
				errCh <- fmt.Errorf("polling: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err = <-errCh:
		a.log.Error("stopping after fatal error", zap.Error(err))
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.log.Warn("http server shutdown", zap.Error(shutdownErr))
		}
	}
	return err
}
