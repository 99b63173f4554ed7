package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dailyplan/internal/api"
	"dailyplan/internal/auth"
	"dailyplan/internal/billing"
	"dailyplan/internal/bot"
	"dailyplan/internal/config"
	"dailyplan/internal/repository"
	"dailyplan/internal/service"
)

const (
	eventDedupeTTL     = 72 * time.Hour
	statusCacheTTL     = time.Minute
	jobTimeout         = 5 * time.Minute
	shutdownTimeout    = 15 * time.Second
	redisCheckDeadline = 3 * time.Second
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduler and, when configured, the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	users := service.NewUserService(userRepo)
	tasks := service.NewTaskService(repository.NewTaskRepository(db))
	notes := service.NewNoteService(repository.NewNoteRepository(db), cfg.Location())
	journals := service.NewJournalService(repository.NewJournalRepository(db))

	gateOpts := billing.Options{TrialDays: cfg.TrialDays, Timeout: cfg.ProviderTimeout}
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		gateOpts.Cache = billing.NewStatusCache(rdb, statusCacheTTL)
		gateOpts.Deduper = billing.NewEventDeduper(rdb, eventDedupeTTL)
	} else {
		logger.Warn("REDIS_URL not set: webhook events are not deduplicated")
	}
	gate := billing.NewGate(userRepo,
		billing.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		logger, gateOpts)

	verifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := api.New(api.Deps{
		Auth:     verifier,
		Users:    users,
		Tasks:    tasks,
		Notes:    notes,
		Journals: journals,
		Billing:  gate,
		Logger:   logger,
	}, api.Options{CORSOrigins: cfg.CORSOrigins, RateLimit: cfg.RateLimit})

	scheduler := service.NewSchedulerService(cfg.Location(), logger, jobTimeout)
	if _, err := scheduler.ScheduleDaily("journal-cleanup", cfg.CleanupTime, service.CleanupJob(journals, logger)); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	errCh := make(chan error, 2)
	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
			Users:   users,
			Tasks:   tasks,
			Notes:   notes,
			Reports: service.NewReportService(tasks),
		}, cfg.Location(), logger)
		if err != nil {
			return err
		}
		if _, err := scheduler.ScheduleDaily("daily-report", cfg.ReportTime, telegramBot.SendDailyReports); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("bot: %w", err)
			}
		}()
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := server.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.WithError(err).Error("component failed")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisCheckDeadline)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func newVerifier(ctx context.Context, cfg config.Config, logger *log.Logger) (*auth.Verifier, error) {
	if cfg.AuthTestSecret != "" {
		logger.Warn("AUTH_TEST_SECRET set: accepting HS256 test tokens")
		return auth.NewTestVerifier(cfg.AuthTestSecret, cfg.FirebaseProjectID), nil
	}
	jwks, err := auth.LoadFirebaseJWKS(ctx, logger)
	if err != nil {
		return nil, err
	}
	return auth.NewFirebaseVerifier(jwks, cfg.FirebaseProjectID), nil
}
