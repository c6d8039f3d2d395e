package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postpone-diary/internal/bot"
	"postpone-diary/internal/config"
	"postpone-diary/internal/repository"
	"postpone-diary/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeKV()

	store := repository.NewStore(kv)

	scheduler := service.NewSchedulerService(cfg.Location)
	notifier := service.NewLocalNotifier(scheduler, nil, cfg.NotificationsEnabled)
	notificationSvc := service.NewNotificationService(notifier, store, cfg.WeeklyReminderTime, nil)
	taskSvc := service.NewTaskService(store, notificationSvc)
	statsSvc := service.NewStatisticsService(store)

	telegramBot, err := bot.New(cfg.TelegramToken, taskSvc, statsSvc, notifier, notificationSvc, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}
	notifier.AttachSender(telegramBot)

	if err := notificationSvc.ScheduleWeeklyCheck(ctx, time.Now().In(cfg.Location)); err != nil {
		log.Fatalf("schedule weekly check: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Printf("Postponement diary bot started (store=%s).", cfg.StoreBackend)
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}

func openKV(ctx context.Context, cfg config.Config) (repository.KV, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		kv := repository.NewRedisKV(repository.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := kv.Ping(ctx); err != nil {
			kv.Close()
			return nil, nil, err
		}
		return kv, func() { kv.Close() }, nil
	default:
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {}
		if sqlDB, err := db.DB(); err == nil {
			closeDB = func() { sqlDB.Close() }
		}
		return repository.NewSQLiteKV(db), closeDB, nil
	}
}
