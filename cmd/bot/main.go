package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"
	"birthday_notification_bot/internal/infra/logger"
	"birthday_notification_bot/internal/infra/scheduler"
	"birthday_notification_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("FATAL: Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"interval":    cfg.NotifierInterval.String(),
	}).Info("Configuration loaded")

	// Database connection and schema
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.Migrate(db); err != nil {
		log.Fatalf("FATAL: Could not run database migrations: %v", err)
	}
	log.Info("Database connection established and migrations applied")

	// Repositories
	birthdayRepo := idb.NewPostgresBirthdayRepository(db)
	subscriptionRepo := idb.NewPostgresSubscriptionRepository(db)
	deliveryLedger := idb.NewPostgresDeliveryLedger(db)

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"message":   c.Text(),
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
				})
			}
			entry.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}
	telegramClient := telegram.NewTelebotAdapter(bot)

	// Services
	birthdayService := app.NewBirthdayService(birthdayRepo, subscriptionRepo)
	notifierService := app.NewNotifierService(
		birthdayRepo,
		subscriptionRepo,
		deliveryLedger,
		telegramClient,
		log.WithField("component", "notifier"),
	)

	// Handlers
	ctx := context.Background()
	telegram.RegisterBotCommands(bot, log.WithField("component", "handlers"))
	telegram.RegisterBirthdayHandlers(ctx, bot, birthdayService, log.WithField("component", "handlers"))
	log.Info("Command handlers registered")

	// Notifier scheduler: constructed and started exactly once; main holds
	// the only handle. Running a second process replica against the same
	// database can produce duplicate sends, so deploy a single instance.
	notifScheduler := scheduler.NewNotifierScheduler(
		notifierService,
		log.WithField("component", "scheduler"),
		cfg.NotifierInterval,
	)
	if err := notifScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start notifier scheduler: %v", err)
	}

	log.Info("Application setup complete. Bot and scheduler are starting...")
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	notifScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully")
}
