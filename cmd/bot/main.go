// Package main contains the entrypoint for the cycle parks Telegram bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/cycleparksbot/internal/analytics"
	"github.com/edgard/cycleparksbot/internal/bot"
	"github.com/edgard/cycleparksbot/internal/bot/handlers"
	"github.com/edgard/cycleparksbot/internal/bot/tasks"
	"github.com/edgard/cycleparksbot/internal/config"
	"github.com/edgard/cycleparksbot/internal/database"
	"github.com/edgard/cycleparksbot/internal/geo"
	"github.com/edgard/cycleparksbot/internal/logger"
	"github.com/edgard/cycleparksbot/internal/outbox"
	"github.com/edgard/cycleparksbot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// database, Redis, park index, dispatcher, bot, scheduler), handles graceful
// shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	rdb, err := analytics.NewRedisClient(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		return 1
	}
	defer rdb.Close()

	recorder := analytics.NewRecorder(rdb, store, analytics.Options{
		RequestLogInterval: cfg.Analytics.RequestLogInterval,
		FailureTTL:         cfg.Analytics.FailureTTL,
		ErrorQueueSize:     cfg.Analytics.ErrorQueueSize,
	}, log)

	parks, err := geo.Load(ctx, cfg.Parks.URL, cfg.Parks.CachePath, log)
	if err != nil {
		log.Error("Failed to load cycle park data", "url", cfg.Parks.URL, "error", err)
		return 1
	}
	index := geo.NewIndex(parks)
	log.Info("Cycle park index built", "parks", index.Size())

	queue := outbox.NewQueue()

	hDeps := handlers.HandlerDeps{
		Logger:   log,
		Config:   cfg,
		Parks:    index,
		Outbox:   queue,
		Recorder: recorder,
		Prefs:    handlers.NewPrefs(cfg.Parks.DefaultLimit),
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log), handlers.Recover(hDeps)),
		tgbot.WithDefaultHandler(handlers.NewLocationHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	dispatcher := outbox.NewDispatcher(queue, telegram.NewSender(tg), recorder, cfg.Dispatch.SendInterval, log)

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(ctx, tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:   log,
		Recorder: recorder,
		Config:   cfg,
	}
	sched, err := bot.NewScheduler(log, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, tg, dispatcher, recorder, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
