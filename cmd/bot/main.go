package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mlehnert/videokurs-bot/internal/assessment"
	"github.com/mlehnert/videokurs-bot/internal/config"
	"github.com/mlehnert/videokurs-bot/internal/conversation"
	"github.com/mlehnert/videokurs-bot/internal/delivery/telegram"
	"github.com/mlehnert/videokurs-bot/internal/engine"
	"github.com/mlehnert/videokurs-bot/internal/logger"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
	"github.com/mlehnert/videokurs-bot/internal/recordstore/airtable"
	"github.com/mlehnert/videokurs-bot/internal/recordstore/postgres"
	"github.com/mlehnert/videokurs-bot/internal/recordstore/sheet"
)

func main() {
	// Local runs keep secrets in .env; absence is fine in deployment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		zl.Fatal("failed to create telegram bot", zap.Error(err))
	}

	commands := []tgbotapi.BotCommand{
		{
			Command:     "start",
			Description: "Kurs starten",
		},
	}
	if _, err := bot.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		zl.Warn("failed to set bot commands", zap.Error(err))
	}

	zl.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store recordstore.Store
	switch cfg.Storage.Backend {
	case config.BackendAirtable:
		store = airtable.New(cfg.Airtable)

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			zl.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		store = postgres.New(pool)

	case config.BackendSheet:
		s, err := sheet.Open(cfg.Sheet.Path)
		if err != nil {
			zl.Fatal("failed to open spreadsheet", zap.Error(err))
		}
		store = s

	default:
		zl.Fatal("unknown storage backend", zap.String("backend", cfg.Storage.Backend))
	}
	zl.Info("record store ready", zap.String("backend", cfg.Storage.Backend))

	oracle := assessment.NewMistralOracle(cfg.Mistral)
	conversations := conversation.NewStore()
	presenter := telegram.NewPresenter(bot)

	eng := engine.New(store, oracle, conversations, presenter, zl, engine.Config{
		VideoWaitTime:     cfg.Course.VideoWaitTime,
		MaxVideosPerLevel: cfg.Course.MaxVideosPerLevel,
	})

	handler := telegram.NewHandler(bot, zl, eng)
	if err := handler.Run(ctx); err != nil && err != context.Canceled {
		zl.Error("handler stopped", zap.Error(err))
	}

	zl.Info("shutdown complete")
}
