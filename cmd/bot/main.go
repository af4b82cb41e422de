package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bloommarket/internal/bot"
	"bloommarket/internal/config"
	"bloommarket/internal/database"
	"bloommarket/internal/media"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.Get()
	if cfg.Bot.Token == "" {
		log.Fatal("BOT_TOKEN is not set")
	}

	db, err := database.OpenDB(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// The API process owns migrations; the bot only assumes the schema is
	// in place.
	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.Fatalf("Failed to authorize bot: %v", err)
	}

	store := media.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxSize)
	worker := bot.New(api, db, cfg, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go worker.RunReminders(ctx)
	worker.Run(ctx)
}
