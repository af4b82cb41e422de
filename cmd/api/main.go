package main

import (
	"log"

	"bloommarket/internal/config"
	"bloommarket/internal/database"
	"bloommarket/internal/handlers"
	"bloommarket/internal/media"
	"bloommarket/internal/notify"
	"bloommarket/internal/orders"
	"bloommarket/internal/routes"
	"bloommarket/internal/subs"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.Get()

	// 1. --- Database ---
	db, err := database.OpenDB(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// 2. --- Subscription expiry sweep ---
	// Shops whose subscription lapsed while the process was down get their
	// products hidden before the first request comes in.
	if err := subs.New(db).ExpirySweep(); err != nil {
		log.Printf("Subscription expiry sweep failed: %v", err)
	}

	// 3. --- Order notifications ---
	// The API process sends order notifications directly when a bot token
	// is configured; otherwise order flow works silently.
	var notifier orders.Notifier = notify.Noop{}
	if cfg.Bot.Token != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
		if err != nil {
			log.Printf("Bot client unavailable, notifications disabled: %v", err)
		} else {
			notifier = notify.NewTelegram(api, cfg.Bot.WebAppURL)
		}
	}

	// 4. --- Application setup ---
	store := media.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxSize)
	engine := orders.New(db, cfg.Orders.DeliveryFee, notifier)
	app := handlers.New(db, cfg, store, engine)

	router := routes.SetupRouter(app)
	log.Printf("API server listening on %s", cfg.HTTP.Addr)
	if err := router.Run(cfg.HTTP.Addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
