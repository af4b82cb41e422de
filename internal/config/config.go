package config

import (
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds everything both processes (API and bot) read from the
// environment. Defaults are development-friendly; production overrides
// everything via env vars or a .env file.
type Config struct {
	HTTP struct {
		Addr string `env:"HTTP_ADDR" env-default:":8080"`
	}
	DB struct {
		DSN string `env:"DB_DSN" env-default:"root:root@tcp(127.0.0.1:3306)/bloommarket?parseTime=true"`
	}
	Bot struct {
		Token            string  `env:"BOT_TOKEN"`
		ProviderToken    string  `env:"PAYMENT_PROVIDER_TOKEN"`
		ModerationChatID int64   `env:"MODERATION_CHAT_ID"`
		AdminIDs         []int64 `env:"ADMIN_TELEGRAM_IDS"`
		WebAppURL        string  `env:"WEBAPP_URL" env-default:"https://t.me/bloommarket_bot/shop"`
	}
	Uploads struct {
		Dir     string `env:"UPLOAD_DIR" env-default:"./uploads"`
		MaxSize int64  `env:"UPLOAD_MAX_SIZE" env-default:"10485760"`
	}
	Orders struct {
		// DeliveryFee is in major currency units (rubles).
		DeliveryFee float64 `env:"DELIVERY_FEE" env-default:"500"`
		Currency    string  `env:"CURRENCY" env-default:"RUB"`
	}
	Reminders struct {
		Zone            string `env:"REMINDER_ZONE" env-default:"Asia/Yekaterinburg"`
		IntervalMinutes int    `env:"REMINDER_INTERVAL_MINUTES" env-default:"5"`
	}
	Geo struct {
		BaseURL string `env:"GEO_BASE_URL" env-default:"https://nominatim.openstreetmap.org"`
		// CityAliases is a comma-separated list of alias=city pairs applied
		// to queries before they are forwarded upstream.
		CityAliases string `env:"GEO_CITY_ALIASES" env-default:"екб=Екатеринбург,ekb=Екатеринбург,спб=Санкт-Петербург,мск=Москва"`
	}
}

var (
	cfg  Config
	once sync.Once
)

// Get returns the singleton configuration instance.
func Get() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: no .env file found, relying on system environment variables")
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("Failed to read environment configuration: %v", err)
		}
	})
	return &cfg
}

// IsAdmin reports whether the given telegram id belongs to a configured
// platform administrator.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Bot.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}
