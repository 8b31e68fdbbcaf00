package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

type Config struct {
	TelegramBotToken string
	TelegramChatID   string
	ITADAPIKey       string
	DBPath           string
	Port             string

	EpicCountry string
	EpicLocale  string

	// Polling cadences in minutes, per storefront.
	SteamMinutes int
	EpicMinutes  int
	GOGMinutes   int
	PrimeMinutes int

	// Global cap on posts per run; per-store caps may be tighter.
	PostLimit int
	PostCaps  map[models.Store]int

	HotDealMinCut int
	RetentionDays int

	// Per-run budgets for expensive image/URL resolution.
	SlowResolveBudget int
	PageScrapeBudget  int
}

func Load() (*Config, error) {
	// .env is optional; real deployments use systemd environment files.
	_ = godotenv.Load()

	botToken := os.Getenv("TG_BOT_TOKEN")
	if botToken == "" {
		slog.Warn("TG_BOT_TOKEN not set, channel posting will be skipped")
	}

	chatID := os.Getenv("TG_CHAT_ID")
	if chatID == "" {
		chatID = "@freeredeemgames"
	}

	itadKey := os.Getenv("ITAD_API_KEY")
	if itadKey == "" {
		slog.Warn("ITAD_API_KEY not set, Steam and GOG fetches will be skipped")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data.sqlite3"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	epicCountry := os.Getenv("EPIC_COUNTRY")
	if epicCountry == "" {
		epicCountry = "KG"
	}
	epicLocale := os.Getenv("EPIC_LOCALE")
	if epicLocale == "" {
		epicLocale = "ru-RU"
	}

	cfg := &Config{
		TelegramBotToken:  botToken,
		TelegramChatID:    chatID,
		ITADAPIKey:        itadKey,
		DBPath:            dbPath,
		Port:              port,
		EpicCountry:       epicCountry,
		EpicLocale:        epicLocale,
		SteamMinutes:      180,
		EpicMinutes:       720,
		GOGMinutes:        1440,
		PrimeMinutes:      1440,
		PostLimit:         10,
		HotDealMinCut:     70,
		RetentionDays:     7,
		SlowResolveBudget: 40,
		PageScrapeBudget:  10,
	}

	for _, v := range []struct {
		env string
		dst *int
	}{
		{"STEAM_MIN", &cfg.SteamMinutes},
		{"EPIC_MIN", &cfg.EpicMinutes},
		{"GOG_MIN", &cfg.GOGMinutes},
		{"PRIME_MIN", &cfg.PrimeMinutes},
		{"POST_LIMIT", &cfg.PostLimit},
		{"HOT_MIN_CUT", &cfg.HotDealMinCut},
		{"RETENTION_DAYS", &cfg.RetentionDays},
		{"SLOW_RESOLVE_BUDGET", &cfg.SlowResolveBudget},
		{"PAGE_SCRAPE_BUDGET", &cfg.PageScrapeBudget},
	} {
		if s := os.Getenv(v.env); s != "" {
			parsed, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q: %w", v.env, s, err)
			}
			*v.dst = parsed
		}
	}

	// Epic runs rarely but loudly, prime is a monthly digest; keep both
	// quieter than the steam firehose.
	cfg.PostCaps = map[models.Store]int{
		models.StoreSteam: cfg.PostLimit,
		models.StoreEpic:  2,
		models.StoreGOG:   3,
		models.StorePrime: 1,
	}

	return cfg, nil
}

// PostCap returns the posting cap for a storefront, falling back to the
// global limit for stores without a specific policy.
func (c *Config) PostCap(store models.Store) int {
	if cap, ok := c.PostCaps[store]; ok {
		return cap
	}
	return c.PostLimit
}
