package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeredeemgames/freerg-bot/internal/config"
	"github.com/freeredeemgames/freerg-bot/internal/pipeline"
	"github.com/freeredeemgames/freerg-bot/internal/publisher"
	"github.com/freeredeemgames/freerg-bot/internal/scheduler"
	"github.com/freeredeemgames/freerg-bot/internal/sources"
	"github.com/freeredeemgames/freerg-bot/internal/storage"
	"github.com/freeredeemgames/freerg-bot/internal/validator"
	"github.com/freeredeemgames/freerg-bot/internal/web"
)

func main() {
	slog.Info("Starting free games bot server...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Critical error opening database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.SeedFreeGames(ctx); err != nil {
		slog.Warn("Failed to seed free games catalog", "error", err)
	}

	itad := sources.NewITADClient(cfg.ITADAPIKey)
	fetchers := []sources.Fetcher{
		sources.NewSteamFetcher(itad, cfg.HotDealMinCut, cfg.SlowResolveBudget, cfg.PageScrapeBudget),
		sources.NewGOGFetcher(itad),
		sources.NewEpicFetcher(cfg.EpicLocale, cfg.EpicCountry),
		sources.NewPrimeFetcher(),
	}

	tg := publisher.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChatID)
	pub := publisher.New(tg, store)
	pipe := pipeline.New(store, pub, validator.New(), fetchers, cfg)

	scheduler.New(pipe, cfg).Start(ctx)

	templatesGlob := os.Getenv("TEMPLATES_GLOB")
	if templatesGlob == "" {
		templatesGlob = "internal/web/templates/*.tmpl"
	}
	srv := web.NewServer(store, pipe, pub, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(templatesGlob),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		cancel() // stop the scheduler loops

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}
